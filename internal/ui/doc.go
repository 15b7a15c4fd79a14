// Package ui implements the token status terminal interface using bubbletea's Elm architecture.
//
// Views:
//  1. [StatusView] : one row per RDE host with presence, validity and expiry
//  2. [FetchView] : live progress of a bulk dataset fetch
//  3. [ResultView] : fetched, skipped and failed counts with per-dataset errors
//
// Keys: r revalidates every token against the API, f refreshes the selected host's token,
// d starts a dataset fetch, esc returns from results and q quits.
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the
// [Msg] union type. Progress flows through a channel from [tasks.Fetcher].
package ui
