// Package login drives the RDE sign-in form in a browser and captures the resulting bearer tokens
// and cookies.
//
// The sign-in flow is an explicit state machine ([Machine]). Each waiting state polls a small
// injected script through [Page.Evaluate]; a negative result is retried with exponential
// [Backoff] until the per-state attempt budget runs out, which ends the run in [StateFailed].
// Once the browser lands on the dataset listing, cookies are written to disk, the access token is
// read from sessionStorage and saved for the primary host, and the machine visits the material
// portal once to capture that host's token. The outcome of that visit is recorded as a
// [SecondaryOutcome], so later runs on the same session never repeat it.
//
// [ChromePage] implements [Page] with chromedp. Tests supply their own Page.
package login
