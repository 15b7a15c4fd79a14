// Package services implements [Client], the RDE JSON:API client.
//
// # Hosts
//
// The backend is split across five API hosts ([Endpoints]): datasets, groups and files on
// rde-api, users on rde-user-api, samples on rde-material-api, instruments on
// rde-instrument-api and data registration on rde-entry-api-arim. Every request asks the
// [TokenSource] for the bearer token of its URL, so material calls use the material token when one
// was captured and the primary token otherwise.
//
// # Transport
//
// The underlying resty client takes proxy, certificate, timeout and retry settings from
// [shared.NetworkConfig]. Throttling and gateway errors (429, 500, 502, 503, 504) and transport
// failures are retried with exponential backoff. Group writes carry a 15s deadline and entry
// calls 60s.
//
// # Error Handling
//
// A non-2xx response becomes an [APIError] joined with sentinels from the shared package:
//   - [shared.ErrAPIRequest] : every failed call
//   - [shared.ErrTokenExpired] : HTTP 401, the user should sign in again
//   - [shared.ErrForbidden] : HTTP 403, and 404 on writes, which is how the backend reports a
//     missing account-level permission
//   - [shared.ErrNotFound] : HTTP 404
//   - [shared.ErrServiceUnavailable] : HTTP 503
//
// # Payloads
//
// Resources stay opaque: endpoint methods return the raw [Response] so callers can snapshot the
// exact bytes. [NewSubgroupPayload] and [NewEntryPayload] build the two write documents whose shape
// the client owns.
//
// When a [Recorder] is attached every request attempt is logged as a [models.APICall].
package services
