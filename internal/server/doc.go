// Package server provides the local status service behind "rdex serve".
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses
// [http.ServeMux] method patterns ("GET /tokens"), so method filtering comes from the mux.
// [Middleware] is applied so the first added runs outermost: [RequestID], [Recover], [Logging].
//
// # Endpoints
//
// [StatusHandler] serves:
//   - GET /health : liveness, version and uptime
//   - GET /tokens : per host presence, expiry and refreshability (?validate=true checks the API)
//   - GET /calls  : recent API calls from the history database (?limit, ?host, ?failed)
//
// Token values never leave the process.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and
// adds routes, so a handler keeps its route definitions next to its implementation.
package server
