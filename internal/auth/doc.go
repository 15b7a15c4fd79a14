// Package auth manages RDE bearer tokens.
//
// One [Token] is kept per site host ([HostRDE] and [HostMaterial]) in a JSON file owned by [Store].
// The primary host's access token is mirrored into the legacy single-token file so older tooling
// keeps working.
//
// A token is only trusted after [Validator.Validate] sees HTTP 200 from the users/self endpoint.
// [Refresher] exchanges a refresh token for a new access token through the B2C token endpoint with
// [golang.org/x/oauth2]. [Manager] ties these together: [Manager.GetValidToken] for one-shot use,
// [Manager.TokenForURL] for per-request host selection and [Manager.Run] for background refresh
// that reports [Event] values on a channel.
package auth
