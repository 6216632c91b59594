// Package server runs the local HTTP endpoint that completes the Spotify OAuth flow.
//
// # OAuth Callback
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code through an
// [Exchanger], and delivers exactly one [OAuthResult]. Later requests are rejected so a
// callback cannot be replayed.
//
// [CallbackServer] binds the redirect URI's address, serves the handler, and shuts itself
// down once a result arrives, the timeout passes, or the context is canceled.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] method patterns with a [Middleware] stack.
// [RequestLogger] logs each request at debug level.
package server
