// Package server provides the loopback HTTP routing and OAuth callback
// handling behind the CLI login flow.
//
// # Router
//
// [Router] wraps [http.ServeMux] with method filtering. Custom handlers
// implement the [Handler] interface, which extends the stdlib handler with
// route declarations so a handler can register every path it serves.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback. The
// handler validates the state parameter (CSRF protection) and delivers the
// authorization code through a channel; the caller exchanges the code for
// tokens and shuts the server down.
//
// It only processes one callback to prevent replay attacks.
//
// # Usage
//
// When the user runs the login command, a temporary HTTP server starts on the
// configured loopback address, handles the callback, and shuts down after the
// result is delivered.
package server
