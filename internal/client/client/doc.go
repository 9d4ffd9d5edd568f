// Package client is the CLI's view of the session server.
//
// HTTPClient keeps the current token pair in memory, attaches the access
// token to protected calls and, when the server answers 401 "token expired",
// exchanges the refresh token once and retries the call.
//
// Conditions callers branch on are sentinel errors matched with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrNotLoggedIn. Every other server
// rejection surfaces as *APIError carrying the status and public code.
package client
