// Package common contains shared constants and sentinel errors used across
// sessionkeeper components.
package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// RefreshTokenCookieName is the cookie the HTTP API sets alongside the JSON
// response so browser clients can keep the refresh token out of script reach.
const RefreshTokenCookieName = "refresh_token"

// RefreshTokenBytes is the amount of entropy in a freshly generated refresh token.
const RefreshTokenBytes = 32
