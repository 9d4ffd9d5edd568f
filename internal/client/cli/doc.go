// Package cli is the interactive sessionkeeper client.
//
// Commands: register, login, whoami, refresh, verify [token], logout, exit.
// whoami refreshes transparently once when the access token has expired;
// refresh exchanges the refresh token on demand and is refused by the
// server while the access token is still valid.
package cli
