package models

// TokenPair is what a successful authentication event hands to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token expiry as Unix seconds (UTC).
	ExpiresAt int64
}

// Session is a TokenPair plus the principal it was issued to.
type Session struct {
	TokenPair
	UserID      string
	UserName    string
	Email       string
	DisplayName string
	// FromCache is set when the access token was served from the session cache.
	FromCache bool
}
