// Package shared holds the JSON wire types exchanged by the HTTP server and
// the CLI client.
package shared

// Routes served under the account API.
const (
	RouteLogin        = "/api/account/login"
	RouteRegister     = "/api/account/register"
	RouteRefreshToken = "/api/account/refresh-token"
	RouteLogout       = "/api/account/logout"
	RouteVerifyToken  = "/api/account/verify-token"
	RouteCurrentUser  = "/api/account"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	UserName    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

// RefreshRequest may omit either token when it travels in the refresh cookie
// or the Authorization header instead.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// SessionResponse is returned by login, register, refresh and current user.
type SessionResponse struct {
	UserID       string `json:"user_id"`
	UserName     string `json:"username"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the access token expiry in Unix seconds, UTC.
	ExpiresAt int64 `json:"expires_at"`
}

type VerifyTokenResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"user_id"`
	UserName  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"`
}

type LogoutResponse struct {
	LoggedOut bool  `json:"logged_out"`
	Revoked   int64 `json:"revoked"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
