package shared

// Error codes carried in ErrorResponse.Error. They name a category only and
// never include internal detail.
const (
	CodeBadRequest          = "bad request"
	CodeUnauthorized        = "unauthorized"
	CodeInvalidToken        = "invalid token"
	CodeTokenExpired        = "token expired"
	CodeTokenNotYetExpired  = "token not yet expired"
	CodeInvalidRefreshToken = "invalid refresh token"
	CodeRefreshTokenExpired = "refresh token expired"
	CodeConflict            = "conflict"
	CodeRateLimited         = "rate limited"
	CodeUnavailable         = "service unavailable"
	CodeInternal            = "internal error"
)
