package auth

import (
	"fmt"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/oklog/ulid/v2"
)

// GenerateRefreshToken returns common.RefreshTokenBytes of crypto/rand output,
// base64url without padding, followed by "." and a ULID so two values can
// never collide even if the random part did.
func GenerateRefreshToken() (string, error) {
	random, err := common.MakeRandURLString(common.RefreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return random + "." + ulid.Make().String(), nil
}
