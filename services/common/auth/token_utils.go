package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrSecretNotConfigured = errors.New("JWT secret not configured")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrForbiddenRole       = errors.New("insufficient role")
)

// Verifier validates HS256 bearer tokens issued by the auth service.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (v *Verifier) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if len(v.secret) == 0 {
		return nil, ErrSecretNotConfigured
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// RequireRole validates the token and checks its "role" claim.
func (v *Verifier) RequireRole(tokenStr, role string) (jwt.MapClaims, error) {
	claims, err := v.ParseAndValidateToken(tokenStr, "access")
	if err != nil {
		return nil, err
	}
	if r, _ := claims["role"].(string); r != role {
		return nil, ErrForbiddenRole
	}
	return claims, nil
}

// BearerToken strips the "Bearer " prefix from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
