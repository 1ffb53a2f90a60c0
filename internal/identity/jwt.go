package identity

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
	"github.com/skolarhq/skolar/internal/config"
)

// Claims is the session token payload issued by the platform auth service.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTProvider verifies HMAC-signed session tokens.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(cfg config.Config) *JWTProvider {
	return &JWTProvider{secret: []byte(cfg.AuthJWTSecret)}
}

func (p *JWTProvider) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(p.secret) == 0 {
		return Identity{}, ErrUnauthenticated
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(claims.Subject))
	if err != nil || userID == 0 {
		return Identity{}, ErrUnauthenticated
	}

	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if !ValidRole(role) {
		return Identity{}, ErrUnknownRole
	}

	return Identity{UserID: userID, Role: role}, nil
}

// Sign issues a token for the given identity. Exists for local development
// and tests; production tokens come from the auth service.
func (p *JWTProvider) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
