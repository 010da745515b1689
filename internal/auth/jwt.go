package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/inspection-dispatch/internal/models"
)

// Claims carried by a session token. The gateway verifies these; it never
// issues sessions itself.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager verifies HS256 session tokens minted by the auth service.
type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the session it encodes.
func (m *Manager) Verify(token string) (models.Session, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return models.Session{}, err
	}
	if !parsed.Valid {
		return models.Session{}, fmt.Errorf("invalid token")
	}
	role := models.Role(claims.Role)
	switch role {
	case models.RoleClient, models.RoleDriver, models.RoleAdmin:
	default:
		return models.Session{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return models.Session{UserID: claims.Subject, Role: role, AuthToken: token}, nil
}

// Sign mints a token for the given identity. Used by tests and local
// tooling; production tokens come from the auth service.
func (m *Manager) Sign(userID string, role models.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
