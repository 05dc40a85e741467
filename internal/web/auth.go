package web

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"outletops-sim/internal/store"
)

const (
	// CookieName is the session cookie holding the signed token.
	CookieName  = "auth_token"
	tokenExpiry = 24 * time.Hour
)

// Claims carried in the session token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Outlet   string `json:"outlet,omitempty"`
	jwt.RegisteredClaims
}

// AuthService issues and validates session tokens.
type AuthService struct {
	secret []byte
}

// NewAuthService creates the service. An empty secret falls back to the
// OUTLETOPS_JWT_SECRET env var, then to a development-only default.
func NewAuthService(secret string) *AuthService {
	if secret == "" {
		secret = os.Getenv("OUTLETOPS_JWT_SECRET")
	}
	if secret == "" {
		secret = "dev-secret-change-in-production"
	}
	return &AuthService{secret: []byte(secret)}
}

// GenerateToken signs a session token for a user.
func (a *AuthService) GenerateToken(u *store.User) (string, error) {
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		Outlet:   u.Outlet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   u.Username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a session token.
func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// roleRank orders roles for the gate middleware.
func roleRank(role string) int {
	switch role {
	case store.RoleAdmin:
		return 2
	case store.RoleOperator:
		return 1
	case store.RoleViewer:
		return 0
	default:
		return -1
	}
}
