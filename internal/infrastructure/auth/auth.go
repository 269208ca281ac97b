package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/config"
)

// Claims carries the isolation identifiers inside a JWT. The token is the
// trust boundary: whatever hierarchy position it asserts becomes the
// isolation context for the request.
type Claims struct {
	TenantID       string `json:"tenant_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	DepartmentID   string `json:"department_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates JWTs carrying isolation claims
type Authenticator struct {
	secret      []byte
	tokenExpiry time.Duration
}

// NewAuthenticator creates an authenticator from configuration
func NewAuthenticator(cfg *config.AuthConfig) (*Authenticator, error) {
	if cfg == nil || cfg.JWTSecret == "" {
		return nil, errors.NewValidationError("MISSING_JWT_SECRET", "jwt secret is required")
	}
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Authenticator{
		secret:      []byte(cfg.JWTSecret),
		tokenExpiry: expiry,
	}, nil
}

// GenerateToken issues a signed token for the given isolation context
func (a *Authenticator) GenerateToken(ic *isolation.Context) (string, error) {
	if ic == nil {
		return "", errors.NewValidationError("MISSING_CONTEXT", "isolation context is required")
	}

	now := time.Now()
	claims := Claims{
		TenantID:       ic.TenantID,
		OrganizationID: ic.OrganizationID,
		DepartmentID:   ic.DepartmentID,
		UserID:         ic.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ic.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.NewInternalError("failed to sign token").WithCause(err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.NewUnauthorizedError("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.NewUnauthorizedError("token validation failed").WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.NewUnauthorizedError("token claims are invalid")
	}

	return claims, nil
}

// ContextFromToken validates a token and builds the isolation context its
// claims assert
func (a *Authenticator) ContextFromToken(tokenString string) (*isolation.Context, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return isolation.NewContext(claims.TenantID, claims.OrganizationID, claims.DepartmentID, claims.UserID)
}
