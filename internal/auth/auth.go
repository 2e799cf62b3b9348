package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/frahmantamala/rbac-admin/internal/user"
	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"

	// BearerScheme is reported back to clients as token_type.
	BearerScheme = "Bearer"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserIDInt parses the user_id claim.
func (c *Claims) UserIDInt() (int64, error) {
	return strconv.ParseInt(c.UserID, 10, 64)
}

// ExpiresAtTime returns the expiry, or the zero time when the claim is absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// AuthTokens is returned by login, register and refresh.
type AuthTokens struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         *user.Resource `json:"user,omitempty"`
}

// TokenGenerator creates and validates signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID int64, email string) (string, *Claims, error)
	GenerateRefreshToken(userID int64, email string) (string, *Claims, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
	AccessTokenTTL() time.Duration
}

// RevocationStore remembers token ids that must no longer be accepted.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	// Claim revokes tokenID and reports whether this call was the one that did.
	Claim(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// UserService is the slice of the identity store the auth flows need.
type UserService interface {
	CreateUser(ctx context.Context, dto user.CreateUserDTO) (*user.User, error)
	GetUser(ctx context.Context, userID int64) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	Issuer             string
}
