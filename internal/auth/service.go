package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/validation"
	"github.com/frahmantamala/rbac-admin/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "rbac-admin"

// Service is the main auth service with dependencies
type Service struct {
	users       UserService
	tokens      TokenGenerator
	revocations RevocationStore
	logger      *slog.Logger
}

// NewService creates a new auth service
func NewService(users UserService, tokens TokenGenerator, revocations RevocationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTTL:          accessTTL,
		RefreshTTL:         refreshTTL,
		Issuer:             defaultIssuer,
	}
}

// Login validates credentials and returns tokens
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*AuthTokens, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	u, err := s.users.Authenticate(ctx, dto.Email, dto.Password)
	if err != nil {
		if errors.Is(err, internal.ErrInvalidCredentials) {
			s.logger.Warn("login rejected", "email", dto.Email)
		}
		return nil, err
	}

	return s.issue(u)
}

// Register creates the account through the identity store and signs the
// new user in.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*AuthTokens, error) {
	u, err := s.users.CreateUser(ctx, user.CreateUserDTO(dto))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return s.issue(u)
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *Service) Refresh(ctx context.Context, dto RefreshTokenDTO) (*AuthTokens, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}

	claims, err := s.tokens.ValidateRefreshToken(dto.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}

	uid, err := claims.UserIDInt()
	if err != nil {
		return nil, internal.ErrInvalidToken
	}
	u, err := s.users.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}

	// single use: of two concurrent refreshes only one claims the jti
	claimed, err := s.revocations.Claim(ctx, claims.ID, claims.ExpiresAtTime())
	if err != nil {
		return nil, internal.NewStoreError("Failed to refresh token", err)
	}
	if !claimed {
		s.logger.Warn("refresh token reused", "user_id", claims.UserID, "jti", claims.ID)
		return nil, internal.ErrTokenRevoked
	}
	return s.issue(u)
}

// Logout revokes the presented access token until it would have expired.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return internal.NewStoreError("Failed to logout", err)
	}
	s.logger.Info("token revoked", "user_id", claims.UserID, "jti", claims.ID)
	return nil
}

// Authenticate resolves a bearer token to the calling principal.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*internal.Principal, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}

	uid, err := claims.UserIDInt()
	if err != nil || uid <= 0 {
		return nil, internal.ErrInvalidToken
	}
	return &internal.Principal{ID: uid, Email: claims.Email, TokenID: claims.ID}, nil
}

func (s *Service) ensureNotRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("revocation lookup failed", "jti", claims.ID, "error", err)
		return internal.NewStoreError("Failed to verify token", err)
	}
	if revoked {
		return internal.ErrTokenRevoked
	}
	return nil
}

func (s *Service) issue(u *user.User) (*AuthTokens, error) {
	accessToken, _, err := s.tokens.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, internal.NewInternalError("Failed to issue token", err)
	}
	refreshToken, _, err := s.tokens.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return nil, internal.NewInternalError("Failed to issue token", err)
	}

	res := u.ToResource()
	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    BearerScheme,
		ExpiresIn:    int64(s.tokens.AccessTokenTTL().Seconds()),
		User:         &res,
	}, nil
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID int64, email string) (string, *Claims, error) {
	return j.sign(userID, email, TokenTypeAccess, j.AccessTTL, j.AccessTokenSecret)
}

// GenerateRefreshToken creates a new refresh token
func (j *JWTTokenGenerator) GenerateRefreshToken(userID int64, email string) (string, *Claims, error) {
	return j.sign(userID, email, TokenTypeRefresh, j.RefreshTTL, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) AccessTokenTTL() time.Duration {
	return j.AccessTTL
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeAccess, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeRefresh, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) sign(userID int64, email string, typ TokenType, ttl time.Duration, secret []byte) (string, *Claims, error) {
	now := time.Now()
	subject := strconv.FormatInt(userID, 10)

	claims := &Claims{
		UserID:    subject,
		Email:     email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return tokenString, claims, nil
}

func (j *JWTTokenGenerator) validate(tokenString string, want TokenType, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != want || claims.ID == "" {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
