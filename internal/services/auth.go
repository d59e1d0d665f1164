package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/livechat-backend/internal/platform/ctxutil"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// JWTClaims identify an operator. Visitors connect without a token.
type JWTClaims struct {
	TenantID int64 `json:"tenant_id"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// SetContextFromToken attaches the caller identity to ctx. An empty token yields
	// an anonymous visitor of tenantHint. A token naming another tenant than a
	// non-zero tenantHint is rejected.
	SetContextFromToken(ctx context.Context, tenantHint int64, tokenString string) (context.Context, error)
	IssueOperatorToken(tenantID, userID int64, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tenantHint int64, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctxutil.WithIdentity(ctx, &ctxutil.Identity{TenantID: tenantHint}), nil
	}
	if as.jwtSecretKey == "" {
		return ctx, fmt.Errorf("%w: operator tokens are not accepted", ErrInvalidToken)
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return ctx, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if claims.TenantID <= 0 {
		return ctx, fmt.Errorf("%w: missing tenant", ErrInvalidToken)
	}
	if tenantHint != 0 && tenantHint != claims.TenantID {
		as.log.Warn("token tenant mismatch", "tenant_id", tenantHint, "token_tenant_id", claims.TenantID)
		return ctx, fmt.Errorf("%w: tenant mismatch", ErrInvalidToken)
	}

	return ctxutil.WithIdentity(ctx, &ctxutil.Identity{
		TenantID: claims.TenantID,
		UserID:   &userID,
		Token:    tokenString,
	}), nil
}

func (as *authService) IssueOperatorToken(tenantID, userID int64, ttl time.Duration) (string, error) {
	if as.jwtSecretKey == "" {
		return "", errors.New("JWT_SECRET_KEY is not configured")
	}
	now := time.Now()
	claims := JWTClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecretKey))
}
