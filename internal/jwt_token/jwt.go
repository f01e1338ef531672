// Package jwttoken issues and validates the HS256 bearer tokens that identify
// the user whose credits a request meters.
package jwttoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "companion/pkg/domain"
	dErrors "companion/pkg/domain-errors"
	"companion/pkg/requestcontext"
)

// AccessTokenClaims represents the JWT claims for our access tokens.
type AccessTokenClaims struct {
	UserID string `json:"user_id"`
	Env    string `json:"env,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey    []byte
	issuerBaseURL string
	audience      string
	tokenTTL      time.Duration
	env           string
}

func NewJWTService(signingKey string, issuerBaseURL string, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey:    []byte(signingKey),
		issuerBaseURL: issuerBaseURL,
		audience:      audience,
		tokenTTL:      tokenTTL,
	}
}

// SetEnv annotates issued tokens with an environment string (e.g., "dev").
func (s *JWTService) SetEnv(env string) {
	s.env = env
}

// GenerateAccessToken signs a token for userID and returns it with its JTI.
func (s *JWTService) GenerateAccessToken(ctx context.Context, userID id.UserID) (string, string, error) {
	if userID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "user ID required")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	jti := hex.EncodeToString(b)
	now := requestcontext.Now(ctx)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID: userID.String(),
		Env:    s.env,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuerBaseURL,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ValidateToken verifies signature, algorithm, expiry, issuer, and audience.
func (s *JWTService) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithAudience(s.audience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	if !strings.HasPrefix(claims.Issuer, s.issuerBaseURL) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token issuer")
	}

	return claims, nil
}
