package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
)

// Claims are the casevault access token claims. Subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 access tokens for one issuer/audience pair.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*JWTService)

// WithLeeway tolerates clock skew between the issuer and this service.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) {
		s.leeway = d
	}
}

// WithClock overrides the time source used when issuing tokens.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

func NewJWTService(signingKey, issuer, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken issues a signed token for an actor. Production tokens
// come from the identity provider; cmd/devtoken and tests use this.
func (s *JWTService) GenerateAccessToken(actorID domain.ActorID, role domain.Role, expiresIn time.Duration) (string, error) {
	if actorID.IsNil() {
		return "", dErrors.New(dErrors.CodeValidation, "actor id is required")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies signature, issuer, audience and expiry. Tokens
// without an expiry are rejected. Every failure is CodeUnauthorized.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
