package jwttoken

import (
	"casevault/pkg/domain"
	dErrors "casevault/pkg/domain-errors"
	authmw "casevault/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts token claims into the identity the middleware
// places on the request context.
func ToMiddlewareClaims(claims *Claims) (*authmw.JWTClaims, error) {
	actorID, err := domain.ParseActorID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	return &authmw.JWTClaims{ActorID: actorID, Role: role}, nil
}

type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
