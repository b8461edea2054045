package jwttoken

import (
	auth "aims/pkg/platform/middleware/auth"
)

// AuthAdapter bridges JWTService to the auth middleware's Validator interface.
type AuthAdapter struct {
	svc *JWTService
}

func NewAuthAdapter(svc *JWTService) *AuthAdapter {
	return &AuthAdapter{svc: svc}
}

func (a *AuthAdapter) ValidateActor(tokenString string) (*auth.ActorClaims, error) {
	claims, err := a.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.ActorClaims{ActorID: claims.ActorID}, nil
}
