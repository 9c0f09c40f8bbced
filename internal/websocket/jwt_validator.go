package websocket

import (
	"context"
	"errors"

	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenValidator resolves a bearer token passed on the upgrade request to a user id
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// Auth0TokenValidator resolves upgrade tokens with the validator used by the REST API
type Auth0TokenValidator struct {
	validator middleware.TokenValidator
}

func NewAuth0TokenValidator(v middleware.TokenValidator) *Auth0TokenValidator {
	return &Auth0TokenValidator{validator: v}
}

// ValidateToken returns the token subject
func (a *Auth0TokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	userID, err := middleware.SubjectFromToken(ctx, a.validator, token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return userID, nil
}
