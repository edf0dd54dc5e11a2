package middleware

import (
	"context"

	"github.com/borauni/ride-dispatch/internal/domain/models"
	"github.com/borauni/ride-dispatch/pkg/logger"
)

type (
	// TokenValidator turns a bearer token into a caller identity.
	TokenValidator interface {
		Validate(ctx context.Context, token string) (*models.User, error)
	}

	Middleware struct {
		tokens TokenValidator
		log    logger.Logger
	}
)

func NewMiddleware(tokens TokenValidator, log logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log,
	}
}
