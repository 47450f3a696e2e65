package middleware

import (
	"context"

	"hkboard/config"
	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

// SessionResolver looks up the session behind a tablet's token.
type SessionResolver interface {
	Get(ctx context.Context, token string) (models.Session, error)
}

type Middleware struct {
	Config   config.Config
	sessions SessionResolver
	log      logger.Logger
}

func New(sessions SessionResolver, config config.Config) Middleware {
	log := logger.New("middleware")

	return Middleware{
		Config:   config,
		sessions: sessions,
		log:      log,
	}
}
