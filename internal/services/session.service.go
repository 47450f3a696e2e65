package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hkboard/internal/constants"
	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/patrickmn/go-cache"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the durable side of sessions, the local cache on this agent.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type SessionService struct {
	store SessionStore
	cache *cache.Cache
	now   func() time.Time
	log   logger.Logger
}

func NewSessionService(store SessionStore, now func() time.Time) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		store: store,
		cache: cache.New(constants.SessionCacheExpiry, constants.SessionCacheCleanup),
		now:   now,
		log:   logger.New("sessionService"),
	}
}

func sessionKey(token string) string {
	return fmt.Sprintf("%s:%s", constants.UserSessionPrefix, token)
}

func (s *SessionService) Login(ctx context.Context, identity string) (models.Session, error) {
	log := logger.New("sessionService").TraceFromContext(ctx).Function("Login")

	session, err := models.NewSession(identity, s.now())
	if err != nil {
		return models.Session{}, err
	}

	encoded, err := json.Marshal(session)
	if err != nil {
		return models.Session{}, log.Err("failed to encode session", err)
	}
	if err := s.store.Set(ctx, sessionKey(session.Token), string(encoded)); err != nil {
		return models.Session{}, log.Err("failed to persist session", err, "identity", identity)
	}

	s.cache.SetDefault(session.Token, session)
	log.Info("Session started", "identity", identity, "role", session.Role)
	return session, nil
}

// Get resolves a token, falling back to the local cache after a restart.
func (s *SessionService) Get(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrSessionNotFound
	}
	if cached, ok := s.cache.Get(token); ok {
		return cached.(models.Session), nil
	}

	log := logger.New("sessionService").TraceFromContext(ctx).Function("Get")

	raw, found, err := s.store.Get(ctx, sessionKey(token))
	if err != nil {
		return models.Session{}, log.Err("failed to read session", err)
	}
	if !found {
		return models.Session{}, ErrSessionNotFound
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Warn("Dropping unreadable session", "error", err)
		if delErr := s.store.Delete(ctx, sessionKey(token)); delErr != nil {
			log.Warn("Failed to delete unreadable session", "error", delErr)
		}
		return models.Session{}, ErrSessionNotFound
	}

	s.cache.SetDefault(token, session)
	return session, nil
}

func (s *SessionService) Logout(ctx context.Context, token string) error {
	log := logger.New("sessionService").TraceFromContext(ctx).Function("Logout")

	s.cache.Delete(token)
	if err := s.store.Delete(ctx, sessionKey(token)); err != nil {
		return log.Err("failed to delete session", err)
	}
	return nil
}
