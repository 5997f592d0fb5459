package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/vaxsync/internal/client/store"
)

// SessionService tracks the signed-in guardian and owns the remote
// connection's lifetime.
//
// Contract:
//   - SignIn: remember the guardian locally; works offline.
//   - CurrentGuardian: the remembered guardian, or ErrNotSignedIn.
//   - Ping: check that the remote authority answers.
//   - Logout: wipe cached entities and metadata. Queued writes are kept.
//   - Close: release the remote connection.
type SessionService interface {
	SignIn(ctx context.Context, guardianID string) error
	CurrentGuardian(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Logout(ctx context.Context) error
	Close(ctx context.Context) error
}

// Remote is the part of the remote client the session needs.
type Remote interface {
	Ping(ctx context.Context) error
	Close() error
}

type sessionService struct {
	remote Remote
	store  store.Store
	meta   metadata.Repository
}

func NewSessionService(remote Remote, st store.Store, meta metadata.Repository) SessionService {
	return &sessionService{remote: remote, store: st, meta: meta}
}

func (s *sessionService) SignIn(ctx context.Context, guardianID string) error {
	if guardianID == "" {
		return errors.New("guardian id is required")
	}
	return s.meta.Set(ctx, metadata.KeyGuardianID, []byte(guardianID))
}

func (s *sessionService) CurrentGuardian(ctx context.Context) (string, error) {
	v, err := s.meta.Get(ctx, metadata.KeyGuardianID)
	if err != nil {
		return "", err
	}
	if len(v) == 0 {
		return "", ErrNotSignedIn
	}
	return string(v), nil
}

func (s *sessionService) Ping(ctx context.Context) error {
	return s.remote.Ping(ctx)
}

func (s *sessionService) Logout(ctx context.Context) error {
	for _, c := range models.Collections {
		if err := s.store.Clear(ctx, c); err != nil {
			return fmt.Errorf("clear %s: %w", c, err)
		}
	}
	if err := s.meta.Clear(ctx); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	return nil
}

func (s *sessionService) Close(ctx context.Context) error {
	return s.remote.Close()
}
