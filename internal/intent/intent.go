// Package intent records the service a user declared they want, one value
// per session. Writes are last-write-wins.
package intent

import (
	"context"
	"errors"
	"log"
	"strings"

	"dmvagent/internal/domain"
	"dmvagent/internal/storage"
)

type Store struct {
	sessions storage.SessionStore
}

func NewStore(sessions storage.SessionStore) *Store {
	return &Store{sessions: sessions}
}

// Create allocates a session with the given (possibly empty) intent.
func (s *Store) Create(ctx context.Context, initialIntent string) (string, error) {
	id, err := s.sessions.Insert(ctx, domain.Session{Intent: initialIntent})
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "create session", err)
	}
	log.Printf("intent create session=%s intent_len=%d", id, len(initialIntent))
	return id, nil
}

// Upsert replaces the intent of an existing session. There is no revision
// check: concurrent writers race and the last committed write wins.
func (s *Store) Upsert(ctx context.Context, sessionID, intent string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.New(domain.KindInvalidRequest, "sessionId is required")
	}
	n, err := s.sessions.UpdateByID(ctx, sessionID, storage.Fields{Intent: &intent})
	if err != nil {
		return domain.Wrap(domain.KindInternal, "update intent", err)
	}
	if n == 0 {
		return domain.WithSubject(domain.KindNotFound, "No chat session found", sessionID)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Session{}, domain.New(domain.KindInvalidRequest, "sessionId is required")
	}
	sess, err := s.sessions.SelectByID(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Session{}, domain.WithSubject(domain.KindNotFound, "No chat session found", sessionID)
	}
	if err != nil {
		return domain.Session{}, domain.Wrap(domain.KindInternal, "load session", err)
	}
	return sess, nil
}
