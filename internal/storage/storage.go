// Package storage defines the session datastore contract shared by the
// SQLite and PostgreSQL implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"dmvagent/internal/domain"
)

var ErrNotFound = errors.New("session not found")

// Fields is a partial update. Nil members are left untouched.
// ExpectedRevision turns the update into a compare-and-swap: the row is only
// written when its current revision equals the given value.
type Fields struct {
	Intent            *string
	VerifiedDocuments *[]domain.VerifiedDocument
	ExpectedRevision  *int64
}

// SessionStore is a keyed record store with conditional update semantics.
// UpdateByID reports the number of rows written; zero means the session is
// missing or, with ExpectedRevision set, that the revision moved on.
// Every successful update increments Revision and sets UpdatedAt.
type SessionStore interface {
	Insert(ctx context.Context, s domain.Session) (string, error)
	SelectByID(ctx context.Context, id string) (domain.Session, error)
	UpdateByID(ctx context.Context, id string, f Fields) (int64, error)
	ListUpdatedSince(ctx context.Context, since time.Time) ([]domain.Session, error)
	Close() error
}
