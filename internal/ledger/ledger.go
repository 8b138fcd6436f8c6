// Package ledger records documents that passed verification against a
// session. Appends are compare-and-swap on the session revision, so
// concurrent appends to one session never drop an entry and unrelated
// sessions never wait on each other.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dmvagent/internal/domain"
	"dmvagent/internal/storage"
)

type Outcome string

const (
	OutcomeAppended Outcome = "appended"
	OutcomeSkipped  Outcome = "skipped"
)

const defaultMaxAttempts = 8

var ErrContention = errors.New("session updated concurrently too many times")

type Ledger struct {
	sessions    storage.SessionStore
	now         func() time.Time
	maxAttempts int
}

func New(sessions storage.SessionStore) *Ledger {
	return &Ledger{sessions: sessions, now: time.Now, maxAttempts: defaultMaxAttempts}
}

// AppendIfVerified appends {expectedType, filename, now} to the session's
// verified documents when verdict is a match. Any other verdict is a no-op
// that touches no storage.
func (l *Ledger) AppendIfVerified(ctx context.Context, sessionID, expectedType, filename string, verdict domain.Verdict) (Outcome, domain.VerifiedDocument, error) {
	if verdict != domain.VerdictMatch {
		return OutcomeSkipped, domain.VerifiedDocument{}, nil
	}
	if sessionID == "" {
		return "", domain.VerifiedDocument{}, domain.New(domain.KindNotFound, "No chat session found")
	}

	doc := domain.VerifiedDocument{
		ExpectedType: expectedType,
		Filename:     filename,
		VerifiedAt:   l.now().UTC(),
	}
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		sess, err := l.sessions.SelectByID(ctx, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return "", domain.VerifiedDocument{}, domain.WithSubject(domain.KindNotFound, "No chat session found", sessionID)
		}
		if err != nil {
			return "", domain.VerifiedDocument{}, domain.Wrap(domain.KindInternal, "load session", err)
		}

		updated := make([]domain.VerifiedDocument, 0, len(sess.VerifiedDocuments)+1)
		updated = append(updated, sess.VerifiedDocuments...)
		updated = append(updated, doc)
		revision := sess.Revision

		n, err := l.sessions.UpdateByID(ctx, sessionID, storage.Fields{
			VerifiedDocuments: &updated,
			ExpectedRevision:  &revision,
		})
		if err != nil {
			return "", domain.VerifiedDocument{}, domain.Wrap(domain.KindInternal, "append verified document", err)
		}
		if n > 0 {
			log.Printf("ledger append session=%s expected=%q total=%d attempt=%d", sessionID, expectedType, len(updated), attempt)
			return OutcomeAppended, doc, nil
		}
		// Zero rows: either the revision moved or the session vanished.
		// The next SelectByID tells the two apart.
		if err := ctx.Err(); err != nil {
			return "", domain.VerifiedDocument{}, domain.Wrap(domain.KindInternal, "append verified document", err)
		}
	}
	log.Printf("ledger append-contention session=%s attempts=%d", sessionID, l.maxAttempts)
	return "", domain.VerifiedDocument{}, domain.Wrap(domain.KindInternal, "append verified document",
		fmt.Errorf("%w: %d attempts", ErrContention, l.maxAttempts))
}
