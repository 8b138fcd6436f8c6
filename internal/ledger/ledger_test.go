package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmvagent/internal/domain"
	"dmvagent/internal/storage"
	"dmvagent/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// countingStore records whether any storage call was made.
type countingStore struct {
	storage.SessionStore
	mu    sync.Mutex
	calls int
}

func (c *countingStore) SelectByID(ctx context.Context, id string) (domain.Session, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.SessionStore.SelectByID(ctx, id)
}

func (c *countingStore) UpdateByID(ctx context.Context, id string, f storage.Fields) (int64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.SessionStore.UpdateByID(ctx, id, f)
}

func TestAppendOnMatchAddsExactlyOne(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id, err := store.Insert(ctx, domain.Session{})
	require.NoError(t, err)

	l := New(store)
	fixed := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	outcome, doc, err := l.AppendIfVerified(ctx, id, "Passport", "passport.pdf", domain.VerdictMatch)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAppended, outcome)
	assert.Equal(t, "Passport", doc.ExpectedType)

	sess, err := store.SelectByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.VerifiedDocuments, 1)
	assert.Equal(t, "passport.pdf", sess.VerifiedDocuments[0].Filename)
	assert.True(t, sess.VerifiedDocuments[0].VerifiedAt.Equal(fixed))
}

func TestDuplicateTypesAreKept(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id, err := store.Insert(ctx, domain.Session{})
	require.NoError(t, err)

	l := New(store)
	for i := 0; i < 2; i++ {
		_, _, err := l.AppendIfVerified(ctx, id, "Passport", "passport.pdf", domain.VerdictMatch)
		require.NoError(t, err)
	}

	sess, err := store.SelectByID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.VerifiedDocuments, 2)
}

func TestNoMatchIsNoOpWithoutStorageAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id, err := store.Insert(ctx, domain.Session{})
	require.NoError(t, err)

	counting := &countingStore{SessionStore: store}
	l := New(counting)

	outcome, _, err := l.AppendIfVerified(ctx, id, "Proof of Address", "bill.png", domain.VerdictNoMatch)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, counting.calls)

	sess, err := store.SelectByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sess.VerifiedDocuments)
	assert.Equal(t, int64(0), sess.Revision)
}

func TestMissingSessionIsNotFound(t *testing.T) {
	l := New(newTestStore(t))

	_, _, err := l.AppendIfVerified(context.Background(), "00000000-0000-0000-0000-000000000000", "Passport", "p.pdf", domain.VerdictMatch)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, _, err = l.AppendIfVerified(context.Background(), "", "Passport", "p.pdf", domain.VerdictMatch)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestConcurrentAppendsKeepEveryEntry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id, err := store.Insert(ctx, domain.Session{})
	require.NoError(t, err)

	l := New(store)
	require.Equal(t, defaultMaxAttempts, l.maxAttempts)

	// Each failed attempt means another writer committed, so with at most
	// maxAttempts writers nobody runs out of attempts.
	writers := l.maxAttempts
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.AppendIfVerified(ctx, id, "Passport", "passport.pdf", domain.VerdictMatch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := store.SelectByID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, sess.VerifiedDocuments, writers)
}

// staleStore always reports a moved revision.
type staleStore struct {
	storage.SessionStore
}

func (staleStore) UpdateByID(context.Context, string, storage.Fields) (int64, error) {
	return 0, nil
}

func TestContentionGivesUp(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	id, err := store.Insert(ctx, domain.Session{})
	require.NoError(t, err)

	l := New(staleStore{SessionStore: store})
	l.maxAttempts = 3

	_, _, err = l.AppendIfVerified(ctx, id, "Passport", "p.pdf", domain.VerdictMatch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}
