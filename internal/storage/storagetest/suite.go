// Package storagetest holds the contract tests every SessionStore
// implementation must pass.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"dmvagent/internal/domain"
	"dmvagent/internal/storage"
)

// StoreSuite runs the SessionStore contract against the store returned by
// NewStore. NewStore is called before every test and must return an empty
// store.
type StoreSuite struct {
	suite.Suite
	NewStore func() storage.SessionStore

	store storage.SessionStore
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore()
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) TestInsertAssignsUniqueIDs() {
	first, err := s.store.Insert(s.ctx, domain.Session{Intent: "renew"})
	s.Require().NoError(err)
	second, err := s.store.Insert(s.ctx, domain.Session{})
	s.Require().NoError(err)

	s.NotEmpty(first)
	s.NotEqual(first, second)

	got, err := s.store.SelectByID(s.ctx, first)
	s.Require().NoError(err)
	s.Equal("renew", got.Intent)
	s.Empty(got.VerifiedDocuments)
	s.Equal(int64(0), got.Revision)

	got, err = s.store.SelectByID(s.ctx, second)
	s.Require().NoError(err)
	s.Equal("", got.Intent)
}

func (s *StoreSuite) TestSelectMissingIsNotFound() {
	_, err := s.store.SelectByID(s.ctx, "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, storage.ErrNotFound)
	_, err = s.store.SelectByID(s.ctx, "not-a-session")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestUpdateMissingAffectsNothing() {
	intent := "anything"
	n, err := s.store.UpdateByID(s.ctx, "00000000-0000-0000-0000-000000000000", storage.Fields{Intent: &intent})
	s.Require().NoError(err)
	s.Equal(int64(0), n)

	sessions, err := s.store.ListUpdatedSince(s.ctx, time.Time{})
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *StoreSuite) TestPartialUpdateBumpsRevision() {
	id, err := s.store.Insert(s.ctx, domain.Session{Intent: "initial"})
	s.Require().NoError(err)

	docs := []domain.VerifiedDocument{{
		ExpectedType: "Passport",
		Filename:     "passport.pdf",
		VerifiedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
	n, err := s.store.UpdateByID(s.ctx, id, storage.Fields{VerifiedDocuments: &docs})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	got, err := s.store.SelectByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("initial", got.Intent, "intent must be untouched by a documents-only update")
	s.Require().Len(got.VerifiedDocuments, 1)
	s.Equal("Passport", got.VerifiedDocuments[0].ExpectedType)
	s.True(got.VerifiedDocuments[0].VerifiedAt.Equal(docs[0].VerifiedAt))
	s.Equal(int64(1), got.Revision)

	intent := "Apply for a REAL ID"
	_, err = s.store.UpdateByID(s.ctx, id, storage.Fields{Intent: &intent})
	s.Require().NoError(err)
	got, err = s.store.SelectByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(intent, got.Intent)
	s.Len(got.VerifiedDocuments, 1)
	s.Equal(int64(2), got.Revision)
}

func (s *StoreSuite) TestExpectedRevisionIsCompareAndSwap() {
	id, err := s.store.Insert(s.ctx, domain.Session{})
	s.Require().NoError(err)

	stale := int64(0)
	intent := "first"
	n, err := s.store.UpdateByID(s.ctx, id, storage.Fields{Intent: &intent, ExpectedRevision: &stale})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	intent = "second"
	n, err = s.store.UpdateByID(s.ctx, id, storage.Fields{Intent: &intent, ExpectedRevision: &stale})
	s.Require().NoError(err)
	s.Equal(int64(0), n)

	got, err := s.store.SelectByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("first", got.Intent)
}

func (s *StoreSuite) TestConcurrentUnconditionalUpdatesAllApply() {
	id, err := s.store.Insert(s.ctx, domain.Session{})
	s.Require().NoError(err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intent := "same"
			if _, err := s.store.UpdateByID(s.ctx, id, storage.Fields{Intent: &intent}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.store.SelectByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(int64(writers), got.Revision)
}

func (s *StoreSuite) TestListUpdatedSince() {
	old, err := s.store.Insert(s.ctx, domain.Session{Intent: "old"})
	s.Require().NoError(err)
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(20 * time.Millisecond)

	fresh, err := s.store.Insert(s.ctx, domain.Session{Intent: "fresh"})
	s.Require().NoError(err)

	sessions, err := s.store.ListUpdatedSince(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(fresh, sessions[0].ID)

	intent := "touched"
	_, err = s.store.UpdateByID(s.ctx, old, storage.Fields{Intent: &intent})
	s.Require().NoError(err)
	sessions, err = s.store.ListUpdatedSince(s.ctx, cutoff)
	s.Require().NoError(err)
	s.Len(sessions, 2)
}
