package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmvagent/internal/domain"
	"dmvagent/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 UUID PRIMARY KEY,
	intent             TEXT,
	verified_documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	revision           BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to the database and makes sure the schema exists.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return New(pool), nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Truncate removes every session. Used by tests.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE sessions`)
	return err
}

func (s *Store) Insert(ctx context.Context, sess domain.Session) (string, error) {
	id := sess.ID
	if id == "" {
		id = uuid.NewString()
	}
	docs, err := encodeDocuments(sess.VerifiedDocuments)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, intent, verified_documents, revision, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $4)`,
		id, nullable(sess.Intent), docs, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func (s *Store) SelectByID(ctx context.Context, id string) (domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Session{}, storage.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id::text, intent, verified_documents, revision, created_at, updated_at
		 FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, f storage.Fields) (int64, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, nil
	}
	args := []any{time.Now().UTC()}
	sets := []string{"revision = revision + 1", "updated_at = $1"}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Intent != nil {
		sets = append(sets, "intent = "+next(*f.Intent))
	}
	if f.VerifiedDocuments != nil {
		docs, err := encodeDocuments(*f.VerifiedDocuments)
		if err != nil {
			return 0, err
		}
		sets = append(sets, "verified_documents = "+next(docs))
	}

	query := "UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE id = " + next(id)
	if f.ExpectedRevision != nil {
		query += " AND revision = " + next(*f.ExpectedRevision)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update session: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListUpdatedSince(ctx context.Context, since time.Time) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, intent, verified_documents, revision, created_at, updated_at
		 FROM sessions WHERE updated_at >= $1 ORDER BY updated_at, id`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		sess   domain.Session
		intent *string
		docs   []byte
	)
	if err := row.Scan(&sess.ID, &intent, &docs, &sess.Revision, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return domain.Session{}, err
	}
	if intent != nil {
		sess.Intent = *intent
	}
	if err := json.Unmarshal(docs, &sess.VerifiedDocuments); err != nil {
		return domain.Session{}, fmt.Errorf("decode verified documents: %w", err)
	}
	return sess, nil
}

func encodeDocuments(docs []domain.VerifiedDocument) (string, error) {
	if docs == nil {
		docs = []domain.VerifiedDocument{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encode verified documents: %w", err)
	}
	return string(data), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
