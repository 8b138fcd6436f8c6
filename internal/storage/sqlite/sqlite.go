package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"dmvagent/internal/domain"
	"dmvagent/internal/storage"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id                 TEXT PRIMARY KEY,
		intent             TEXT,
		verified_documents TEXT NOT NULL DEFAULT '[]',
		revision           INTEGER NOT NULL DEFAULT 0,
		created_at         DATETIME NOT NULL,
		updated_at         DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open initializes the database at path and wraps it in a Store.
func Open(path string) (*Store, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, intent, verified_documents, revision, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		id, nullString(sess.Intent), docs, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func (s *Store) SelectByID(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, intent, verified_documents, revision, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return sess, nil
}

func (s *Store) UpdateByID(ctx context.Context, id string, f storage.Fields) (int64, error) {
	sets := []string{"revision = revision + 1", "updated_at = ?"}
	args := []any{time.Now().UTC()}
	if f.Intent != nil {
		sets = append(sets, "intent = ?")
		args = append(args, *f.Intent)
	}
	if f.VerifiedDocuments != nil {
		docs, err := encodeDocuments(*f.VerifiedDocuments)
		if err != nil {
			return 0, err
		}
		sets = append(sets, "verified_documents = ?")
		args = append(args, docs)
	}

	query := "UPDATE sessions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if f.ExpectedRevision != nil {
		query += " AND revision = ?"
		args = append(args, *f.ExpectedRevision)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update session: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) ListUpdatedSince(ctx context.Context, since time.Time) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, intent, verified_documents, revision, created_at, updated_at
		 FROM sessions WHERE updated_at >= ? ORDER BY updated_at, id`, since.UTC())
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

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		sess   domain.Session
		intent sql.NullString
		docs   string
	)
	if err := row.Scan(&sess.ID, &intent, &docs, &sess.Revision, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return domain.Session{}, err
	}
	sess.Intent = intent.String
	if err := json.Unmarshal([]byte(docs), &sess.VerifiedDocuments); err != nil {
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
