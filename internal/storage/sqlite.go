package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps each document as a row of the documents table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/gameoracle/oracle.db.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "gameoracle", "oracle.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			sport       TEXT NOT NULL,
			name        TEXT NOT NULL,
			body        TEXT NOT NULL,
			updated_at  INTEGER NOT NULL,
			PRIMARY KEY (sport, name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, sport models.Sport) (*models.Documents, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, body FROM documents WHERE sport = ?`, string(sport))
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := models.NewDocuments(sport)
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := decode(docs, name, []byte(body)); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	docs.Normalize()
	return docs, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, sport models.Sport, docs *models.Documents) error {
	parts, err := encode(sport, docs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.PersistenceWriteError{Document: "transaction", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixNano()
	for _, p := range parts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (sport, name, body, updated_at) VALUES (?,?,?,?)
			ON CONFLICT(sport, name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
			string(sport), p.name, string(p.body), now,
		)
		if err != nil {
			return &models.PersistenceWriteError{Document: p.name, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &models.PersistenceWriteError{Document: "transaction", Err: err}
	}
	return nil
}
