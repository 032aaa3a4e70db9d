// Package storage persists the per-sport predictions, stats and teams documents. A commit
// writes all three or none of them.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// Store loads and commits one sport's documents.
type Store interface {
	// Load returns the committed documents, or empty ones if nothing was committed yet.
	Load(ctx context.Context, sport models.Sport) (*models.Documents, error)
	// Commit replaces all three documents at once. On error nothing is visible to Load.
	Commit(ctx context.Context, sport models.Sport, docs *models.Documents) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for a configured backend.
func Open(backend, dataDir, dbPath string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dataDir)
	case BackendSQLite:
		return NewSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

type encoded struct {
	name string
	body []byte
}

// encode renders the documents in commit order. Map keys are sorted by encoding/json, so
// equal documents give equal bytes.
func encode(sport models.Sport, docs *models.Documents) ([]encoded, error) {
	docs.Normalize()
	docs.Predictions.Sport = sport
	docs.Stats.Sport = sport
	docs.Teams.Sport = sport

	parts := []struct {
		name string
		v    any
	}{
		{models.DocPredictions, docs.Predictions},
		{models.DocStats, docs.Stats},
		{models.DocTeams, docs.Teams},
	}
	out := make([]encoded, 0, len(parts))
	for _, p := range parts {
		body, err := json.MarshalIndent(p.v, "", "  ")
		if err != nil {
			return nil, &models.PersistenceWriteError{Document: p.name, Err: err}
		}
		out = append(out, encoded{name: p.name, body: body})
	}
	return out, nil
}

func decode(docs *models.Documents, name string, body []byte) error {
	var target any
	switch name {
	case models.DocPredictions:
		target = docs.Predictions
	case models.DocStats:
		target = docs.Stats
	case models.DocTeams:
		target = docs.Teams
	default:
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode %s document: %w", name, err)
	}
	return nil
}
