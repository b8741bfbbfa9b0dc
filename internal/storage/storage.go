// Package storage provides SQLite-backed persistence for the fetched market
// catalog and the notification cooldown log. Computed graphs are never
// persisted; they are recomputed on demand.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/polygraph/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db        *sql.DB
	maxEvents int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/polygraph/data.db.
func New(maxEvents int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "polygraph", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxEvents: maxEvents}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			resolution_date INTEGER,
			position        INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS markets (
			id              TEXT PRIMARY KEY,
			event_id        TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			question        TEXT NOT NULL,
			volume          REAL NOT NULL DEFAULT 0,
			volume_24hr     REAL NOT NULL DEFAULT 0,
			probability     REAL NOT NULL DEFAULT 0,
			resolution_date INTEGER,
			token_ids       TEXT NOT NULL DEFAULT '[]',
			category        TEXT,
			position        INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notified_pairs (
			id          TEXT PRIMARY KEY,
			pair_key    TEXT NOT NULL,
			correlation REAL NOT NULL,
			notified_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_markets_event ON markets(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notified_pair_key ON notified_pairs(pair_key)`,
		`CREATE INDEX IF NOT EXISTS idx_notified_at ON notified_pairs(notified_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveCatalog atomically replaces the cached catalog with the given events,
// capped to maxEvents in fetch order.
func (s *Storage) SaveCatalog(events []models.EventRecord) error {
	if s.maxEvents > 0 && len(events) > s.maxEvents {
		events = events[:s.maxEvents]
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM markets`); err != nil {
		return fmt.Errorf("failed to clear markets: %w", err)
	}

	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("invalid event %s: %w", ev.ID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO events (id, title, resolution_date, position)
			VALUES (?,?,?,?)`,
			ev.ID, ev.Title, timePtrToNano(ev.ResolutionDate), i,
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}

		for j := range ev.Markets {
			m := &ev.Markets[j]
			if err := m.Validate(); err != nil {
				return fmt.Errorf("invalid market %s: %w", m.ID, err)
			}
			tokenJSON, err := json.Marshal(m.TokenIDs)
			if err != nil {
				return fmt.Errorf("failed to marshal token ids: %w", err)
			}
			if _, err := tx.Exec(`
				INSERT INTO markets
					(id, event_id, question, volume, volume_24hr, probability,
					 resolution_date, token_ids, category, position)
				VALUES (?,?,?,?,?,?,?,?,?,?)`,
				m.ID, ev.ID, m.Question, m.Volume, m.Volume24hr, m.Probability,
				timePtrToNano(m.ResolutionDate), string(tokenJSON), m.Category, j,
			); err != nil {
				return fmt.Errorf("failed to insert market: %w", err)
			}
		}
	}

	return tx.Commit()
}

// LoadCatalog returns the cached catalog in its original fetch order, or an
// empty slice when nothing has been cached yet.
func (s *Storage) LoadCatalog() ([]models.EventRecord, error) {
	rows, err := s.db.Query(`SELECT id, title, resolution_date FROM events ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []models.EventRecord{}
	index := make(map[string]int)
	for rows.Next() {
		var ev models.EventRecord
		var resNano sql.NullInt64
		if err := rows.Scan(&ev.ID, &ev.Title, &resNano); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.ResolutionDate = nanoToTimePtr(resNano)
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := s.db.Query(`
		SELECT id, event_id, question, volume, volume_24hr, probability,
		       resolution_date, token_ids, category
		FROM markets ORDER BY event_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var m models.MarketRecord
		var resNano sql.NullInt64
		var tokenJSON string
		var category sql.NullString
		if err := mrows.Scan(
			&m.ID, &m.EventID, &m.Question, &m.Volume, &m.Volume24hr, &m.Probability,
			&resNano, &tokenJSON, &category,
		); err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		m.ResolutionDate = nanoToTimePtr(resNano)
		m.Category = category.String
		if err := json.Unmarshal([]byte(tokenJSON), &m.TokenIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal token ids: %w", err)
		}
		if i, ok := index[m.EventID]; ok {
			events[i].Markets = append(events[i].Markets, m)
		}
	}
	return events, mrows.Err()
}

// RecordNotified logs that a market pair was included in a digest.
func (s *Storage) RecordNotified(pairKey string, correlation float64) error {
	_, err := s.db.Exec(`
		INSERT INTO notified_pairs (id, pair_key, correlation, notified_at)
		VALUES (?,?,?,?)`,
		uuid.New().String(), pairKey, correlation, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record notified pair: %w", err)
	}
	return nil
}

// LastNotified returns the most recent notification time for a pair, or a
// zero time when the pair was never notified.
func (s *Storage) LastNotified(pairKey string) (time.Time, error) {
	row := s.db.QueryRow(`
		SELECT MAX(notified_at) FROM notified_pairs WHERE pair_key = ?`, pairKey)

	var nano sql.NullInt64
	if err := row.Scan(&nano); err != nil {
		return time.Time{}, fmt.Errorf("failed to query notified pair: %w", err)
	}
	if !nano.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, nano.Int64), nil
}

// PruneNotified removes notification records older than the cutoff.
func (s *Storage) PruneNotified(olderThan time.Time) error {
	if _, err := s.db.Exec(`DELETE FROM notified_pairs WHERE notified_at < ?`,
		olderThan.UnixNano()); err != nil {
		return fmt.Errorf("failed to prune notified pairs: %w", err)
	}
	return nil
}

func timePtrToNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nanoToTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}
