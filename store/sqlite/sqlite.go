/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage contracts.

PURPOSE:
  Implements engine.LedgerStore and engine.StagingStore on SQLite. The
  contract is load-all/save-all: the engine owns the working state in
  memory and persists full snapshots, so each Save runs as one database
  transaction - either the new snapshot is fully visible or the old one
  survives, which is exactly the atomicity the engine's rollback discipline
  depends on.

KEY TABLES:
  movements:       Confirmed movement ledger
  pending_entries: Staging area awaiting operator confirmation
  settings:        Scalars (initial_balance)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Contract definitions and failure-mode notes
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/cashflow-engine/engine"
)

// Store implements engine.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: snapshots are single-writer, and ":memory:" databases
	// exist per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Confirmed movement ledger
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		reconciled INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		source_id TEXT,
		tags TEXT,
		attachments TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		created_by TEXT,
		updated_by TEXT,
		position INTEGER NOT NULL
	);

	-- Canonical list order is (date, time) descending; position preserves
	-- it byte-for-byte across a round trip.
	CREATE INDEX IF NOT EXISTS idx_movements_position ON movements(position);
	CREATE INDEX IF NOT EXISTS idx_movements_date ON movements(date, time);
	CREATE INDEX IF NOT EXISTS idx_movements_source ON movements(source, source_id);

	-- Staging area
	CREATE TABLE IF NOT EXISTS pending_entries (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		source TEXT NOT NULL,
		source_id TEXT,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT NOT NULL,
		selected INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		staged_at TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_position ON pending_entries(position);
	CREATE INDEX IF NOT EXISTS idx_pending_source ON pending_entries(source, source_id);

	-- Scalars
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) LoadLedger(ctx context.Context) ([]engine.Movement, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, date, time, description, amount, category,
		       status, reconciled, source, source_id, tags, attachments,
		       created_at, updated_at, created_by, updated_by
		FROM movements ORDER BY position`)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer rows.Close()

	var movements []engine.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, decimal.Zero, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, decimal.Zero, err
	}

	initial, err := s.loadInitialBalance(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return movements, initial, nil
}

func (s *Store) SaveLedger(ctx context.Context, movements []engine.Movement, initialBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM movements`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movements (
			id, direction, date, time, description, amount, category,
			status, reconciled, source, source_id, tags, attachments,
			created_at, updated_at, created_by, updated_by, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range movements {
		tags, err := marshalStrings(m.Tags)
		if err != nil {
			return err
		}
		attachments, err := marshalStrings(m.Attachments)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			string(m.ID), string(m.Direction), m.Date.String(), m.Time.String(),
			m.Description, m.Amount.String(), m.Category,
			string(m.Status), boolToInt(m.Reconciled), string(m.Source), m.SourceID,
			tags, attachments,
			m.CreatedAt.UTC().Format(time.RFC3339), m.UpdatedAt.UTC().Format(time.RFC3339),
			m.CreatedBy, m.UpdatedBy, i,
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('initial_balance', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		initialBalance.String(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) loadInitialBalance(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'initial_balance'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		// A corrupt scalar is repairable state, not a failed load.
		return decimal.Zero, nil
	}
	return value, nil
}

// =============================================================================
// STAGING STORE
// =============================================================================

func (s *Store) LoadStaging(ctx context.Context) ([]engine.PendingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, source, source_id, date, description,
		       amount, category, selected, processed, staged_at
		FROM pending_entries ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.PendingEntry
	for rows.Next() {
		var (
			e                   engine.PendingEntry
			id, direction, src  string
			sourceID            sql.NullString
			date, amount        string
			selected, processed int
			stagedAt            string
		)
		if err := rows.Scan(&id, &direction, &src, &sourceID, &date, &e.Description,
			&amount, &e.Category, &selected, &processed, &stagedAt); err != nil {
			return nil, err
		}
		e.ID = engine.MovementID(id)
		e.Direction = engine.Direction(direction)
		e.Source = engine.Source(src)
		e.SourceID = sourceID.String
		e.Date, _ = engine.ParseDate(date)
		e.Amount = parseDecimal(amount)
		e.Selected = selected != 0
		e.Processed = processed != 0
		e.StagedAt = parseTimestamp(stagedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) SaveStaging(ctx context.Context, entries []engine.PendingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_entries`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pending_entries (
			id, direction, source, source_id, date, description,
			amount, category, selected, processed, staged_at, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		_, err = stmt.ExecContext(ctx,
			string(e.ID), string(e.Direction), string(e.Source), e.SourceID,
			e.Date.String(), e.Description, e.Amount.String(), e.Category,
			boolToInt(e.Selected), boolToInt(e.Processed),
			e.StagedAt.UTC().Format(time.RFC3339), i,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func scanMovement(rows *sql.Rows) (engine.Movement, error) {
	var (
		m                           engine.Movement
		id, direction, date, clock  string
		amount, status, source      string
		sourceID, tags, attachments sql.NullString
		createdBy, updatedBy        sql.NullString
		reconciled                  int
		createdAt, updatedAt        string
	)
	err := rows.Scan(&id, &direction, &date, &clock, &m.Description, &amount,
		&m.Category, &status, &reconciled, &source, &sourceID, &tags,
		&attachments, &createdAt, &updatedAt, &createdBy, &updatedBy)
	if err != nil {
		return engine.Movement{}, err
	}

	m.ID = engine.MovementID(id)
	m.Direction = engine.Direction(direction)
	m.Date, _ = engine.ParseDate(date)
	m.Time = engine.ClockTime(clock)
	m.Amount = parseDecimal(amount)
	m.Status = engine.Status(status)
	m.Reconciled = reconciled != 0
	m.Source = engine.Source(source)
	m.SourceID = sourceID.String
	m.Tags = unmarshalStrings(tags)
	m.Attachments = unmarshalStrings(attachments)
	m.CreatedAt = parseTimestamp(createdAt)
	m.UpdatedAt = parseTimestamp(updatedAt)
	m.CreatedBy = createdBy.String
	m.UpdatedBy = updatedBy.String
	return m, nil
}

// parseDecimal tolerates corrupt amounts; the integrity guard treats the
// resulting zero as repairable state instead of failing the load.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalStrings(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" || raw.String == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil
	}
	return values
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
