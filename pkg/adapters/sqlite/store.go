package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
)

// FlowRepository stores portable flow documents in SQLite, one JSON
// document per row.
type FlowRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.FlowRepository = (*FlowRepository)(nil)

// New opens (or creates) the database at dbPath.
// ":memory:" is accepted; the pool is then pinned to one connection.
func New(dbPath string) (*FlowRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	repo := &FlowRepository{db: db, now: time.Now}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

func (r *FlowRepository) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS flows (
			id TEXT PRIMARY KEY,
			entry_step_id TEXT NOT NULL,
			version TEXT,
			document TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flows_updated ON flows(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Get loads and decodes the document stored under id.
func (r *FlowRepository) Get(ctx context.Context, id string) (*domain.Flow, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM flows WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flow %q: %w", id, domain.ErrFlowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow %s: %w", id, err)
	}

	var flow domain.Flow
	if err := json.Unmarshal([]byte(doc), &flow); err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}
	return &flow, nil
}

// Save upserts the document, keeping the original creation time.
func (r *FlowRepository) Save(ctx context.Context, id string, flow *domain.Flow) error {
	if flow == nil {
		return domain.ErrNilFlow
	}
	doc, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to encode flow %s: %w", id, err)
	}

	now := r.now().UTC()
	query := `INSERT INTO flows (id, entry_step_id, version, document, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              entry_step_id = excluded.entry_step_id,
	              version = excluded.version,
	              document = excluded.document,
	              updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, id, flow.EntryStepID, flow.Version, string(doc), now, now); err != nil {
		return fmt.Errorf("failed to save flow %s: %w", id, err)
	}
	return nil
}

// Delete removes the flow.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	return nil
}

// List returns flow IDs in ascending order.
func (r *FlowRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM flows ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan flow id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database.
func (r *FlowRepository) Close() error {
	return r.db.Close()
}
