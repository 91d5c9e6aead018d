package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sidas/internal/asset"
	"sidas/internal/persist/postgres"
)

// Postgres stores states in the sidas_asset_state table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres applies migrations and connects.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if err := postgres.Migrate(ctx, dsn); err != nil {
		return nil, err
	}
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, name string) (asset.State, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `SELECT state FROM sidas_asset_state WHERE asset = $1`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.NeverState(), nil
	}
	if err != nil {
		return asset.State{}, fmt.Errorf("query state for %q: %w", name, err)
	}
	var st asset.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return asset.State{}, fmt.Errorf("decode state for %q: %w", name, err)
	}
	return st.Normalize(), nil
}

// GetMany reads all requested states in one query.
func (p *Postgres) GetMany(ctx context.Context, names []string) (map[string]asset.State, error) {
	out := make(map[string]asset.State, len(names))
	for _, n := range names {
		out[n] = asset.NeverState()
	}
	if len(names) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT asset, state FROM sidas_asset_state WHERE asset = ANY($1)`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			raw  []byte
			st   asset.State
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("decode state for %q: %w", name, err)
		}
		out[name] = st.Normalize()
	}
	return out, rows.Err()
}

func (p *Postgres) Put(ctx context.Context, name string, st asset.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state for %q: %w", name, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sidas_asset_state (asset, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (asset) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		name, string(data))
	if err != nil {
		return fmt.Errorf("write state for %q: %w", name, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, name string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM sidas_asset_state WHERE asset = $1`, name); err != nil {
		return fmt.Errorf("delete state for %q: %w", name, err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }
