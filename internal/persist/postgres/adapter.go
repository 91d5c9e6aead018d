package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sidas/internal/dataset"
	"sidas/internal/persist"
)

const backendName = "postgres"

// Adapter persists record sets, one row per record. Values that are not
// record sets are rejected with persist.ErrUnsupportedValue.
type Adapter struct {
	db *sql.DB
}

func NewAdapter(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

func (a *Adapter) Backend() string { return backendName }

func (a *Adapter) Close() error { return a.db.Close() }

func (a *Adapter) Load(ctx context.Context, key string) (any, error) {
	var n int64
	err := a.db.QueryRowContext(ctx, `SELECT row_count FROM sidas_assets WHERE key = $1`, key).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.NotFound(backendName, key)
	}
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT record FROM sidas_asset_rows WHERE asset_key = $1 ORDER BY ordinal`, key)
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	defer rows.Close()

	out := make(dataset.Records, 0, n)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persist.Wrap(backendName, "load", key, err)
		}
		var r dataset.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, persist.Wrap(backendName, "load", key, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	if int64(len(out)) != n {
		return nil, persist.Wrap(backendName, "load", key,
			fmt.Errorf("expected %d rows, read %d", n, len(out)))
	}
	return out, nil
}

// Save replaces the header and all rows of key in one transaction.
func (a *Adapter) Save(ctx context.Context, key string, value any) (err error) {
	rs, err := dataset.From(value)
	if err != nil {
		return persist.Wrap(backendName, "save", key, fmt.Errorf("%w: %v", persist.ErrUnsupportedValue, err))
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO sidas_assets (key, row_count, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET row_count = EXCLUDED.row_count, updated_at = EXCLUDED.updated_at`,
		key, len(rs)); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sidas_asset_rows WHERE asset_key = $1`, key); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	if err = copyRows(ctx, tx, key, rs); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	if err = tx.Commit(); err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	return nil
}

func copyRows(ctx context.Context, tx *sql.Tx, key string, rs dataset.Records) error {
	if len(rs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("sidas_asset_rows", "asset_key", "ordinal", "record"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rs {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		// COPY text format: pass JSON as string, []byte would be sent as bytea.
		if _, err := stmt.ExecContext(ctx, key, int64(i), string(b)); err != nil {
			return err
		}
	}
	_, err = stmt.ExecContext(ctx)
	return err
}

func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := a.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sidas_assets WHERE key = $1)`, key).Scan(&ok)
	if err != nil {
		return false, persist.Wrap(backendName, "exists", key, err)
	}
	return ok, nil
}

// Delete removes the header; rows go with it through ON DELETE CASCADE.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM sidas_assets WHERE key = $1`, key)
	return persist.Wrap(backendName, "delete", key, err)
}
