package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/VentureIA/chorus/internal/db"
)

// Postgres stores values in the kv_store table created by the db migrations.
type Postgres struct{ db *db.DB }

func NewPostgres(d *db.DB) *Postgres { return &Postgres{db: d} }

func (p *Postgres) Get(ctx context.Context, file, key string) (json.RawMessage, error) {
	if err := validate(file, key, nil, false); err != nil {
		return nil, err
	}
	var raw []byte
	err := p.db.Pool.QueryRow(ctx, `SELECT value::text FROM kv_store WHERE file=$1 AND key=$2`, file, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", file, key, err)
	}
	return json.RawMessage(raw), nil
}

func (p *Postgres) Set(ctx context.Context, file, key string, value json.RawMessage) error {
	if err := validate(file, key, value, true); err != nil {
		return err
	}
	_, err := p.db.Pool.Exec(ctx, `
INSERT INTO kv_store(file, key, value, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (file, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now();
`, file, key, string(value))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", file, key, err)
	}
	return nil
}
