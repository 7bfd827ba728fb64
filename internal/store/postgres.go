package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store backed by PostgreSQL, for deployments that
// already run a database and want the monitor table alongside it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects using the supplied connection string and ensures the
// monitor table exists. Connection or migration failure aborts startup.
func OpenPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS monitors (
    id TEXT NOT NULL,
    owning_group_id TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    host_name TEXT NOT NULL,
    query_port INTEGER NOT NULL,
    current_message_id TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (id, owning_group_id)
);
`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, m Monitor) error {
	const upsert = `
INSERT INTO monitors (id, owning_group_id, channel_id, host_name, query_port, current_message_id, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (id, owning_group_id) DO UPDATE SET
    channel_id = EXCLUDED.channel_id,
    host_name = EXCLUDED.host_name,
    query_port = EXCLUDED.query_port,
    current_message_id = EXCLUDED.current_message_id,
    updated_at = NOW();
`
	_, err := p.pool.Exec(ctx, upsert,
		m.ID, m.OwningGroupID, m.ChannelID, m.HostName, m.QueryPort, m.CurrentMessageID)
	if err != nil {
		return fmt.Errorf("upsert monitor %s/%s: %w", m.OwningGroupID, m.ID, err)
	}
	return nil
}

func (p *PostgresStore) Remove(ctx context.Context, id, owningGroupID string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM monitors WHERE id = $1 AND owning_group_id = $2`, id, owningGroupID)
	if err != nil {
		return false, fmt.Errorf("remove monitor %s/%s: %w", owningGroupID, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresStore) List(ctx context.Context, owningGroupID string) ([]Monitor, error) {
	const base = `
SELECT id, owning_group_id, channel_id, host_name, query_port, current_message_id
  FROM monitors`

	var (
		rows pgx.Rows
		err  error
	)
	if owningGroupID != "" {
		rows, err = p.pool.Query(ctx, base+` WHERE owning_group_id = $1`, owningGroupID)
	} else {
		rows, err = p.pool.Query(ctx, base)
	}
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	var monitors []Monitor
	for rows.Next() {
		var m Monitor
		if err := rows.Scan(&m.ID, &m.OwningGroupID, &m.ChannelID, &m.HostName, &m.QueryPort, &m.CurrentMessageID); err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		monitors = append(monitors, m)
	}
	return monitors, rows.Err()
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
