package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store backed by an embedded SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and applies migrations.
// Any failure here is unrecoverable and must abort startup.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open monitor db %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping monitor db %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate monitor db: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS monitors (
		id TEXT NOT NULL,
		owning_group_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		host_name TEXT NOT NULL,
		query_port INTEGER NOT NULL,
		current_message_id TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, owning_group_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monitors_group ON monitors(owning_group_id)`,
}

func (s *SQLiteStore) Upsert(ctx context.Context, m Monitor) error {
	const upsert = `
INSERT INTO monitors (id, owning_group_id, channel_id, host_name, query_port, current_message_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id, owning_group_id) DO UPDATE SET
	channel_id = excluded.channel_id,
	host_name = excluded.host_name,
	query_port = excluded.query_port,
	current_message_id = excluded.current_message_id,
	updated_at = CURRENT_TIMESTAMP;
`
	_, err := s.db.ExecContext(ctx, upsert,
		m.ID, m.OwningGroupID, m.ChannelID, m.HostName, m.QueryPort, m.CurrentMessageID)
	if err != nil {
		return fmt.Errorf("upsert monitor %s/%s: %w", m.OwningGroupID, m.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id, owningGroupID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM monitors WHERE id = ? AND owning_group_id = ?`, id, owningGroupID)
	if err != nil {
		return false, fmt.Errorf("remove monitor %s/%s: %w", owningGroupID, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove monitor %s/%s: %w", owningGroupID, id, err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context, owningGroupID string) ([]Monitor, error) {
	const base = `
SELECT id, owning_group_id, channel_id, host_name, query_port, current_message_id
  FROM monitors`

	var (
		rows *sql.Rows
		err  error
	)
	if owningGroupID != "" {
		rows, err = s.db.QueryContext(ctx, base+` WHERE owning_group_id = ?`, owningGroupID)
	} else {
		rows, err = s.db.QueryContext(ctx, base)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
