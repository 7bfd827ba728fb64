package store

import (
	"context"
	"fmt"
	"strings"
)

// Open constructs a store for the configured driver. An empty driver selects
// sqlite when a path is set, memory otherwise.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if path == "" {
			return nil, fmt.Errorf("sqlite driver requires storage.path")
		}
		return OpenSQLite(ctx, path)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires storage.dsn")
		}
		return OpenPostgres(ctx, dsn)
	case "":
		if path != "" {
			return OpenSQLite(ctx, path)
		}
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q (allowed: memory, sqlite, postgres)", driver)
	}
}
