package repositories

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultDatabaseURL keeps match history in a local SQLite file.
	DefaultDatabaseURL = "sqlite://gravwell.db"
)

// Open returns the repository selected by the URL scheme.
// sqlite://<path> opens a SQLite file, postgres:// and postgresql:// connect to Postgres.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		repository, err := NewSQLiteRepository(ctx, path)
		if err != nil {
			return nil, err
		}
		return repository, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		repository, err := NewPostgresRepository(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return repository, nil
	}
	return nil, fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
}
