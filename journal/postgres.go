package journal

import (
	"context"
	"time"
)

// NewPostgres connects to dsn and creates the schema.
func NewPostgres(ctx context.Context, dsn string) (*DB, error) {
	j, err := Open(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	j.db.SetMaxOpenConns(10)
	j.db.SetMaxIdleConns(5)
	j.db.SetConnMaxLifetime(30 * time.Minute)
	return j, nil
}
