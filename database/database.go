package database

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// EnsureThumbnailTable creates the raw thumbnail cache table. It lives outside
// the gorm models because only the worker pool touches it.
func EnsureThumbnailTable(ctx context.Context, db *sql.DB) error {
	sqlStmt := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		original_path TEXT PRIMARY KEY,
		thumbnail_path TEXT NOT NULL,
		last_modified INTEGER NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, sqlStmt); err != nil {
		return fmt.Errorf("failed to create thumbnails table: %w", err)
	}
	return nil
}
