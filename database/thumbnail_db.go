package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
)

type ThumbnailInfo struct {
	ThumbnailPath string
	LastModified  int64
}

// GetThumbnailInfo returns sql.ErrNoRows when no thumbnail was recorded for the path.
func GetThumbnailInfo(ctx context.Context, db *sql.DB, originalPath string) (ThumbnailInfo, error) {
	var info ThumbnailInfo
	queryBuilder := psql.Select("thumbnail_path", "last_modified").
		From("thumbnails").
		Where(sq.Eq{"original_path": filepath.ToSlash(originalPath)}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return ThumbnailInfo{}, fmt.Errorf("failed to build SQL query for GetThumbnailInfo: %w", err)
	}

	err = db.QueryRowContext(ctx, sqlStr, args...).Scan(&info.ThumbnailPath, &info.LastModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ThumbnailInfo{}, sql.ErrNoRows
		}
		return ThumbnailInfo{}, fmt.Errorf("failed to query or scan thumbnail info for %s: %w", originalPath, err)
	}
	return info, nil
}

// SetThumbnailInfo inserts or updates the cached thumbnail for a source file.
func SetThumbnailInfo(ctx context.Context, db *sql.DB, originalPath, thumbnailPath string, lastModified int64) error {
	queryBuilder := psql.Insert("thumbnails").
		Columns("original_path", "thumbnail_path", "last_modified").
		Values(filepath.ToSlash(originalPath), thumbnailPath, lastModified).
		Suffix("ON CONFLICT(original_path) DO UPDATE SET").
		Suffix("thumbnail_path = excluded.thumbnail_path,").
		Suffix("last_modified = excluded.last_modified")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetThumbnailInfo: %w", err)
	}
	if _, err = db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute set thumbnail info for %s: %w", originalPath, err)
	}
	return nil
}

// IsThumbnailFresh reports whether a cached thumbnail exists on disk and was
// generated from a source no older than modTime.
func IsThumbnailFresh(ctx context.Context, db *sql.DB, originalPath string, modTime int64) (string, bool, error) {
	info, err := GetThumbnailInfo(ctx, db, originalPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if info.LastModified < modTime {
		return info.ThumbnailPath, false, nil
	}
	return info.ThumbnailPath, fileExists(info.ThumbnailPath), nil
}
