package database

import (
	"context"
	"database/sql"
	"fmt"
)

// ExportImageRow is one images row as written by the JSON and CSV exporters.
type ExportImageRow struct {
	ID         int64
	FilePath   string
	FileName   string
	FileType   string
	Rating     int
	IsFavorite bool
	Tags       sql.NullString
	Comment    sql.NullString
	CreatedAt  int64
	UpdatedAt  int64
}

// ExportGroupRow is one group with the file paths of its members.
type ExportGroupRow struct {
	ID                      int64
	Name                    string
	Description             sql.NullString
	Color                   string
	RepresentativeImagePath sql.NullString
	MemberPaths             []string
}

func SelectExportImages(ctx context.Context, db *sql.DB) ([]ExportImageRow, error) {
	sqlStr, args, err := psql.Select(
		"id", "file_path", "file_name", "file_type", "rating", "is_favorite",
		"tags", "comment", "created_at", "updated_at",
	).From("images").OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for SelectExportImages: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images for export: %w", err)
	}
	defer rows.Close()

	var out []ExportImageRow
	for rows.Next() {
		var r ExportImageRow
		if err := rows.Scan(&r.ID, &r.FilePath, &r.FileName, &r.FileType, &r.Rating, &r.IsFavorite,
			&r.Tags, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image row for export: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate image rows for export: %w", err)
	}
	return out, nil
}

func SelectExportGroups(ctx context.Context, db *sql.DB) ([]ExportGroupRow, error) {
	sqlStr, args, err := psql.Select("g.id", "g.name", "g.description", "g.color", "ri.file_path").
		From("image_groups g").
		LeftJoin("images ri ON ri.id = g.representative_image_id").
		OrderBy("g.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for SelectExportGroups: %w", err)
	}

	groups, err := scanExportGroups(ctx, db, sqlStr, args)
	if err != nil {
		return nil, err
	}

	members, err := selectMemberPaths(ctx, db)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].MemberPaths = members[groups[i].ID]
	}
	return groups, nil
}

func scanExportGroups(ctx context.Context, db *sql.DB, sqlStr string, args []interface{}) ([]ExportGroupRow, error) {
	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for export: %w", err)
	}
	defer rows.Close()

	var out []ExportGroupRow
	for rows.Next() {
		var g ExportGroupRow
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.RepresentativeImagePath); err != nil {
			return nil, fmt.Errorf("failed to scan group row for export: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func selectMemberPaths(ctx context.Context, db *sql.DB) (map[int64][]string, error) {
	sqlStr, args, err := psql.Select("m.group_id", "i.file_path").
		From("image_group_members m").
		Join("images i ON i.id = m.image_id").
		OrderBy("m.group_id ASC", "i.file_path ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for group members: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members for export: %w", err)
	}
	defer rows.Close()

	members := make(map[int64][]string)
	for rows.Next() {
		var groupID int64
		var path string
		if err := rows.Scan(&groupID, &path); err != nil {
			return nil, fmt.Errorf("failed to scan group member row: %w", err)
		}
		members[groupID] = append(members[groupID], path)
	}
	return members, rows.Err()
}
