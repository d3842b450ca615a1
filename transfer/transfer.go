// Package transfer exports gallery metadata to JSON or CSV and restores it
// from a JSON export.
package transfer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/database"
	"github.com/camden-git/mediacatalog/groups"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/repository"
)

const FormatVersion = 1

const csvTagSeparator = ";"

var csvHeader = []string{
	"id", "file_path", "file_name", "file_type", "rating", "is_favorite",
	"tags", "comment", "created_at", "updated_at",
}

// Document is the JSON export layout.
type Document struct {
	Version    int           `json:"version"`
	ExportedAt string        `json:"exported_at"`
	Images     []ImageRecord `json:"images"`
	Groups     []GroupRecord `json:"groups"`
}

type ImageRecord struct {
	FilePath   string   `json:"file_path"`
	FileName   string   `json:"file_name"`
	FileType   string   `json:"file_type"`
	Rating     int      `json:"rating"`
	IsFavorite bool     `json:"is_favorite"`
	Tags       []string `json:"tags"`
	Comment    *string  `json:"comment"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type GroupRecord struct {
	Name                    string   `json:"name"`
	Description             *string  `json:"description"`
	Color                   string   `json:"color"`
	RepresentativeImagePath *string  `json:"representative_image_path"`
	MemberPaths             []string `json:"member_paths"`
}

// ImportSummary counts what an import changed.
type ImportSummary struct {
	Updated       int `json:"updated"`
	Skipped       int `json:"skipped"`
	GroupsCreated int `json:"groups_created"`
	GroupsSkipped int `json:"groups_skipped"`
	MembersAdded  int `json:"members_added"`
}

func (s ImportSummary) String() string {
	return fmt.Sprintf("Imported metadata for %d images (%d skipped), created %d groups", s.Updated, s.Skipped, s.GroupsCreated)
}

type Service struct {
	sqlDB  *sql.DB
	images repository.ImageRepositoryInterface
	groups repository.GroupRepositoryInterface
	log    *logger.Logger
	now    func() time.Time
}

func NewService(sqlDB *sql.DB, images repository.ImageRepositoryInterface, groupRepo repository.GroupRepositoryInterface, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{sqlDB: sqlDB, images: images, groups: groupRepo, log: log, now: time.Now}
}

// ExportJSON writes every image and group to path.
func (s *Service) ExportJSON(ctx context.Context, path string) (Document, error) {
	imageRows, err := database.SelectExportImages(ctx, s.sqlDB)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeDependency, err, "failed to read images")
	}
	groupRows, err := database.SelectExportGroups(ctx, s.sqlDB)
	if err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeDependency, err, "failed to read groups")
	}

	doc := Document{
		Version:    FormatVersion,
		ExportedAt: s.now().UTC().Format(time.RFC3339),
		Images:     make([]ImageRecord, 0, len(imageRows)),
		Groups:     make([]GroupRecord, 0, len(groupRows)),
	}
	for _, r := range imageRows {
		doc.Images = append(doc.Images, ImageRecord{
			FilePath:   r.FilePath,
			FileName:   r.FileName,
			FileType:   r.FileType,
			Rating:     r.Rating,
			IsFavorite: r.IsFavorite,
			Tags:       models.DecodeTags(nullable(r.Tags)),
			Comment:    nullable(r.Comment),
			CreatedAt:  unixToISO(r.CreatedAt),
			UpdatedAt:  unixToISO(r.UpdatedAt),
		})
	}
	for _, g := range groupRows {
		members := g.MemberPaths
		if members == nil {
			members = []string{}
		}
		doc.Groups = append(doc.Groups, GroupRecord{
			Name:                    g.Name,
			Description:             nullable(g.Description),
			Color:                   g.Color,
			RepresentativeImagePath: nullable(g.RepresentativeImagePath),
			MemberPaths:             members,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Document{}, apperrors.Wrap(apperrors.CodeDependency, err, "failed to write export file")
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{"path": path, "images": len(doc.Images), "groups": len(doc.Groups)}), "metadata exported")
	return doc, nil
}

// ExportCSV writes image metadata only, one row per image. It returns the
// number of rows written.
func (s *Service) ExportCSV(ctx context.Context, path string) (int, error) {
	rows, err := database.SelectExportImages(ctx, s.sqlDB)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "failed to read images")
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "failed to create export file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		comment := ""
		if r.Comment.Valid {
			comment = r.Comment.String
		}
		record := []string{
			strconv.FormatInt(r.ID, 10),
			r.FilePath,
			r.FileName,
			r.FileType,
			strconv.Itoa(r.Rating),
			boolDigit(r.IsFavorite),
			strings.Join(models.DecodeTags(nullable(r.Tags)), csvTagSeparator),
			comment,
			unixToISO(r.CreatedAt),
			unixToISO(r.UpdatedAt),
		}
		if err := w.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write csv row for image ID %d: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDependency, err, "failed to close export file")
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{"path": path, "images": len(rows)}), "metadata exported as csv")
	return len(rows), nil
}

// ImportJSON applies an export to the images that exist here, matched by
// file path. Edits made this way are not recorded in the undo history.
// Groups are matched by name and created when missing.
func (s *Service) ImportJSON(ctx context.Context, path string) (ImportSummary, error) {
	ctx = s.log.WithField(s.log.WithOperation(ctx, "transfer.import"), "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportSummary{}, apperrors.Wrap(apperrors.CodeValidation, err, "failed to read import file")
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportSummary{}, apperrors.Wrap(apperrors.CodeValidation, err, "import file is not a valid export")
	}
	if doc.Version != FormatVersion {
		return ImportSummary{}, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported export version %d", doc.Version))
	}

	summary := ImportSummary{}
	idsByPath := map[string]int64{}

	for _, rec := range doc.Images {
		img, err := s.images.GetByPath(ctx, rec.FilePath)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				summary.Skipped++
				continue
			}
			return summary, apperrors.FromStore(err, "failed to look up image")
		}
		if rec.Rating < 0 || rec.Rating > 5 {
			summary.Skipped++
			continue
		}
		idsByPath[rec.FilePath] = img.ID

		rating, fav := rec.Rating, rec.IsFavorite
		comment := ""
		if rec.Comment != nil {
			comment = *rec.Comment
		}
		tags := []string{}
		for _, t := range rec.Tags {
			tags, _ = catalog.AddTag(tags, t)
		}
		upd := repository.MetadataUpdate{Rating: &rating, Comment: &comment, Tags: tags, IsFavorite: &fav}
		if err := s.images.UpdateMetadata(ctx, img.ID, upd); err != nil {
			return summary, apperrors.FromStore(err, "failed to update image")
		}
		summary.Updated++
	}

	for _, rec := range doc.Groups {
		created, added, err := s.importGroup(ctx, rec, idsByPath)
		if apperrors.IsCode(err, apperrors.CodeValidation) {
			s.log.Warn(s.log.WithFields(ctx, map[string]any{"group": rec.Name, "error": err.Error()}), "skipping invalid group")
			summary.GroupsSkipped++
			continue
		}
		if err != nil {
			return summary, err
		}
		if created {
			summary.GroupsCreated++
		}
		summary.MembersAdded += int(added)
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"updated": summary.Updated, "skipped": summary.Skipped,
		"groups_created": summary.GroupsCreated, "groups_skipped": summary.GroupsSkipped,
	}), "metadata imported")
	return summary, nil
}

func (s *Service) importGroup(ctx context.Context, rec GroupRecord, idsByPath map[string]int64) (bool, int64, error) {
	in, err := groups.GroupInput{Name: rec.Name, Description: rec.Description, Color: rec.Color}.Validated()
	if err != nil {
		return false, 0, err
	}

	created := false
	group, err := s.groups.GetByName(ctx, in.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		group = &models.Group{Name: in.Name, Description: in.Description, Color: in.Color}
		if err := s.groups.Create(ctx, group); err != nil {
			return false, 0, apperrors.FromStore(err, "failed to create group")
		}
		created = true
	} else if err != nil {
		return false, 0, apperrors.FromStore(err, "failed to look up group")
	}

	ids := make([]int64, 0, len(rec.MemberPaths))
	for _, p := range rec.MemberPaths {
		if id, ok := idsByPath[p]; ok {
			ids = append(ids, id)
		}
	}
	var added int64
	if len(ids) > 0 {
		added, err = s.groups.AddImages(ctx, ids, group.ID)
		if err != nil {
			return created, 0, apperrors.FromStore(err, "failed to add group members")
		}
	}

	if rec.RepresentativeImagePath != nil {
		if id, ok := idsByPath[*rec.RepresentativeImagePath]; ok {
			member, err := s.groups.IsMember(ctx, group.ID, id)
			if err != nil {
				return created, added, apperrors.FromStore(err, "failed to check group member")
			}
			if member {
				if err := s.groups.SetRepresentativeImage(ctx, group.ID, &id); err != nil {
					return created, added, apperrors.FromStore(err, "failed to set representative image")
				}
			}
		}
	}
	return created, added, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func unixToISO(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
