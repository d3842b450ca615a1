package transfer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/repository"
	"github.com/camden-git/mediacatalog/testutil"
)

type fixture struct {
	svc    *Service
	images *repository.ImageRepository
	groups *repository.GroupRepository
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	images := repository.NewImageRepository(db)
	groups := repository.NewGroupRepository(db)
	svc := NewService(sqlDB, images, groups, logger.Nop())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, images: images, groups: groups, dir: t.TempDir()}
}

func (f *fixture) insert(t *testing.T, path string) int64 {
	t.Helper()
	img := &models.Image{FilePath: path, FileName: filepath.Base(path), FileType: models.FileTypeImage}
	inserted, err := f.images.InsertIfAbsent(context.Background(), img)
	require.NoError(t, err)
	require.True(t, inserted)
	return img.ID
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestExportJSON(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.insert(t, "/photos/a.jpg")
	b := f.insert(t, "/photos/b.jpg")
	require.NoError(t, f.images.UpdateMetadata(ctx, a, repository.MetadataUpdate{
		Rating: intPtr(4), Tags: []string{"beach", "sun"}, Comment: strPtr("nice"), IsFavorite: boolPtr(true),
	}))

	g := &models.Group{Name: "Trip", Color: "#FF0000"}
	require.NoError(t, f.groups.Create(ctx, g))
	_, err := f.groups.AddImages(ctx, []int64{a, b}, g.ID)
	require.NoError(t, err)
	require.NoError(t, f.groups.SetRepresentativeImage(ctx, g.ID, &b))

	out := filepath.Join(f.dir, "export.json")
	doc, err := f.svc.ExportJSON(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.ExportedAt)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Images, 2)
	assert.Equal(t, "/photos/a.jpg", decoded.Images[0].FilePath)
	assert.Equal(t, 4, decoded.Images[0].Rating)
	assert.True(t, decoded.Images[0].IsFavorite)
	assert.Equal(t, []string{"beach", "sun"}, decoded.Images[0].Tags)
	require.NotNil(t, decoded.Images[0].Comment)
	assert.Equal(t, "nice", *decoded.Images[0].Comment)
	assert.Empty(t, decoded.Images[1].Tags)
	assert.Nil(t, decoded.Images[1].Comment)

	require.Len(t, decoded.Groups, 1)
	assert.Equal(t, "Trip", decoded.Groups[0].Name)
	assert.ElementsMatch(t, []string{"/photos/a.jpg", "/photos/b.jpg"}, decoded.Groups[0].MemberPaths)
	require.NotNil(t, decoded.Groups[0].RepresentativeImagePath)
	assert.Equal(t, "/photos/b.jpg", *decoded.Groups[0].RepresentativeImagePath)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.insert(t, "/photos/a.jpg")
	f.insert(t, "/photos/b,c.jpg")
	require.NoError(t, f.images.UpdateMetadata(ctx, a, repository.MetadataUpdate{
		Rating: intPtr(2), Tags: []string{"x", "y"}, Comment: strPtr("line \"quoted\""),
	}))

	out := filepath.Join(f.dir, "export.csv")
	n, err := f.svc.ExportCSV(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	file, err := os.Open(out)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "/photos/a.jpg", records[1][1])
	assert.Equal(t, "2", records[1][4])
	assert.Equal(t, "0", records[1][5])
	assert.Equal(t, "x;y", records[1][6])
	assert.Equal(t, "line \"quoted\"", records[1][7])
	assert.Equal(t, "/photos/b,c.jpg", records[2][1])
	assert.Equal(t, "", records[2][6])
}

func TestImportJSONRoundTrip(t *testing.T) {
	src := newFixture(t)
	ctx := context.Background()
	a := src.insert(t, "/photos/a.jpg")
	b := src.insert(t, "/photos/b.jpg")
	src.insert(t, "/photos/only-there.jpg")
	require.NoError(t, src.images.UpdateMetadata(ctx, a, repository.MetadataUpdate{
		Rating: intPtr(5), Tags: []string{"keep"}, IsFavorite: boolPtr(true),
	}))
	g := &models.Group{Name: "Best", Color: "#00FF00"}
	require.NoError(t, src.groups.Create(ctx, g))
	_, err := src.groups.AddImages(ctx, []int64{a, b}, g.ID)
	require.NoError(t, err)
	require.NoError(t, src.groups.SetRepresentativeImage(ctx, g.ID, &a))

	out := filepath.Join(src.dir, "export.json")
	_, err = src.svc.ExportJSON(ctx, out)
	require.NoError(t, err)

	dst := newFixture(t)
	da := dst.insert(t, "/photos/a.jpg")
	db := dst.insert(t, "/photos/b.jpg")

	summary, err := dst.svc.ImportJSON(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.GroupsCreated)
	assert.Equal(t, "Imported metadata for 2 images (1 skipped), created 1 groups", summary.String())

	img, err := dst.images.GetByID(ctx, da)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Rating)
	assert.True(t, img.IsFavorite)
	assert.Equal(t, []string{"keep"}, models.DecodeTags(img.Tags))

	group, err := dst.groups.GetByName(ctx, "Best")
	require.NoError(t, err)
	assert.Equal(t, "#00FF00", group.Color)
	members, err := dst.groups.MemberIDs(ctx, group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{da, db}, members)
	require.NotNil(t, group.RepresentativeImageID)
	assert.Equal(t, da, *group.RepresentativeImageID)

	again, err := dst.svc.ImportJSON(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 0, again.GroupsCreated)
	assert.Equal(t, 0, again.MembersAdded)
}

func TestImportJSONSkipsInvalidRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.insert(t, "/photos/a.jpg")

	doc := Document{Version: FormatVersion, Images: []ImageRecord{{FilePath: "/photos/a.jpg", Rating: 9}}}
	path := filepath.Join(f.dir, "bad.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	summary, err := f.svc.ImportJSON(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)

	img, err := f.images.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, img.Rating)
}

func writeDocument(t *testing.T, dir string, doc Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "import.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestImportJSONDedupesTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.insert(t, "/photos/a.jpg")

	path := writeDocument(t, f.dir, Document{Version: FormatVersion, Images: []ImageRecord{
		{FilePath: "/photos/a.jpg", Tags: []string{"fruit", "Fruit", " FRUIT ", "", "  ", "veg"}},
	}})
	summary, err := f.svc.ImportJSON(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	img, err := f.images.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"fruit", "veg"}, models.DecodeTags(img.Tags))
}

func TestImportJSONSkipsInvalidGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "/photos/a.jpg")

	path := writeDocument(t, f.dir, Document{
		Version: FormatVersion,
		Images:  []ImageRecord{{FilePath: "/photos/a.jpg"}},
		Groups: []GroupRecord{
			{Name: strings.Repeat("n", 101), MemberPaths: []string{"/photos/a.jpg"}},
			{Name: "Long", Description: strPtr(strings.Repeat("d", 501))},
			{Name: "Purple", Color: "purple"},
			{Name: "   "},
			{Name: "  Trips  ", Description: strPtr("   "), MemberPaths: []string{"/photos/a.jpg"}},
		},
	})
	summary, err := f.svc.ImportJSON(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.GroupsCreated)
	assert.Equal(t, 4, summary.GroupsSkipped)
	assert.Equal(t, 1, summary.MembersAdded)

	all, err := f.groups.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Trips", all[0].Name)
	assert.Nil(t, all[0].Description)
	assert.Equal(t, models.DefaultGroupColor, all[0].Color)
}

func TestImportJSONRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	garbage := filepath.Join(f.dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0o644))
	_, err := f.svc.ImportJSON(ctx, garbage)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	future := filepath.Join(f.dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 2, "images": []}`), 0o644))
	_, err = f.svc.ImportJSON(ctx, future)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = f.svc.ImportJSON(ctx, filepath.Join(f.dir, "missing.json"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
