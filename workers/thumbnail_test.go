package workers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/database"
	"github.com/camden-git/mediacatalog/media"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/repository"
	"github.com/camden-git/mediacatalog/testutil"
	"github.com/camden-git/mediacatalog/workers"
)

type flakyThumbnailer struct {
	calls    atomic.Int32
	failures int32
	err      error
	path     string
}

func (f *flakyThumbnailer) FromVideo(context.Context, string) (string, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	if n <= f.failures {
		return "", errors.New("ffmpeg exited with status 1")
	}
	return f.path, nil
}

type blockingThumbnailer struct {
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (b *blockingThumbnailer) FromVideo(ctx context.Context, _ string) (string, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return "/thumbs/x.jpg", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type env struct {
	images *repository.ImageRepository
	store  *catalog.Store
	opts   workers.GeneratorOptions
	video  string
	id     int64
}

func newEnv(t *testing.T, thumbnailer workers.VideoThumbnailer) *env {
	t.Helper()
	db := testutil.NewDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))

	images := repository.NewImageRepository(db)
	img := &models.Image{FilePath: video, FileType: models.FileTypeVideo}
	_, err = images.InsertIfAbsent(context.Background(), img)
	require.NoError(t, err)

	store := catalog.NewStore(nil)
	store.ReplaceAll(catalog.ItemsFromModels([]models.Image{*img}))

	return &env{
		images: images,
		store:  store,
		video:  video,
		id:     img.ID,
		opts: workers.GeneratorOptions{
			Thumbnailer: thumbnailer,
			Images:      images,
			CacheDB:     sqlDB,
			Store:       store,
			NumWorkers:  1,
			RetryDelay:  time.Millisecond,
		},
	}
}

func (e *env) thumbnailPath() string {
	item, ok := e.store.Item(e.id)
	if !ok || item.ThumbnailPath == nil {
		return ""
	}
	return *item.ThumbnailPath
}

func TestGeneratorRetriesAndPersists(t *testing.T) {
	thumbnailer := &flakyThumbnailer{failures: 2, path: "/thumbs/clip.jpg"}
	e := newEnv(t, thumbnailer)
	gen := workers.NewThumbnailGenerator(e.opts)
	defer gen.Stop()

	require.True(t, gen.QueueJob(workers.ThumbnailJob{ImageID: e.id, VideoPath: e.video, ModTimeUnix: 10}))
	require.Eventually(t, func() bool { return e.thumbnailPath() == "/thumbs/clip.jpg" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(3), thumbnailer.calls.Load())

	stored, err := e.images.GetByID(context.Background(), e.id)
	require.NoError(t, err)
	require.NotNil(t, stored.ThumbnailPath)
	assert.Equal(t, "/thumbs/clip.jpg", *stored.ThumbnailPath)

	info, err := database.GetThumbnailInfo(context.Background(), e.opts.CacheDB, e.video)
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.LastModified)
}

func TestGeneratorGivesUpWithoutFFmpeg(t *testing.T) {
	thumbnailer := &flakyThumbnailer{err: media.ErrToolUnavailable}
	e := newEnv(t, thumbnailer)
	gen := workers.NewThumbnailGenerator(e.opts)

	require.True(t, gen.QueueJob(workers.ThumbnailJob{ImageID: e.id, VideoPath: e.video}))
	require.Eventually(t, func() bool { return thumbnailer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, gen.Stop())

	assert.Equal(t, int32(1), thumbnailer.calls.Load())
	assert.Empty(t, e.thumbnailPath())
}

func TestGeneratorUsesFreshCacheEntry(t *testing.T) {
	thumbnailer := &flakyThumbnailer{path: "/thumbs/new.jpg"}
	e := newEnv(t, thumbnailer)

	cached := filepath.Join(t.TempDir(), "cached.jpg")
	require.NoError(t, os.WriteFile(cached, []byte("jpg"), 0o644))
	require.NoError(t, database.SetThumbnailInfo(context.Background(), e.opts.CacheDB, e.video, cached, 50))

	gen := workers.NewThumbnailGenerator(e.opts)
	defer gen.Stop()

	require.True(t, gen.QueueJob(workers.ThumbnailJob{ImageID: e.id, VideoPath: e.video, ModTimeUnix: 40}))
	require.Eventually(t, func() bool { return e.thumbnailPath() == cached }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, thumbnailer.calls.Load())
}

func TestQueueJobDeduplicatesPending(t *testing.T) {
	blocker := &blockingThumbnailer{release: make(chan struct{}), started: make(chan struct{})}
	e := newEnv(t, blocker)
	gen := workers.NewThumbnailGenerator(e.opts)

	job := workers.ThumbnailJob{ImageID: e.id, VideoPath: e.video}
	require.True(t, gen.QueueJob(job))
	<-blocker.started
	assert.False(t, gen.QueueJob(job))

	close(blocker.release)
	require.Eventually(t, func() bool { return e.thumbnailPath() != "" }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return gen.QueueJob(job) }, time.Second, 5*time.Millisecond)

	require.NoError(t, gen.Stop())
	require.NoError(t, gen.Stop())
	assert.False(t, gen.QueueJob(workers.ThumbnailJob{ImageID: 999, VideoPath: e.video}))
}
