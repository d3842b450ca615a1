package workers

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/database"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/media"
	"github.com/camden-git/mediacatalog/realtime"
)

const (
	defaultQueueSize  = 100
	defaultRetryDelay = time.Second
	maxAttempts       = 3
)

type ThumbnailJob struct {
	ImageID     int64
	VideoPath   string
	ModTimeUnix int64
}

// VideoThumbnailer renders a thumbnail for a video and returns its path.
type VideoThumbnailer interface {
	FromVideo(ctx context.Context, videoPath string) (string, error)
}

// ThumbnailSink persists the generated thumbnail path on the image row.
type ThumbnailSink interface {
	SetThumbnailPath(ctx context.Context, id int64, thumbPath string) error
}

type GeneratorOptions struct {
	Thumbnailer VideoThumbnailer
	Images      ThumbnailSink
	CacheDB     *sql.DB
	Store       *catalog.Store
	Publisher   catalog.Publisher
	Logger      *logger.Logger
	QueueSize   int
	NumWorkers  int
	RetryDelay  time.Duration
}

// ThumbnailGenerator runs a fixed pool of workers over a bounded job queue.
// A video is queued at most once at a time.
type ThumbnailGenerator struct {
	JobQueue chan ThumbnailJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[int64]bool
	Mutex    sync.Mutex

	thumbnailer VideoThumbnailer
	images      ThumbnailSink
	cacheDB     *sql.DB
	store       *catalog.Store
	pub         catalog.Publisher
	log         *logger.Logger
	retryDelay  time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewThumbnailGenerator(opts GeneratorOptions) *ThumbnailGenerator {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen := &ThumbnailGenerator{
		JobQueue:    make(chan ThumbnailJob, opts.QueueSize),
		StopChan:    make(chan struct{}),
		Pending:     make(map[int64]bool),
		thumbnailer: opts.Thumbnailer,
		images:      opts.Images,
		cacheDB:     opts.CacheDB,
		store:       opts.Store,
		pub:         opts.Publisher,
		log:         opts.Logger,
		retryDelay:  opts.RetryDelay,
		ctx:         ctx,
		cancel:      cancel,
	}

	gen.Wg.Add(opts.NumWorkers)
	for i := 0; i < opts.NumWorkers; i++ {
		go gen.worker(i)
	}
	gen.log.Info(gen.log.WithFields(ctx, map[string]any{"workers": opts.NumWorkers, "queue_size": opts.QueueSize}), "thumbnail workers started")
	return gen
}

func (tg *ThumbnailGenerator) worker(id int) {
	defer tg.Wg.Done()
	ctx := tg.log.WithField(tg.ctx, "worker", id)
	for {
		select {
		case job := <-tg.JobQueue:
			tg.processJob(tg.log.WithField(ctx, "image_id", job.ImageID), job)
			tg.Mutex.Lock()
			delete(tg.Pending, job.ImageID)
			tg.Mutex.Unlock()
		case <-tg.StopChan:
			tg.log.Debug(ctx, "thumbnail worker stopping")
			return
		}
	}
}

func (tg *ThumbnailGenerator) processJob(ctx context.Context, job ThumbnailJob) {
	if _, err := os.Stat(job.VideoPath); err != nil {
		tg.log.Warn(tg.log.WithField(ctx, "path", job.VideoPath), "video missing, skipping thumbnail")
		return
	}

	thumbPath, fresh := tg.cachedThumbnail(ctx, job)
	if !fresh {
		err := retry.Do(
			func() error {
				var genErr error
				thumbPath, genErr = tg.thumbnailer.FromVideo(ctx, job.VideoPath)
				return genErr
			},
			retry.Attempts(maxAttempts),
			retry.Delay(tg.retryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, media.ErrToolUnavailable)
			}),
		)
		if err != nil {
			if errors.Is(err, media.ErrToolUnavailable) {
				tg.log.Debug(ctx, "ffmpeg not available, leaving video without thumbnail")
				return
			}
			tg.log.Error(tg.log.WithField(ctx, "path", job.VideoPath), "failed to generate video thumbnail", err)
			return
		}
		if tg.cacheDB != nil {
			if err := database.SetThumbnailInfo(ctx, tg.cacheDB, job.VideoPath, thumbPath, job.ModTimeUnix); err != nil {
				tg.log.Warn(tg.log.WithField(ctx, "error", err.Error()), "failed to record thumbnail cache entry")
			}
		}
	}

	if err := tg.images.SetThumbnailPath(ctx, job.ImageID, thumbPath); err != nil {
		tg.log.Error(ctx, "failed to persist thumbnail path", err)
		return
	}
	if tg.store != nil {
		now := time.Now().UTC()
		tg.store.PatchOne(job.ImageID, catalog.Patch{ThumbnailPath: &thumbPath, UpdatedAt: &now})
	}
	if tg.pub != nil {
		tg.pub.Publish(realtime.Event{Type: realtime.EventThumbnailReady, ImageID: job.ImageID, Message: thumbPath})
	}
	tg.log.Debug(tg.log.WithField(ctx, "thumbnail", thumbPath), "video thumbnail ready")
}

func (tg *ThumbnailGenerator) cachedThumbnail(ctx context.Context, job ThumbnailJob) (string, bool) {
	if tg.cacheDB == nil {
		return "", false
	}
	path, fresh, err := database.IsThumbnailFresh(ctx, tg.cacheDB, job.VideoPath, job.ModTimeUnix)
	if err != nil {
		tg.log.Warn(tg.log.WithField(ctx, "error", err.Error()), "thumbnail cache lookup failed")
		return "", false
	}
	return path, fresh
}

// QueueJob enqueues job unless it is already pending, the queue is full or
// the generator is stopped.
func (tg *ThumbnailGenerator) QueueJob(job ThumbnailJob) bool {
	select {
	case <-tg.StopChan:
		return false
	default:
	}

	tg.Mutex.Lock()
	if tg.Pending[job.ImageID] {
		tg.Mutex.Unlock()
		return false
	}
	tg.Pending[job.ImageID] = true
	tg.Mutex.Unlock()

	select {
	case tg.JobQueue <- job:
		return true
	default:
		tg.log.Warn(tg.log.WithField(tg.ctx, "image_id", job.ImageID), "thumbnail queue full, dropping job")
		tg.Mutex.Lock()
		delete(tg.Pending, job.ImageID)
		tg.Mutex.Unlock()
		return false
	}
}

// Stop cancels in-flight work and waits for the workers to exit. Queued jobs
// are dropped. Calling it more than once is safe.
func (tg *ThumbnailGenerator) Stop() error {
	tg.stopOnce.Do(func() {
		close(tg.StopChan)
		tg.cancel()
		tg.Wg.Wait()
		tg.log.Info(context.Background(), "thumbnail workers stopped")
	})
	return nil
}
