// Package gallery wires the catalog, modes, groups, history, library and
// notifications into the one state container a process owns.
package gallery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/config"
	"github.com/camden-git/mediacatalog/groups"
	"github.com/camden-git/mediacatalog/history"
	"github.com/camden-git/mediacatalog/library"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/media"
	"github.com/camden-git/mediacatalog/notify"
	"github.com/camden-git/mediacatalog/repository"
	"github.com/camden-git/mediacatalog/selection"
	"github.com/camden-git/mediacatalog/transfer"
	"github.com/camden-git/mediacatalog/watcher"
	"github.com/camden-git/mediacatalog/workers"
)

// SettingsKey is where the view preferences are stored.
const SettingsKey = "image-gallery-settings"

type Options struct {
	DB     *gorm.DB
	Config config.Config
	Tools  media.Tools
	Logger *logger.Logger
	// Publisher receives every state change; nil disables events.
	Publisher catalog.Publisher
	// Prober overrides the ffprobe-backed video prober.
	Prober media.Prober
}

type Gallery struct {
	db    *gorm.DB
	sqlDB *sql.DB
	log   *logger.Logger

	images   repository.ImageRepositoryInterface
	settings repository.SettingsRepositoryInterface

	store      *catalog.Store
	modes      *selection.Controller
	toasts     *notify.Notifier
	projection *groups.Projection
	groups     *groups.Service
	history    *history.Engine
	library    *library.Library
	transfer   *transfer.Service
	thumbnails *workers.ThumbnailGenerator
	watcher    *watcher.Watcher
}

func New(opts Options) (*Gallery, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("gallery: database is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger
	cfg := opts.Config
	pub := opts.Publisher

	sqlDB, err := opts.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	imageRepo := repository.NewImageRepository(opts.DB)
	groupRepo := repository.NewGroupRepository(opts.DB)
	commentRepo := repository.NewCommentRepository(opts.DB)
	dirRepo := repository.NewDirectoryRepository(opts.DB)
	actionRepo := repository.NewActionLogRepository(opts.DB)
	settingsRepo := repository.NewSettingsRepository(opts.DB)

	assets, err := media.NewLocalStorage(cfg.DataDir, map[media.AssetType]string{
		media.AssetTypeThumbnail: cfg.ThumbnailsSubDir,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	store := catalog.NewStore(pub)
	toasts := notify.New(cfg.ToastDuration, pub)
	modes := selection.NewController(pub)
	projection := groups.NewProjection(groupRepo, store, toasts, log)

	thumbnailer := media.NewThumbnailer(assets, opts.Tools.FFmpeg, cfg.ThumbnailMaxSize, log)
	generator := workers.NewThumbnailGenerator(workers.GeneratorOptions{
		Thumbnailer: thumbnailer,
		Images:      imageRepo,
		CacheDB:     sqlDB,
		Store:       store,
		Publisher:   pub,
		Logger:      log,
		QueueSize:   cfg.ThumbnailQueueSize,
		NumWorkers:  cfg.NumThumbnailWorkers,
	})

	prober := opts.Prober
	if prober == nil {
		prober = media.FFprobe{Path: opts.Tools.FFprobe}
	}

	g := &Gallery{
		db:         opts.DB,
		sqlDB:      sqlDB,
		log:        log,
		images:     imageRepo,
		settings:   settingsRepo,
		store:      store,
		modes:      modes,
		toasts:     toasts,
		projection: projection,
		groups:     groups.NewService(groupRepo, commentRepo, projection, toasts, log, pub),
		history:    history.NewEngine(actionRepo, imageRepo, store, toasts, log, pub),
		library: library.New(library.Options{
			Directories: dirRepo,
			Images:      imageRepo,
			Scanner:     media.NewScanner(prober, log),
			Thumbnails:  generator,
			Store:       store,
			Toasts:      toasts,
			Logger:      log,
			Publisher:   pub,
		}),
		transfer:   transfer.NewService(sqlDB, imageRepo, groupRepo, log),
		thumbnails: generator,
		watcher:    watcher.New(cfg.WatchDebounce, log),
	}
	return g, nil
}

func (g *Gallery) DB() *gorm.DB                            { return g.db }
func (g *Gallery) Store() *catalog.Store                   { return g.store }
func (g *Gallery) Modes() *selection.Controller            { return g.modes }
func (g *Gallery) Toasts() *notify.Notifier                { return g.toasts }
func (g *Gallery) Groups() *groups.Service                 { return g.groups }
func (g *Gallery) History() *history.Engine                { return g.history }
func (g *Gallery) Library() *library.Library               { return g.library }
func (g *Gallery) Transfer() *transfer.Service             { return g.transfer }
func (g *Gallery) Thumbnails() *workers.ThumbnailGenerator { return g.thumbnails }

// Load restores preferences, then the catalog, directories and groups.
// Mode, selection and group scope always start fresh.
func (g *Gallery) Load(ctx context.Context) error {
	ctx = g.log.WithOperation(ctx, "gallery.load")
	g.loadPreferences(ctx)

	if err := g.library.ReloadCatalog(ctx); err != nil {
		return err
	}
	if _, err := g.library.ListDirectories(ctx); err != nil {
		return err
	}
	if _, err := g.groups.Reload(ctx); err != nil {
		return err
	}
	if _, err := g.library.QueueMissingThumbnails(ctx); err != nil {
		g.log.Warn(g.log.WithField(ctx, "error", err.Error()), "failed to queue missing thumbnails")
	}
	return nil
}

// Refresh reloads the catalog and groups, and the active group's membership.
func (g *Gallery) Refresh(ctx context.Context) error {
	ctx = g.log.WithOperation(ctx, "gallery.refresh")
	if err := g.library.ReloadCatalog(ctx); err != nil {
		return err
	}
	if _, err := g.groups.Reload(ctx); err != nil {
		return err
	}
	if _, ok := g.projection.ActiveGroupID(); ok {
		return g.projection.Refresh(ctx)
	}
	return nil
}

// View returns the derived, visible list.
func (g *Gallery) View() []catalog.MediaItem {
	return g.store.View()
}

func (g *Gallery) loadPreferences(ctx context.Context) {
	raw, ok, err := g.settings.Get(ctx, SettingsKey)
	if err != nil {
		g.log.Warn(g.log.WithField(ctx, "error", err.Error()), "failed to read preferences, using defaults")
		return
	}
	if !ok {
		return
	}
	prefs := catalog.DefaultPreferences()
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		g.log.Warn(g.log.WithField(ctx, "error", err.Error()), "stored preferences are unreadable, using defaults")
		return
	}
	g.store.ApplyPreferences(prefs)
}

func (g *Gallery) savePreferences(ctx context.Context) error {
	data, err := json.Marshal(g.store.Preferences())
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := g.settings.Set(ctx, SettingsKey, string(data)); err != nil {
		g.log.Error(g.log.WithOperation(ctx, "gallery.save_preferences"), "failed to save preferences", err)
		return apperrors.FromStore(err, "failed to save preferences")
	}
	return nil
}

// StartWatching watches every active directory and feeds change batches to
// the library.
func (g *Gallery) StartWatching(ctx context.Context) error {
	paths, err := g.library.ActivePaths(ctx)
	if err != nil {
		return err
	}
	return g.watcher.Start(paths, func(batch watcher.Batch) {
		// HandleBatch logs and toasts its own failures.
		_ = g.library.HandleBatch(ctx, batch)
	})
}

func (g *Gallery) StopWatching() error {
	return g.watcher.Stop()
}

func (g *Gallery) Watching() bool {
	return g.watcher.Running()
}

// Close stops the watcher, the thumbnail workers and pending toast timers,
// then closes the database.
func (g *Gallery) Close() error {
	var err error
	err = multierr.Append(err, g.watcher.Stop())
	err = multierr.Append(err, g.thumbnails.Stop())
	err = multierr.Append(err, g.toasts.Close())
	err = multierr.Append(err, g.sqlDB.Close())
	return err
}
