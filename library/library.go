// Package library manages the directories the gallery tracks, ingests what
// the scanner finds and reconciles the catalog with watcher batches.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/camden-git/mediacatalog/apperrors"
	"github.com/camden-git/mediacatalog/catalog"
	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/media"
	"github.com/camden-git/mediacatalog/models"
	"github.com/camden-git/mediacatalog/realtime"
	"github.com/camden-git/mediacatalog/repository"
	"github.com/camden-git/mediacatalog/watcher"
	"github.com/camden-git/mediacatalog/workers"
)

const (
	MessageDirectoryRemoved  = "Directory removed"
	MessageDirectoryRescan   = "Directory rescanned"
	MessageAddFailed         = "Failed to add directory"
	MessageRemoveFailed      = "Failed to remove directory"
	MessageRescanFailed      = "Failed to rescan directory"
	MessageLoadImagesFailed  = "Failed to load images"
	messageDirectoryAddedFmt = "Added directory: %s"
)

// Scanner finds media files on disk. *media.Scanner satisfies it.
type Scanner interface {
	Scan(ctx context.Context, dir string) ([]media.ScannedFile, error)
	ScanFile(ctx context.Context, path string) (media.ScannedFile, bool)
}

// ThumbnailQueue accepts video thumbnail jobs. *workers.ThumbnailGenerator
// satisfies it.
type ThumbnailQueue interface {
	QueueJob(job workers.ThumbnailJob) bool
}

// Notifier shows user-facing toasts. *notify.Notifier satisfies it.
type Notifier interface {
	Success(message string) string
	Error(message string) string
	Info(message string) string
}

type Options struct {
	Directories repository.DirectoryRepositoryInterface
	Images      repository.ImageRepositoryInterface
	Scanner     Scanner
	Thumbnails  ThumbnailQueue
	Store       *catalog.Store
	Toasts      Notifier
	Logger      *logger.Logger
	Publisher   catalog.Publisher
}

// Library serializes ingestion so a rescan and a watcher batch never
// interleave their inserts.
type Library struct {
	dirs       repository.DirectoryRepositoryInterface
	images     repository.ImageRepositoryInterface
	scanner    Scanner
	thumbnails ThumbnailQueue
	store      *catalog.Store
	toasts     Notifier
	log        *logger.Logger
	pub        catalog.Publisher

	ingestMu sync.Mutex

	mu          sync.RWMutex
	directories []models.Directory
}

func New(opts Options) *Library {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Library{
		dirs:        opts.Directories,
		images:      opts.Images,
		scanner:     opts.Scanner,
		thumbnails:  opts.Thumbnails,
		store:       opts.Store,
		toasts:      opts.Toasts,
		log:         opts.Logger,
		pub:         opts.Publisher,
		directories: []models.Directory{},
	}
}

// ScanResult counts what a scan found and how much of it was new.
type ScanResult struct {
	Found    int `json:"found"`
	Inserted int `json:"inserted"`
}

// ScanPath scans dir, ingests new files and reloads the whole catalog.
func (l *Library) ScanPath(ctx context.Context, dir string) (ScanResult, error) {
	ctx = l.log.WithField(l.log.WithOperation(ctx, "library.scan"), "directory", dir)
	res, err := l.scanAndIngest(ctx, dir)
	if err != nil {
		l.log.Error(ctx, "scan failed", err)
		return res, err
	}
	if err := l.ReloadCatalog(ctx); err != nil {
		return res, err
	}
	l.store.SetCurrentDirectory(dir)
	return res, nil
}

func (l *Library) scanAndIngest(ctx context.Context, dir string) (ScanResult, error) {
	files, err := l.scanner.Scan(ctx, dir)
	if err != nil {
		return ScanResult{}, apperrors.Wrap(apperrors.CodeDependency, err, "failed to scan directory")
	}
	inserted, err := l.Ingest(ctx, files)
	return ScanResult{Found: len(files), Inserted: inserted}, err
}

// Ingest inserts files that are not yet known, keyed by path, and queues
// thumbnails for new videos. It returns how many rows were inserted.
func (l *Library) Ingest(ctx context.Context, files []media.ScannedFile) (int, error) {
	l.ingestMu.Lock()
	defer l.ingestMu.Unlock()

	inserted := 0
	for _, file := range files {
		row := file.Model()
		ok, err := l.images.InsertIfAbsent(ctx, row)
		if err != nil {
			return inserted, apperrors.FromStore(err, "failed to save scanned file")
		}
		if !ok {
			continue
		}
		inserted++
		if row.FileType == models.FileTypeVideo && l.thumbnails != nil {
			l.thumbnails.QueueJob(workers.ThumbnailJob{ImageID: row.ID, VideoPath: row.FilePath, ModTimeUnix: file.ModTime.Unix()})
		}
	}
	l.log.Debug(l.log.WithFields(ctx, map[string]any{"files": len(files), "inserted": inserted}), "ingested scan results")
	return inserted, nil
}

// ReloadCatalog replaces the catalog with every stored image.
func (l *Library) ReloadCatalog(ctx context.Context) error {
	images, err := l.images.ListAll(ctx)
	if err != nil {
		return apperrors.FromStore(err, "failed to load images")
	}
	l.store.ReplaceAll(catalog.ItemsFromModels(images))
	return nil
}

// AddDirectory registers an existing directory, scans it and reloads the
// catalog.
func (l *Library) AddDirectory(ctx context.Context, path string) (*models.Directory, error) {
	ctx = l.log.WithField(l.log.WithOperation(ctx, "library.add_directory"), "directory", path)
	dir, err := l.addDirectory(ctx, path)
	if err != nil {
		l.log.Error(ctx, MessageAddFailed, err)
		l.toasts.Error(MessageAddFailed)
		return nil, err
	}
	l.toasts.Success(fmt.Sprintf(messageDirectoryAddedFmt, dir.Name))
	return dir, nil
}

func (l *Library) addDirectory(ctx context.Context, path string) (*models.Directory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid directory path")
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("%s is not a directory", abs))
	}

	dir, err := l.dirs.Add(ctx, abs)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to add directory")
	}
	if _, err := l.scanAndIngest(ctx, dir.Path); err != nil {
		return nil, err
	}
	if err := l.dirs.MarkScanned(ctx, dir.ID, time.Now()); err != nil {
		return nil, apperrors.FromStore(err, "failed to mark directory scanned")
	}
	if err := l.ReloadCatalog(ctx); err != nil {
		return nil, err
	}
	if _, err := l.ListDirectories(ctx); err != nil {
		return nil, err
	}
	return dir, nil
}

// RemoveDirectory forgets a directory. Its images stay in the catalog and on
// disk.
func (l *Library) RemoveDirectory(ctx context.Context, id int64) error {
	ctx = l.log.WithField(l.log.WithOperation(ctx, "library.remove_directory"), "directory_id", id)
	dir, err := l.dirs.GetByID(ctx, id)
	if err == nil {
		err = l.dirs.Remove(ctx, id)
	}
	if err != nil {
		l.log.Error(ctx, MessageRemoveFailed, err)
		l.toasts.Error(MessageRemoveFailed)
		return apperrors.FromStore(err, "failed to remove directory")
	}
	if l.store.Snapshot().CurrentDirectory == dir.Path {
		l.store.SetCurrentDirectory("")
	}
	if _, err := l.ListDirectories(ctx); err != nil {
		l.log.Warn(l.log.WithField(ctx, "error", err.Error()), "failed to reload directories")
	}
	l.toasts.Success(MessageDirectoryRemoved)
	return nil
}

// ListDirectories reloads the directory list with file counts.
func (l *Library) ListDirectories(ctx context.Context) ([]models.Directory, error) {
	dirs, err := l.dirs.ListAll(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to list directories")
	}
	l.mu.Lock()
	l.directories = dirs
	l.mu.Unlock()
	l.publish(realtime.Event{Type: realtime.EventDirectoryChanged})
	return slices.Clone(dirs), nil
}

// Directories returns the list loaded by the last ListDirectories call.
func (l *Library) Directories() []models.Directory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.directories)
}

// SetDirectoryActive toggles whether the directory is watched. Failures are
// logged without a toast.
func (l *Library) SetDirectoryActive(ctx context.Context, id int64, active bool) error {
	ctx = l.log.WithField(l.log.WithOperation(ctx, "library.set_active"), "directory_id", id)
	if err := l.dirs.SetActive(ctx, id, active); err != nil {
		l.log.Error(ctx, "failed to toggle directory", err)
		return apperrors.FromStore(err, "failed to update directory")
	}
	_, err := l.ListDirectories(ctx)
	return err
}

// OpenDirectory narrows the catalog to the images under one directory.
func (l *Library) OpenDirectory(ctx context.Context, id int64) error {
	ctx = l.log.WithField(l.log.WithOperation(ctx, "library.open_directory"), "directory_id", id)
	l.store.SetLoading(true)
	defer l.store.SetLoading(false)

	if err := l.loadDirectory(ctx, id); err != nil {
		l.log.Error(ctx, MessageLoadImagesFailed, err)
		l.toasts.Error(MessageLoadImagesFailed)
		return err
	}
	return nil
}

func (l *Library) loadDirectory(ctx context.Context, id int64) error {
	dir, err := l.dirs.GetByID(ctx, id)
	if err != nil {
		return apperrors.FromStore(err, "failed to load directory")
	}
	images, err := l.images.ListUnderPath(ctx, dir.Path)
	if err != nil {
		return apperrors.FromStore(err, "failed to load images")
	}
	l.store.ReplaceAll(catalog.ItemsFromModels(images))
	l.store.SetCurrentDirectory(dir.Path)
	return nil
}

// RescanDirectory scans one directory again and shows its images.
func (l *Library) RescanDirectory(ctx context.Context, id int64) (ScanResult, error) {
	ctx = l.log.WithField(l.log.WithOperation(ctx, "library.rescan"), "directory_id", id)
	res, err := l.rescan(ctx, id)
	if err != nil {
		l.log.Error(ctx, MessageRescanFailed, err)
		l.toasts.Error(MessageRescanFailed)
		return res, err
	}
	l.toasts.Success(MessageDirectoryRescan)
	return res, nil
}

func (l *Library) rescan(ctx context.Context, id int64) (ScanResult, error) {
	dir, err := l.dirs.GetByID(ctx, id)
	if err != nil {
		return ScanResult{}, apperrors.FromStore(err, "failed to load directory")
	}
	res, err := l.scanAndIngest(ctx, dir.Path)
	if err != nil {
		return res, err
	}
	if err := l.dirs.MarkScanned(ctx, id, time.Now()); err != nil {
		return res, apperrors.FromStore(err, "failed to mark directory scanned")
	}
	if err := l.loadDirectory(ctx, id); err != nil {
		return res, err
	}
	_, err = l.ListDirectories(ctx)
	return res, err
}

// ActivePaths returns the paths of directories that should be watched.
func (l *Library) ActivePaths(ctx context.Context) ([]string, error) {
	paths, err := l.dirs.ActivePaths(ctx)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load active directories")
	}
	return paths, nil
}

// HandleBatch ingests added files and reloads the catalog. Rows of removed
// files are kept so their history entries stay undoable. Empty batches are
// ignored.
func (l *Library) HandleBatch(ctx context.Context, batch watcher.Batch) error {
	if batch.Empty() {
		return nil
	}
	ctx = l.log.WithFields(l.log.WithOperation(ctx, "library.file_change"), map[string]any{
		"added":   len(batch.Added),
		"removed": len(batch.Removed),
	})

	files := make([]media.ScannedFile, 0, len(batch.Added))
	for _, path := range batch.Added {
		if file, ok := l.scanner.ScanFile(ctx, path); ok {
			files = append(files, file)
		}
	}
	if _, err := l.Ingest(ctx, files); err != nil {
		l.log.Error(ctx, "failed to process file change", err)
		return err
	}
	if err := l.ReloadCatalog(ctx); err != nil {
		l.log.Error(ctx, "failed to process file change", err)
		return err
	}

	l.publish(realtime.Event{Type: realtime.EventFilesChanged, Extra: map[string]any{"added": batch.Added, "removed": batch.Removed}})
	l.toasts.Info(ChangeSummary(len(batch.Added), len(batch.Removed)))
	return nil
}

// ChangeSummary renders counts as "2 files added, 1 file removed".
func ChangeSummary(added, removed int) string {
	parts := make([]string, 0, 2)
	if added > 0 {
		parts = append(parts, fmt.Sprintf("%d %s added", added, plural(added)))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("%d %s removed", removed, plural(removed)))
	}
	return strings.Join(parts, ", ")
}

func plural(n int) string {
	if n > 1 {
		return "files"
	}
	return "file"
}

// QueueMissingThumbnails queues every video that has no thumbnail yet and
// returns how many jobs were accepted.
func (l *Library) QueueMissingThumbnails(ctx context.Context) (int, error) {
	if l.thumbnails == nil {
		return 0, nil
	}
	videos, err := l.images.ListVideosMissingThumbnail(ctx)
	if err != nil {
		return 0, apperrors.FromStore(err, "failed to list videos")
	}
	queued := 0
	for _, v := range videos {
		info, err := os.Stat(v.FilePath)
		if err != nil {
			continue
		}
		if l.thumbnails.QueueJob(workers.ThumbnailJob{ImageID: v.ID, VideoPath: v.FilePath, ModTimeUnix: info.ModTime().Unix()}) {
			queued++
		}
	}
	return queued, nil
}

func (l *Library) publish(event realtime.Event) {
	if l.pub != nil {
		l.pub.Publish(event)
	}
}
