package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/camden-git/mediacatalog/logger"
)

// Store saves and removes generated assets such as thumbnails.
type Store interface {
	// Save writes data to filename inside the asset type's directory and
	// returns the path relative to the store root.
	Save(ctx context.Context, assetType AssetType, filename string, data io.Reader) (string, error)
	Delete(ctx context.Context, relativePath string) error
	// FullPath resolves a relative asset path, refusing paths outside the root.
	FullPath(relativePath string) (string, error)
}

// LocalStorage implements Store on the local filesystem.
type LocalStorage struct {
	basePath        string
	resolvedPathMap map[AssetType]string
	log             *logger.Logger
}

func NewLocalStorage(basePath string, subDirs map[AssetType]string, log *logger.Logger) (*LocalStorage, error) {
	if log == nil {
		log = logger.Nop()
	}
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolved := make(map[AssetType]string, len(subDirs))
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !within(absBasePath, fullPath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolved[assetType] = fullPath
	}

	return &LocalStorage{basePath: absBasePath, resolvedPathMap: resolved, log: log}, nil
}

func (ls *LocalStorage) dirFor(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

func (ls *LocalStorage) Save(ctx context.Context, assetType AssetType, filename string, data io.Reader) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}
	dir, err := ls.dirFor(assetType)
	if err != nil {
		return "", err
	}

	fullSavePath := filepath.Join(dir, filename)
	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to close '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path for '%s': %w", fullSavePath, err)
	}
	ls.log.Debug(ls.log.WithField(ctx, "path", fullSavePath), "asset saved")
	return filepath.ToSlash(relativePath), nil
}

// Delete removes an asset. A missing file is not an error.
func (ls *LocalStorage) Delete(ctx context.Context, relativePath string) error {
	fullPath, err := ls.FullPath(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	ls.log.Debug(ls.log.WithField(ctx, "path", fullPath), "asset deleted")
	return nil
}

func (ls *LocalStorage) FullPath(relativePath string) (string, error) {
	fullPath := filepath.Join(ls.basePath, filepath.Clean(filepath.FromSlash(relativePath)))
	if !within(ls.basePath, fullPath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return fullPath, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
