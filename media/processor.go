package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/camden-git/mediacatalog/logger"
)

const (
	ThumbnailJpegQuality   = 80
	ThumbnailFileExtension = ".jpg"

	// Early frames are often black, so the first attempt seeks a few seconds in.
	videoFrameOffset = 3.0
)

// Thumbnailer renders fitted JPEG thumbnails and saves them through a Store.
type Thumbnailer struct {
	store      Store
	ffmpegPath string
	maxSize    int
	log        *logger.Logger
}

func NewThumbnailer(store Store, ffmpegPath string, maxSize int, log *logger.Logger) *Thumbnailer {
	if log == nil {
		log = logger.Nop()
	}
	if maxSize <= 0 {
		maxSize = 320
	}
	return &Thumbnailer{store: store, ffmpegPath: ffmpegPath, maxSize: maxSize, log: log}
}

// FromImage fits img into the configured square, saves it under a uuid name
// and returns the absolute path of the saved file.
func (t *Thumbnailer) FromImage(ctx context.Context, img image.Image) (string, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	thumb := imaging.Fit(img, t.maxSize, t.maxSize, imaging.Lanczos)

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality))
		if err != nil {
			writer.CloseWithError(fmt.Errorf("thumbnail encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	thumbUUID, err := uuid.NewRandom()
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}

	relPath, err := t.store.Save(ctx, AssetTypeThumbnail, thumbUUID.String()+ThumbnailFileExtension, reader)
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return t.store.FullPath(relPath)
}

// FromVideo grabs one frame with ffmpeg and thumbnails it. Clips shorter than
// the seek offset fall back to the first frame.
func (t *Thumbnailer) FromVideo(ctx context.Context, videoPath string) (string, error) {
	if t.ffmpegPath == "" {
		return "", ErrToolUnavailable
	}
	frame, err := t.extractFrame(ctx, videoPath, videoFrameOffset)
	if err != nil {
		if errors.Is(err, ErrToolUnavailable) || ctx.Err() != nil {
			return "", err
		}
		t.log.Debug(t.log.WithField(ctx, "path", videoPath), "retrying frame extraction at start of video")
		frame, err = t.extractFrame(ctx, videoPath, 0)
		if err != nil {
			return "", err
		}
	}
	return t.FromImage(ctx, frame)
}

func (t *Thumbnailer) extractFrame(ctx context.Context, videoPath string, offset float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(offset, 'f', -1, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrToolUnavailable
		}
		return nil, fmt.Errorf("ffmpeg failed for %s: %w: %s", videoPath, err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s at %gs", videoPath, offset)
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame from %s: %w", videoPath, err)
	}
	return img, nil
}
