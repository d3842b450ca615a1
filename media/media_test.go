package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/mediacatalog/models"
)

func TestFileTypeOf(t *testing.T) {
	cases := map[string]string{
		"/a/b.JPG":  models.FileTypeImage,
		"/a/b.webp": models.FileTypeImage,
		"/a/b.mov":  models.FileTypeVideo,
		"/a/b.WebM": models.FileTypeVideo,
	}
	for path, want := range cases {
		got, ok := FileTypeOf(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	assert.False(t, IsSupported("/a/b.txt"))
	assert.False(t, IsSupported("/a/noext"))
}

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "12.480000"}
	}`)
	info, err := parseProbeOutput(data)
	require.NoError(t, err)
	assert.InDelta(t, 12.48, info.DurationSeconds, 0.0001)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.Equal(t, "h264", info.VideoCodec)
	require.NotNil(t, info.AudioCodec)
	assert.Equal(t, "aac", *info.AudioCodec)

	silent, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"video","codec_name":"vp9","width":2,"height":2}],"format":{"duration":"1"}}`))
	require.NoError(t, err)
	assert.Nil(t, silent.AudioCodec)

	_, err = parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"1"}}`))
	assert.Error(t, err)
	_, err = parseProbeOutput([]byte(`{"streams":[{"codec_type":"video"}],"format":{}}`))
	assert.Error(t, err)
	_, err = parseProbeOutput([]byte(`not json`))
	assert.Error(t, err)
}

func TestFFprobeWithoutBinary(t *testing.T) {
	_, err := FFprobe{}.Probe(context.Background(), "/tmp/x.mp4")
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

func TestFindToolOverride(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "ffprobe")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))

	got, err := FindTool("ffprobe", tool)
	require.NoError(t, err)
	assert.Equal(t, tool, got)

	_, err = FindTool("ffprobe", filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

type stubProber struct {
	results map[string]error
}

func (p stubProber) Probe(_ context.Context, path string) (*VideoInfo, error) {
	if err := p.results[filepath.Base(path)]; err != nil {
		return nil, err
	}
	return &VideoInfo{DurationSeconds: 2, Width: 640, Height: 360, VideoCodec: "h264"}, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func TestScannerScan(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.jpg", "notes.txt", "sub/a.PNG", "sub/clip.mp4", "broken.mov", "noprobe.webm")

	prober := stubProber{results: map[string]error{
		"broken.mov":   errors.New("moov atom not found"),
		"noprobe.webm": ErrToolUnavailable,
	}}
	files, err := NewScanner(prober, nil).Scan(context.Background(), dir)
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"b.jpg", "noprobe.webm", "a.PNG", "clip.mp4"}, names)

	byName := map[string]ScannedFile{}
	for _, f := range files {
		byName[f.Name] = f
	}
	assert.Equal(t, models.FileTypeImage, byName["a.PNG"].FileType)
	assert.Nil(t, byName["a.PNG"].Video)
	require.NotNil(t, byName["clip.mp4"].Video)
	assert.Nil(t, byName["noprobe.webm"].Video)

	row := byName["clip.mp4"].Model()
	assert.Equal(t, models.FileTypeVideo, row.FileType)
	require.NotNil(t, row.Width)
	assert.Equal(t, 640, *row.Width)
}

func TestScannerRejectsMissingDirectory(t *testing.T) {
	_, err := NewScanner(nil, nil).Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.gif", "a.txt")
	s := NewScanner(nil, nil)

	file, ok := s.ScanFile(context.Background(), filepath.Join(dir, "a.gif"))
	require.True(t, ok)
	assert.Equal(t, "a.gif", file.Name)

	_, ok = s.ScanFile(context.Background(), filepath.Join(dir, "a.txt"))
	assert.False(t, ok)
	_, ok = s.ScanFile(context.Background(), filepath.Join(dir, "gone.jpg"))
	assert.False(t, ok)
}

func TestThumbnailerFromImage(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{AssetTypeThumbnail: "thumbnails"}, nil)
	require.NoError(t, err)
	thumbnailer := NewThumbnailer(store, "", 100, nil)

	src := imaging.New(400, 200, color.NRGBA{R: 200, A: 255})
	path, err := thumbnailer.FromImage(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", filepath.Ext(path))

	saved, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 100, saved.Bounds().Dx())
	assert.Equal(t, 50, saved.Bounds().Dy())

	_, err = thumbnailer.FromImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestThumbnailerWithoutFFmpeg(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{AssetTypeThumbnail: "thumbnails"}, nil)
	require.NoError(t, err)
	_, err = NewThumbnailer(store, "", 0, nil).FromVideo(context.Background(), "/tmp/clip.mp4")
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{AssetTypeThumbnail: "thumbnails"}, nil)
	require.NoError(t, err)

	_, err = store.FullPath("../outside.jpg")
	assert.Error(t, err)

	_, err = NewLocalStorage(t.TempDir(), map[AssetType]string{AssetTypeThumbnail: "../up"}, nil)
	assert.Error(t, err)

	assert.NoError(t, store.Delete(context.Background(), "thumbnails/missing.jpg"))
}
