package media

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrToolUnavailable means ffmpeg or ffprobe is not installed. Callers treat
// it as a normal condition, not a failure of the file being processed.
var ErrToolUnavailable = errors.New("media tool not available")

var standardToolDirs = []string{"/opt/homebrew/bin", "/usr/local/bin"}

// Tools holds resolved executable paths. Empty means not found.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// DiscoverTools resolves ffmpeg and ffprobe. An explicit path wins, then
// PATH, then the usual install locations. ffprobe is also looked for next
// to ffmpeg.
func DiscoverTools(ffmpegPath, ffprobePath string) Tools {
	tools := Tools{}
	if p, err := FindTool("ffmpeg", ffmpegPath); err == nil {
		tools.FFmpeg = p
	}
	if p, err := FindTool("ffprobe", ffprobePath); err == nil {
		tools.FFprobe = p
	} else if tools.FFmpeg != "" {
		sibling := filepath.Join(filepath.Dir(tools.FFmpeg), "ffprobe")
		if isExecutable(sibling) {
			tools.FFprobe = sibling
		}
	}
	return tools
}

func FindTool(name, override string) (string, error) {
	if override != "" {
		if isExecutable(override) {
			return override, nil
		}
		return "", ErrToolUnavailable
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	for _, dir := range standardToolDirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", ErrToolUnavailable
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}
