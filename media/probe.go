package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Prober reads video metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
}

// FFprobe runs the ffprobe binary at Path.
type FFprobe struct {
	Path string
}

func (p FFprobe) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if p.Path == "" {
		return nil, ErrToolUnavailable
	}
	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrToolUnavailable
		}
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}
	info, err := parseProbeOutput(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read ffprobe output for %s: %w", path, err)
	}
	return info, nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseProbeOutput needs a video stream and a duration; the audio stream is
// optional.
func parseProbeOutput(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	info := &VideoInfo{}
	foundVideo := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.VideoCodec = s.CodecName
			if info.VideoCodec == "" {
				info.VideoCodec = "unknown"
			}
		case "audio":
			if info.AudioCodec != nil {
				continue
			}
			codec := s.CodecName
			if codec == "" {
				codec = "unknown"
			}
			info.AudioCodec = &codec
		}
	}
	if !foundVideo {
		return nil, errors.New("no video stream found")
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, errors.New("duration not found")
	}
	info.DurationSeconds = duration
	return info, nil
}
