package camera

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// FFmpegTranscoder re-encodes raw MJPEG recordings to H.264 mp4.
type FFmpegTranscoder struct {
	Path    string
	Timeout time.Duration
}

func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{Path: path, Timeout: 5 * time.Minute}
}

// Available reports whether the ffmpeg binary can be found.
func (t *FFmpegTranscoder) Available() bool {
	_, err := exec.LookPath(t.Path)
	return err == nil
}

func (t *FFmpegTranscoder) Transcode(src, dst string) error {
	if !t.Available() {
		return fmt.Errorf("%w: %s not found", ErrTranscode, t.Path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-movflags", "+faststart",
		"-loglevel", "warning",
		dst,
	}
	start := time.Now()
	out, err := exec.CommandContext(ctx, t.Path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrTranscode, err, strings.TrimSpace(string(out)))
	}

	log.Debug().
		Str("src", src).
		Str("dst", dst).
		Dur("took", time.Since(start)).
		Msg("Transcode complete")
	return nil
}
