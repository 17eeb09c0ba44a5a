package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// deriveFrames samples still frames from the video into the run
// directory as frame_NN.jpg, spread across the footage when ffprobe can
// report the duration, from the start otherwise.
func (f *Fetcher) deriveFrames(ctx context.Context, dir, videoPath string) ([]string, error) {
	fps := 1.0
	if dur := f.probeDuration(ctx, videoPath); dur > 0 {
		fps = float64(f.frameCount) / dur
	}

	pattern := filepath.Join(dir, "frame_%02d.jpg")
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", fps),
		"-frames:v", strconv.Itoa(f.frameCount),
		"-q:v", "2",
		pattern,
	}
	out, err := exec.CommandContext(ctx, f.ffmpegPath, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("derive frames: %w: %s", err, truncateOutput(out))
	}

	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list derived frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("derive frames: ffmpeg produced no output")
	}
	return frames, nil
}

// probeDuration returns the footage duration in seconds, or zero when
// ffprobe cannot tell.
func (f *Fetcher) probeDuration(ctx context.Context, videoPath string) float64 {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}
	out, err := exec.CommandContext(ctx, f.ffprobePath, args...).Output()
	if err != nil {
		return 0
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return dur
}

func truncateOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}
