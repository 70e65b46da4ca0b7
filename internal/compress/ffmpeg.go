// Package compress shrinks uploaded videos before they are written to
// object storage. Compression is delegated to ffmpeg; a passthrough
// implementation exists for deployments that upload originals as-is.
package compress

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FFmpegConfig holds configuration for ffmpeg execution.
type FFmpegConfig struct {
	// CRF is the x264 constant rate factor; higher means smaller
	// output at lower quality.
	CRF    int
	Preset string
	OutDir string
	Logger *slog.Logger
}

// DefaultFFmpegConfig returns the default compression configuration.
func DefaultFFmpegConfig(outDir string, logger *slog.Logger) *FFmpegConfig {
	return &FFmpegConfig{
		CRF:    28,
		Preset: "veryfast",
		OutDir: outDir,
		Logger: logger,
	}
}

// FFmpegCompressor compresses videos by re-encoding them with x264.
type FFmpegCompressor struct {
	config *FFmpegConfig
}

// NewFFmpegCompressor creates a compressor with the given configuration.
func NewFFmpegCompressor(config *FFmpegConfig) *FFmpegCompressor {
	return &FFmpegCompressor{config: config}
}

// Compress re-encodes inputPath into a new file and returns its path.
// The input file is never modified. Progress is derived from ffmpeg's
// time= output relative to the probed duration; when probing fails,
// progress is simply not reported.
func (c *FFmpegCompressor) Compress(ctx context.Context, inputPath string, report func(percent int)) (string, error) {
	duration, err := c.probeDuration(ctx, inputPath)
	if err != nil {
		c.config.Logger.Warn("Failed to probe duration, progress disabled", "error", err)
		duration = 0
	}

	outPath := filepath.Join(c.config.OutDir, "compressed-"+filepath.Base(inputPath))

	args := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", c.config.Preset,
		"-crf", strconv.Itoa(c.config.CRF),
		"-c:a", "aac",
		"-movflags", "+faststart",
		outPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.monitorOutput(ctx, stderrPipe, duration, report)
	}()

	cmdErr := cmd.Wait()
	wg.Wait()

	if cmdErr != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffmpeg canceled: %w", ctx.Err())
		}
		return "", fmt.Errorf("ffmpeg failed: %w", cmdErr)
	}

	return outPath, nil
}

// probeDuration reads the container duration in seconds via ffprobe.
func (c *FFmpegCompressor) probeDuration(ctx context.Context, inputPath string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(string(bytes.TrimSpace(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return duration, nil
}

// monitorOutput scans ffmpeg's stderr for time= markers and reports
// progress against the known duration.
func (c *FFmpegCompressor) monitorOutput(ctx context.Context, r io.Reader, duration float64, report func(percent int)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if elapsed, ok := ParseProgressTime(line); ok {
			if duration > 0 && report != nil {
				percent := int(elapsed / duration * 100)
				if percent > 100 {
					percent = 100
				}
				report(percent)
			}
			c.config.Logger.Debug("ffmpeg progress", "output", line)
		} else if strings.Contains(line, "error") || strings.Contains(line, "Error") {
			c.config.Logger.Warn("ffmpeg warning", "output", line)
		}
	}
	if err := scanner.Err(); err != nil {
		c.config.Logger.Warn("ffmpeg output scanner error", "error", err)
	}
}

// ParseProgressTime extracts the elapsed seconds from an ffmpeg status
// line containing a time=HH:MM:SS.ff marker.
func ParseProgressTime(line string) (float64, bool) {
	idx := strings.Index(line, "time=")
	if idx == -1 {
		return 0, false
	}

	field := line[idx+len("time="):]
	if end := strings.IndexByte(field, ' '); end != -1 {
		field = field[:end]
	}

	parts := strings.Split(field, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}

	return hours*3600 + minutes*60 + seconds, true
}

// Passthrough returns inputs unchanged, for deployments that skip
// compression entirely.
type Passthrough struct{}

// Compress returns inputPath unchanged and reports full progress.
func (Passthrough) Compress(_ context.Context, inputPath string, report func(percent int)) (string, error) {
	if report != nil {
		report(100)
	}
	return inputPath, nil
}
