// Package extract runs ffmpeg as a subprocess to cut one independently
// playable segment out of an HLS manifest, with bounded stderr capture for
// diagnostics.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const (
	maxStderrBytes = 2000 // tail of stderr kept for error reporting
)

// Extractor cuts one segment from a manifest URL into an output file.
type Extractor interface {
	Extract(ctx context.Context, manifestURL string, startSec, durationSec int, outPath string) error
}

// ExtractionError reports a failed ffmpeg invocation. ExitCode is -1 when the
// process could not be launched at all.
type ExtractionError struct {
	ExitCode   int
	StderrTail string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("ffmpeg failed (exit %d): %s", e.ExitCode, e.StderrTail)
}

// Config holds the extractor's configuration.
type Config struct {
	FFmpegPath     string        // path or binary name; empty = look up "ffmpeg" on PATH
	SegmentTimeout time.Duration // per-invocation ceiling
	Logger         *slog.Logger
}

// FFmpegExtractor is the production Extractor. It re-encodes video and audio
// to H.264/AAC so every segment is playable regardless of the source
// renditions, with a fast preset favoring speed over size.
type FFmpegExtractor struct {
	cfg    Config
	ffmpeg string // resolved binary path
}

// NewFFmpegExtractor resolves the ffmpeg binary and returns an extractor.
func NewFFmpegExtractor(cfg Config) (*FFmpegExtractor, error) {
	ffmpeg, err := resolveFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}

	cfg.Logger.Info("extractor initialised", "ffmpeg", ffmpeg, "segment_timeout", cfg.SegmentTimeout)

	return &FFmpegExtractor{cfg: cfg, ffmpeg: ffmpeg}, nil
}

func (e *FFmpegExtractor) Extract(ctx context.Context, manifestURL string, startSec, durationSec int, outPath string) error {
	if e.cfg.SegmentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SegmentTimeout)
		defer cancel()
	}

	args := cutArgs(manifestURL, startSec, durationSec, outPath)
	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&tailWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	start := time.Now()
	e.cfg.Logger.Info("extracting segment",
		"start_s", startSec,
		"duration_s", durationSec,
		"output", outPath,
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}

		tail := stderrBuf.String()
		if tail == "" {
			tail = err.Error()
		}

		e.cfg.Logger.Warn("segment extraction failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", tail,
		)
		return &ExtractionError{ExitCode: exitCode, StderrTail: tail}
	}

	e.cfg.Logger.Info("segment extracted",
		"duration_ms", elapsed.Milliseconds(),
		"output", outPath,
	)
	return nil
}

// cutArgs builds the ffmpeg argument list for one cut. Seeking before the
// input is faster on HLS at a small accuracy cost.
func cutArgs(manifestURL string, startSec, durationSec int, outPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.Itoa(startSec),
		"-i", manifestURL,
		"-t", strconv.Itoa(durationSec),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
}

// resolveFFmpeg finds a usable ffmpeg binary.
func resolveFFmpeg(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no ffmpeg binary found on PATH")
}

// tailWriter is an io.Writer that keeps only the last `limit` bytes.
type tailWriter struct {
	w     *bytes.Buffer
	limit int
}

func (tw *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	tw.w.Write(p)
	if tw.w.Len() > tw.limit {
		// Keep only the tail
		b := tw.w.Bytes()
		tw.w.Reset()
		tw.w.Write(b[len(b)-tw.limit:])
	}
	return n, nil
}
