// Package clipper orchestrates the VOD clip pipeline: playback
// authorization, per-segment ffmpeg extraction and ZIP assembly, with a
// guaranteed-cleanup temp workspace per run.
package clipper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge-server/internal/archive"
	"github.com/clipforge/clipforge-server/internal/extract"
	"github.com/clipforge/clipforge-server/internal/jobs"
	"github.com/clipforge/clipforge-server/internal/logging"
	"github.com/clipforge/clipforge-server/internal/twitch"
)

// Authorizer is what the pipeline needs from the Twitch client: a fresh app
// token and a signed playback grant for one VOD.
type Authorizer interface {
	HasCredentials() bool
	AppAccessToken(ctx context.Context) (string, error)
	PlaybackGrant(ctx context.Context, vodID, appToken string) (twitch.PlaybackGrant, error)
}

// Config holds the orchestrator's configuration.
type Config struct {
	WorkDir         string        // base dir for per-run temp workspaces; empty = os.TempDir()
	PipelineTimeout time.Duration // overall ceiling from token acquisition through archiving
	MaxParallel     int           // segment extraction concurrency; <=1 = sequential
	Logger          *slog.Logger
}

// Service drives one clip run end to end.
type Service struct {
	auth      Authorizer
	extractor extract.Extractor
	repo      jobs.Repository // optional run history; nil disables recording
	cfg       Config
}

func NewService(auth Authorizer, extractor extract.Extractor, repo jobs.Repository, cfg Config) *Service {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = 5 * time.Minute
	}
	return &Service{auth: auth, extractor: extractor, repo: repo, cfg: cfg}
}

// ArchiveName returns the download filename for a run.
func ArchiveName(vodID string) string {
	return fmt.Sprintf("clips_%s.zip", vodID)
}

// Cut runs the full pipeline for a validated plan and streams the finished
// ZIP into w. Nothing is written to w until every segment has been extracted,
// so any error returned before the first write can still become a clean HTTP
// error response.
//
// The run is all-or-nothing: the first segment failure aborts the remaining
// segments and no partial archive is produced. The temp workspace is removed
// on every exit path; removal failures are logged and swallowed.
func (s *Service) Cut(ctx context.Context, plan Plan, w io.Writer) error {
	logger := logging.WithVODID(s.cfg.Logger, plan.VODID)

	jobID := s.recordStart(ctx, plan)
	start := time.Now()

	err := s.run(ctx, plan, w, logger)
	s.recordFinish(jobID, start, err)

	return err
}

func (s *Service) run(ctx context.Context, plan Plan, w io.Writer, logger *slog.Logger) error {
	if !s.auth.HasCredentials() {
		return &ConfigError{Reason: "missing Twitch client id or client secret"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
	defer cancel()

	workDir, err := os.MkdirTemp(s.cfg.WorkDir, "vod-"+plan.VODID+"-")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("workspace cleanup failed", "dir", workDir, "error", rmErr)
		}
	}()

	appToken, err := s.auth.AppAccessToken(ctx)
	if err != nil {
		return err
	}

	grant, err := s.auth.PlaybackGrant(ctx, plan.VODID, appToken)
	if err != nil {
		return err
	}

	manifestURL := twitch.ManifestURL(plan.VODID, grant)

	outputs, err := s.extractSegments(ctx, plan, manifestURL, workDir, logger)
	if err != nil {
		return err
	}

	logger.Info("assembling archive", "clips", len(outputs))
	if err := archive.WriteZip(w, outputs); err != nil {
		return err
	}

	return nil
}

// extractSegments cuts every segment of the plan into the workspace.
// Segment i starts at offset i×length; filenames are deterministic in the
// VOD id and the 1-based segment number.
func (s *Service) extractSegments(ctx context.Context, plan Plan, manifestURL, workDir string, logger *slog.Logger) ([]string, error) {
	outputs := make([]string, plan.ClipCount)
	for i := range outputs {
		outputs[i] = filepath.Join(workDir, fmt.Sprintf("vod_%s_clip_%d.mp4", plan.VODID, i+1))
	}

	if s.cfg.MaxParallel <= 1 {
		for i := 0; i < plan.ClipCount; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.extractor.Extract(ctx, manifestURL, i*plan.ClipLength, plan.ClipLength, outputs[i]); err != nil {
				return nil, err
			}
		}
		return outputs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i := 0; i < plan.ClipCount; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.extractor.Extract(gctx, manifestURL, i*plan.ClipLength, plan.ClipLength, outputs[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// recordStart writes a running job row. History is best-effort: storage
// failures never affect the run itself.
func (s *Service) recordStart(ctx context.Context, plan Plan) string {
	if s.repo == nil {
		return ""
	}

	job := jobs.New(plan.VODID, plan.ClipCount, plan.ClipLength)
	if err := s.repo.Create(ctx, job); err != nil {
		s.cfg.Logger.Warn("failed to record job", "error", err)
		return ""
	}
	if err := s.repo.MarkRunning(ctx, job.ID); err != nil {
		s.cfg.Logger.Warn("failed to mark job running", "error", err)
	}
	return job.ID
}

func (s *Service) recordFinish(jobID string, start time.Time, runErr error) {
	if s.repo == nil || jobID == "" {
		return
	}

	// The request context may already be cancelled at this point.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	durationMs := time.Since(start).Milliseconds()

	var err error
	if runErr != nil {
		err = s.repo.MarkFailed(ctx, jobID, runErr.Error(), durationMs)
	} else {
		err = s.repo.MarkCompleted(ctx, jobID, durationMs)
	}
	if err != nil {
		s.cfg.Logger.Warn("failed to record job outcome", "job_id", jobID, "error", err)
	}
}
