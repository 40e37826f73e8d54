package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-server/internal/archive"
	"github.com/clipforge/clipforge-server/internal/clipper"
	"github.com/clipforge/clipforge-server/internal/config"
	"github.com/clipforge/clipforge-server/internal/extract"
	"github.com/clipforge/clipforge-server/internal/twitch"
)

const maxRequestBodyBytes = 1 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Post("/cut-vod", cutVODHandler(cfg))
	r.Get("/live", liveHandler(cfg))
	r.Get("/clips", clipsHandler(cfg))
	r.Get("/jobs", listJobsHandler(cfg))
	r.Get("/jobs/{id}", getJobHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func cutVODHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCutRequest(w, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		plan, err := clipper.ParseRequest(req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_VOD_URL")
			return
		}

		// Headers are buffered until the first body write, so a failure
		// before streaming can still replace them with a JSON error.
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", clipper.ArchiveName(plan.VODID)))
		w.Header().Set("Cache-Control", "no-store")

		cw := &countingWriter{w: w}
		if err := cfg.Clipper.Cut(r.Context(), plan, cw); err != nil {
			if cw.written > 0 {
				// A second response is impossible; the only safe move is to
				// terminate the connection and let the download fail.
				cfg.Logger.Error("archive streaming aborted mid-response",
					"vod_id", plan.VODID, "error", err)
				panic(http.ErrAbortHandler)
			}

			w.Header().Del("Content-Disposition")
			status, code := errorStatus(err)
			WriteError(w, status, err.Error(), code)
			return
		}
	}
}

func liveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.LiveStatus.Current())
	}
}

func clipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logins := splitLogins(r.URL.Query().Get("users"))
		if len(logins) == 0 {
			WriteJSON(w, http.StatusOK, ClipsResponse{Clips: []twitch.Clip{}, Error: "no users provided"})
			return
		}

		days := clampQueryInt(r, "days", 1, 365, 7)
		first := clampQueryInt(r, "first", 1, 50, 24)

		clips, err := fetchClips(r.Context(), cfg.Clips, logins, days, first)
		if err != nil {
			// The feed is decorative; degrade instead of failing the page.
			cfg.Logger.Warn("clips feed failed", "error", err)
			WriteJSON(w, http.StatusOK, ClipsResponse{Clips: []twitch.Clip{}, Error: err.Error()})
			return
		}

		WriteJSON(w, http.StatusOK, ClipsResponse{Clips: clips})
	}
}

func fetchClips(ctx context.Context, source ClipSource, logins []string, days, first int) ([]twitch.Clip, error) {
	if !source.HasCredentials() {
		return nil, errors.New("twitch credentials not configured")
	}

	token, err := source.AppAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	clips, err := source.TopClips(ctx, token, logins, days, first)
	if err != nil {
		return nil, err
	}
	if clips == nil {
		clips = []twitch.Clip{}
	}
	return clips, nil
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := clampQueryInt(r, "limit", 1, 200, 50)

		jobList, err := cfg.Repository.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: jobList})
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, job)
	}
}

// decodeCutRequest accepts the cut request as JSON or form-encoded.
func decodeCutRequest(w http.ResponseWriter, r *http.Request) (clipper.CutRequest, error) {
	var req clipper.CutRequest

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.VODURL = r.PostFormValue("vodUrl")
	req.ClipLength, _ = strconv.Atoi(r.PostFormValue("clipLength"))
	req.ClipCount, _ = strconv.Atoi(r.PostFormValue("clipCount"))
	return req, nil
}

// errorStatus maps pipeline errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	var inputErr *clipper.InputError
	var configErr *clipper.ConfigError
	var credErr *twitch.CredentialError
	var authErr *twitch.AuthorizationError
	var extractErr *extract.ExtractionError
	var archiveErr *archive.ArchiveError

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.As(err, &configErr):
		return http.StatusInternalServerError, "CONFIG_ERROR"
	case errors.As(err, &credErr):
		return http.StatusBadGateway, "UPSTREAM_AUTH_FAILED"
	case errors.As(err, &authErr):
		return http.StatusBadGateway, "PLAYBACK_AUTH_FAILED"
	case errors.As(err, &extractErr):
		return http.StatusInternalServerError, "EXTRACTION_FAILED"
	case errors.As(err, &archiveErr):
		return http.StatusInternalServerError, "ARCHIVE_FAILED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "PIPELINE_TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func splitLogins(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampQueryInt(r *http.Request, key string, min, max, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// countingWriter tracks whether any response bytes have been written, which
// decides between a clean JSON error and an aborted connection.
type countingWriter struct {
	w       io.Writer
	written int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.written += int64(n)
	return n, err
}
