package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clipforge/clipforge-server/internal/clipper"
	"github.com/clipforge/clipforge-server/internal/extract"
	"github.com/clipforge/clipforge-server/internal/jobs"
	"github.com/clipforge/clipforge-server/internal/live"
	"github.com/clipforge/clipforge-server/internal/twitch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeCutter returns a canned error, or writes a minimal valid zip on success.
type fakeCutter struct {
	err      error
	lastPlan clipper.Plan
}

func (f *fakeCutter) Cut(ctx context.Context, plan clipper.Plan, w io.Writer) error {
	f.lastPlan = plan
	if f.err != nil {
		return f.err
	}
	zw := zip.NewWriter(w)
	fw, _ := zw.Create("vod_" + plan.VODID + "_clip_1.mp4")
	fw.Write([]byte("clip bytes"))
	return zw.Close()
}

type fakeClipSource struct {
	hasCreds bool
	clips    []twitch.Clip
	err      error
}

func (f *fakeClipSource) HasCredentials() bool { return f.hasCreds }

func (f *fakeClipSource) AppAccessToken(ctx context.Context) (string, error) {
	return "tok", nil
}

func (f *fakeClipSource) TopClips(ctx context.Context, appToken string, logins []string, days, first int) ([]twitch.Clip, error) {
	return f.clips, f.err
}

type fakeLiveStatus struct {
	snap live.Snapshot
}

func (f *fakeLiveStatus) Current() live.Snapshot { return f.snap }

// fakeRepo is an in-memory jobs.Repository for handler tests.
type fakeRepo struct {
	jobs map[string]*jobs.Job
	err  error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{jobs: map[string]*jobs.Job{}} }

func (f *fakeRepo) Create(ctx context.Context, j *jobs.Job) error {
	f.jobs[j.ID] = j
	return f.err
}
func (f *fakeRepo) MarkRunning(ctx context.Context, id string) error { return f.err }
func (f *fakeRepo) MarkCompleted(ctx context.Context, id string, durationMs int64) error {
	return f.err
}
func (f *fakeRepo) MarkFailed(ctx context.Context, id, errorMsg string, durationMs int64) error {
	return f.err
}
func (f *fakeRepo) Get(ctx context.Context, id string) (*jobs.Job, error) {
	return f.jobs[id], f.err
}
func (f *fakeRepo) List(ctx context.Context, limit int) ([]*jobs.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*jobs.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}
func (f *fakeRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	return 0, f.err
}

func testServerConfig() ServerConfig {
	return ServerConfig{
		Clipper:    &fakeCutter{},
		Clips:      &fakeClipSource{hasCreds: true},
		LiveStatus: &fakeLiveStatus{},
		Repository: newFakeRepo(),
		Logger:     testLogger(),
		StartTime:  time.Now(),
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
}

func TestCutVOD_Success(t *testing.T) {
	cfg := testServerConfig()
	cutter := &fakeCutter{}
	cfg.Clipper = cutter
	router := NewRouter(cfg)

	body := `{"vodUrl":"https://www.twitch.tv/videos/123456789","clipLength":15,"clipCount":2}`
	req := httptest.NewRequest(http.MethodPost, "/cut-vod", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q, want application/zip", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `clips_123456789.zip`) {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}

	if cutter.lastPlan.VODID != "123456789" || cutter.lastPlan.ClipLength != 15 || cutter.lastPlan.ClipCount != 2 {
		t.Errorf("plan = %+v", cutter.lastPlan)
	}

	if _, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len())); err != nil {
		t.Errorf("response body is not a valid zip: %v", err)
	}
}

func TestCutVOD_FormEncoded(t *testing.T) {
	cfg := testServerConfig()
	cutter := &fakeCutter{}
	cfg.Clipper = cutter
	router := NewRouter(cfg)

	form := "vodUrl=https://www.twitch.tv/videos/42&clipLength=10&clipCount=4"
	req := httptest.NewRequest(http.MethodPost, "/cut-vod", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if cutter.lastPlan.VODID != "42" || cutter.lastPlan.ClipLength != 10 || cutter.lastPlan.ClipCount != 4 {
		t.Errorf("plan = %+v", cutter.lastPlan)
	}
}

func TestCutVOD_InvalidURL(t *testing.T) {
	router := NewRouter(testServerConfig())

	body := `{"vodUrl":"https://example.com/nope"}`
	req := httptest.NewRequest(http.MethodPost, "/cut-vod", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "INVALID_VOD_URL" {
		t.Errorf("code = %q, want INVALID_VOD_URL", resp.Code)
	}
}

func TestCutVOD_BadJSON(t *testing.T) {
	router := NewRouter(testServerConfig())

	req := httptest.NewRequest(http.MethodPost, "/cut-vod", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCutVOD_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"config", &clipper.ConfigError{Reason: "no creds"}, http.StatusInternalServerError, "CONFIG_ERROR"},
		{"credential", &twitch.CredentialError{StatusCode: 401, Message: "bad"}, http.StatusBadGateway, "UPSTREAM_AUTH_FAILED"},
		{"authorization", &twitch.AuthorizationError{StatusCode: 403, Message: "denied"}, http.StatusBadGateway, "PLAYBACK_AUTH_FAILED"},
		{"extraction", &extract.ExtractionError{ExitCode: 1, StderrTail: "x"}, http.StatusInternalServerError, "EXTRACTION_FAILED"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "PIPELINE_TIMEOUT"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testServerConfig()
			cfg.Clipper = &fakeCutter{err: tt.err}
			router := NewRouter(cfg)

			body := `{"vodUrl":"https://www.twitch.tv/videos/123"}`
			req := httptest.NewRequest(http.MethodPost, "/cut-vod", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("error response is not JSON: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Content-Disposition"); got != "" {
				t.Errorf("Content-Disposition leaked into error response: %q", got)
			}
		})
	}
}

func TestLiveEndpoint(t *testing.T) {
	cfg := testServerConfig()
	cfg.LiveStatus = &fakeLiveStatus{snap: live.Snapshot{
		Live:      true,
		Streams:   []twitch.Stream{{UserLogin: "alpha", ViewerCount: 12}},
		CheckedAt: time.Now().UTC(),
	}}
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snap live.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !snap.Live || len(snap.Streams) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestClipsEndpoint_Success(t *testing.T) {
	cfg := testServerConfig()
	cfg.Clips = &fakeClipSource{hasCreds: true, clips: []twitch.Clip{{ID: "c1"}, {ID: "c2"}}}
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/clips?users=alpha,beta", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ClipsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Clips) != 2 || resp.Error != "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestClipsEndpoint_DegradesOnError(t *testing.T) {
	cfg := testServerConfig()
	cfg.Clips = &fakeClipSource{hasCreds: true, err: errors.New("helix down")}
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/clips?users=alpha", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on upstream failure", rec.Code)
	}

	var resp ClipsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error == "" {
		t.Error("expected error field in degraded response")
	}
	if resp.Clips == nil || len(resp.Clips) != 0 {
		t.Errorf("clips = %v, want empty slice", resp.Clips)
	}
}

func TestClipsEndpoint_NoUsers(t *testing.T) {
	router := NewRouter(testServerConfig())

	req := httptest.NewRequest(http.MethodGet, "/clips", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ClipsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error == "" {
		t.Error("expected explanatory error for missing users param")
	}
}

func TestJobsEndpoints(t *testing.T) {
	repo := newFakeRepo()
	job := jobs.New("123", 3, 30)
	repo.Create(context.Background(), job)

	cfg := testServerConfig()
	cfg.Repository = repo
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listResp JobsResponse
	json.NewDecoder(rec.Body).Decode(&listResp)
	if len(listResp.Jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(listResp.Jobs))
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var got jobs.Job
	json.NewDecoder(rec.Body).Decode(&got)
	if got.ID != job.ID || got.VODID != "123" {
		t.Errorf("job = %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestSplitLogins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"alpha", []string{"alpha"}},
		{"alpha, beta ,", []string{"alpha", "beta"}},
		{",,", nil},
	}
	for _, tt := range tests {
		got := splitLogins(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitLogins(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitLogins(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestClampQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 7},
		{"days=abc", 7},
		{"days=3", 3},
		{"days=0", 1},
		{"days=9999", 365},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/clips?"+tt.query, nil)
		if got := clampQueryInt(r, "days", 1, 365, 7); got != tt.want {
			t.Errorf("clampQueryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
