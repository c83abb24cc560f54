package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"reframe/internal/api"
	"reframe/internal/config"
	"reframe/internal/deps"
	"reframe/internal/geometry"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/services"
	"reframe/internal/testsupport"
	"reframe/internal/workflow"
)

type stubProber struct {
	dims geometry.Dimensions
	err  error
}

func (p stubProber) Dimensions(context.Context, string) (geometry.Dimensions, error) {
	return p.dims, p.err
}

type stubFeature struct {
	available bool
	reason    string
}

func (f stubFeature) Available() (bool, string) { return f.available, f.reason }
func (f stubFeature) Name() string              { return "whisperx" }

type idleRunner struct{}

func (idleRunner) Run(context.Context, job.Request, job.Observer) (job.Result, error) {
	return job.Result{}, errors.New("not used")
}

func newTestDaemon(t *testing.T, prober DimensionProber, opts ...testsupport.ConfigOption) (*Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	hub := logging.NewStreamHub(64)
	mgr := workflow.NewManager(cfg, store, idleRunner{}, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), mgr, Options{
		Prober:   prober,
		Captions: stubFeature{reason: "transcriber disabled"},
		LogHub:   hub,
		DependencyCheck: func(context.Context, *config.Config) []deps.Status {
			return []deps.Status{{Name: "FFmpeg", Command: "ffmpeg", Available: true}}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, cfg
}

func do(t *testing.T, d *Daemon, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	d.api.routes().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func writeSource(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := testsupport.UploadPath(cfg, name)
	testsupport.WriteFile(t, path, 16)
	return path
}

func TestSubmitAndFetchJob(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{})
	source := writeSource(t, cfg, "clip.mp4")

	body, _ := json.Marshal(api.TransformRequest{SourcePath: source, Resolution: "1080p", Format: "mp4", VideoType: "short", AutoCaption: true})
	w := do(t, d, http.MethodPost, "/api/jobs", body, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
	created := decode[api.JobResponse](t, w).Job
	if created.AspectRatio != "9:16" || created.Status != "pending" || created.OutputID == "" || !created.AutoCaption {
		t.Fatalf("unexpected job: %+v", created)
	}

	w = do(t, d, http.MethodGet, "/api/jobs/"+itoa(created.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[api.JobResponse](t, w).Job; got.OutputID != created.OutputID {
		t.Fatalf("fetched job mismatch: %+v", got)
	}

	w = do(t, d, http.MethodGet, "/api/jobs?status=pending", nil, nil)
	if list := decode[api.JobListResponse](t, w); len(list.Jobs) != 1 {
		t.Fatalf("expected 1 pending job, got %+v", list)
	}
	w = do(t, d, http.MethodGet, "/api/jobs?status=bogus", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{})
	source := writeSource(t, cfg, "clip.mp4")
	text := writeSource(t, cfg, "notes.txt")

	cases := map[string]struct {
		body any
		code int
	}{
		"custom ratio out of bounds": {api.TransformRequest{SourcePath: source, AspectRatio: "150:1"}, http.StatusBadRequest},
		"percent off step":           {api.TransformRequest{SourcePath: source, Resolution: "42%"}, http.StatusBadRequest},
		"missing source file":        {api.TransformRequest{SourcePath: filepath.Join(cfg.Paths.UploadDir, "gone.mp4")}, http.StatusNotFound},
		"unsupported extension":      {api.TransformRequest{SourcePath: text}, http.StatusBadRequest},
		"unknown field":              {map[string]any{"source_path": source, "colour": "red"}, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			w := do(t, d, http.MethodPost, "/api/jobs", body, nil)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
			if resp := decode[api.ErrorResponse](t, w); resp.Error == "" {
				t.Fatalf("expected error body")
			}
		})
	}

	items, err := d.store.List(context.Background())
	if err != nil || len(items) != 0 {
		t.Fatalf("rejected requests must not enqueue: %d items, %v", len(items), err)
	}
}

func TestUploadStoresAndProbes(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{dims: geometry.Dimensions{Width: 1920, Height: 1080}})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "../My Clip.MP4")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("not really a video"))
	_ = mw.Close()

	w := do(t, d, http.MethodPost, "/api/uploads", buf.Bytes(), http.Header{"Content-Type": {mw.FormDataContentType()}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.UploadResponse](t, w)
	if filepath.Dir(resp.Path) != cfg.Paths.UploadDir || !strings.HasSuffix(resp.Path, "_My Clip.MP4") {
		t.Fatalf("unexpected stored path %q", resp.Path)
	}
	if resp.Resolution != "1920x1080" || strings.Join(resp.AvailableResolutions, ",") != "720p,1080p" {
		t.Fatalf("unexpected probe result: %+v", resp)
	}
	if _, err := os.Stat(resp.Path); err != nil {
		t.Fatalf("upload missing: %v", err)
	}
}

func TestUploadRejectsExtensionAndUnreadable(t *testing.T) {
	unreadable := services.Wrap(services.ErrUnreadableMedia, "probe", "ffprobe", "no video stream", nil)
	d, cfg := newTestDaemon(t, stubProber{err: unreadable})

	send := func(name string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, _ := mw.CreateFormFile("file", name)
		_, _ = part.Write([]byte("data"))
		_ = mw.Close()
		return do(t, d, http.MethodPost, "/api/uploads", buf.Bytes(), http.Header{"Content-Type": {mw.FormDataContentType()}})
	}

	if w := send("clip.webm"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for webm, got %d", w.Code)
	}
	w := send("clip.mkv")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unreadable upload, got %d", w.Code)
	}
	if kind := decode[api.ErrorResponse](t, w).Kind; kind != "unreadable_media" {
		t.Fatalf("unexpected kind %q", kind)
	}
	entries, _ := os.ReadDir(cfg.Paths.UploadDir)
	if len(entries) != 0 {
		t.Fatalf("unreadable upload should be removed, found %d entries", len(entries))
	}
	if w := do(t, d, http.MethodPost, "/api/uploads", []byte("plain"), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without multipart body, got %d", w.Code)
	}
}

func TestResolutionEndpoint(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{dims: geometry.Dimensions{Width: 1280, Height: 720}})
	source := writeSource(t, cfg, "small.avi")

	body, _ := json.Marshal(api.ResolutionRequest{FilePath: source})
	w := do(t, d, http.MethodPost, "/api/resolution", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.ResolutionResponse](t, w)
	if resp.Resolution != "1280x720" || resp.Width != 1280 || resp.Height != 720 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if strings.Join(resp.AvailableResolutions, ",") != "720p" {
		t.Fatalf("unexpected labels %v", resp.AvailableResolutions)
	}
}

func TestOutputAndCaptionDownloads(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{})
	item := testsupport.Enqueue(t, d.store, cfg, "/videos/clip.mp4")

	w := do(t, d, http.MethodGet, "/api/jobs/"+itoa(item.ID)+"/output", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("pending job output should 404, got %d", w.Code)
	}

	output := job.OutputPath(cfg.Paths.OutputDir, item.OutputID, "mp4")
	track := job.CaptionPath(cfg.Paths.OutputDir, item.OutputID)
	testsupport.WriteFile(t, output, 32)
	if err := os.WriteFile(track, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	item.OutputPath = output
	item.CaptionPath = track
	if err := d.store.Complete(context.Background(), item); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	w = do(t, d, http.MethodGet, "/api/jobs/"+itoa(item.ID)+"/output", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "video/mp4" || w.Body.Len() != 32 {
		t.Fatalf("unexpected output response %d %q len=%d", w.Code, w.Header().Get("Content-Type"), w.Body.Len())
	}
	w = do(t, d, http.MethodGet, "/api/jobs/"+itoa(item.ID)+"/captions", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "-->") {
		t.Fatalf("unexpected captions response %d %q", w.Code, w.Body.String())
	}
	if w := do(t, d, http.MethodGet, "/api/jobs/999/output", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing job should 404, got %d", w.Code)
	}
	if w := do(t, d, http.MethodGet, "/api/jobs/abc", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id should 400, got %d", w.Code)
	}
}

func TestRetryAndRemove(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{})
	item := testsupport.Enqueue(t, d.store, cfg, "/videos/clip.mp4")

	if w := do(t, d, http.MethodPost, "/api/jobs/"+itoa(item.ID)+"/retry", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("retrying a pending job should 400, got %d", w.Code)
	}
	if err := d.store.Fail(context.Background(), item, "transcode", "transcode_failed", "boom"); err != nil {
		t.Fatal(err)
	}
	w := do(t, d, http.MethodPost, "/api/jobs/"+itoa(item.ID)+"/retry", nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	retried := decode[api.JobResponse](t, w).Job
	if retried.Status != "pending" || retried.OutputID == item.OutputID {
		t.Fatalf("retry should requeue under a new output id: %+v", retried)
	}

	if w := do(t, d, http.MethodDelete, "/api/jobs/"+itoa(item.ID), nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, d, http.MethodGet, "/api/jobs/"+itoa(item.ID), nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("removed job should 404, got %d", w.Code)
	}
}

func TestClearJobs(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{})
	done := testsupport.Enqueue(t, d.store, cfg, "/videos/a.mp4")
	testsupport.Enqueue(t, d.store, cfg, "/videos/b.mp4")
	done.OutputPath = "/out/a.mp4"
	if err := d.store.Complete(context.Background(), done); err != nil {
		t.Fatal(err)
	}

	w := do(t, d, http.MethodPost, "/api/jobs/clear?scope=completed", nil, nil)
	if w.Code != http.StatusOK || decode[api.ClearResponse](t, w).Removed != 1 {
		t.Fatalf("unexpected clear response %d %s", w.Code, w.Body.String())
	}
	if w := do(t, d, http.MethodPost, "/api/jobs/clear?scope=everything", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown scope should 400, got %d", w.Code)
	}
}

func TestFeaturesAndStatus(t *testing.T) {
	d, _ := newTestDaemon(t, stubProber{})

	features := decode[api.FeaturesResponse](t, do(t, d, http.MethodGet, "/api/features", nil, nil))
	if features.AutoCaptionAvailable || features.Reason != "transcriber disabled" || features.Transcriber != "whisperx" {
		t.Fatalf("unexpected features %+v", features)
	}
	if len(features.Formats) != 3 || len(features.AspectRatios) != 3 {
		t.Fatalf("expected formats and presets, got %+v", features)
	}

	status := decode[api.DaemonStatus](t, do(t, d, http.MethodGet, "/api/status", nil, nil))
	if status.Running || len(status.Dependencies) != 1 || status.QueueDBPath == "" {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Workflow.QueueStats["pending"] != 0 {
		t.Fatalf("unexpected stats %+v", status.Workflow.QueueStats)
	}
}

func TestLogsEndpoint(t *testing.T) {
	d, _ := newTestDaemon(t, stubProber{})
	d.hub.Publish(logging.LogEvent{Level: "INFO", Message: "first", Component: "workflow", JobID: 1})
	d.hub.Publish(logging.LogEvent{Level: "INFO", Message: "second", Component: "api-server"})

	resp := decode[api.LogStreamResponse](t, do(t, d, http.MethodGet, "/api/logs?tail=1&limit=1", nil, nil))
	if len(resp.Events) != 1 || resp.Events[0].Message != "second" || resp.Next != 2 {
		t.Fatalf("unexpected tail %+v", resp)
	}
	resp = decode[api.LogStreamResponse](t, do(t, d, http.MethodGet, "/api/logs?since=0&job=1", nil, nil))
	if len(resp.Events) != 1 || resp.Events[0].Message != "first" {
		t.Fatalf("unexpected filtered events %+v", resp)
	}
}

func TestAuthMiddleware(t *testing.T) {
	d, _ := newTestDaemon(t, stubProber{}, testsupport.WithAPIToken("secret"))

	if w := do(t, d, http.MethodGet, "/api/features", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(t, d, http.MethodGet, "/api/features", nil, http.Header{"Authorization": {"Bearer wrong"}}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := do(t, d, http.MethodGet, "/api/features", nil, http.Header{"Authorization": {"Bearer secret"}}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w := do(t, d, http.MethodGet, "/api/features?token=secret", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected query token to work for GET, got %d", w.Code)
	}
	if w := do(t, d, http.MethodPost, "/api/jobs?token=secret", []byte("{}"), nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("query token must not authorize POST, got %d", w.Code)
	}
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t, stubProber{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.APIAddr() == "" {
		t.Fatalf("expected a bound api address")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatalf("expected second start to fail")
	}

	resp, err := http.Get("http://" + d.APIAddr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatalf("daemon should report stopped")
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	d, cfg := newTestDaemon(t, stubProber{})
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	other := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, other, idleRunner{}, logging.NewNop())
	second, err := New(cfg, other, logging.NewNop(), mgr, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatalf("expected lock contention error")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
