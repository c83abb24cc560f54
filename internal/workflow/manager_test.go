package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reframe/internal/captions"
	"reframe/internal/config"
	"reframe/internal/geometry"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/testsupport"
	"reframe/internal/workflow"
)

type stubRunner struct {
	mu       sync.Mutex
	requests []job.Request
	run      func(ctx context.Context, req job.Request, observe job.Observer) (job.Result, error)
}

func (s *stubRunner) Run(ctx context.Context, req job.Request, observe job.Observer) (job.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.run(ctx, req, observe)
}

func (s *stubRunner) first() job.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[0]
}

func (s *stubRunner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func succeed(_ context.Context, req job.Request, observe job.Observer) (job.Result, error) {
	observe(job.Event{Stage: job.StageResolve})
	observe(job.Event{Stage: job.StageTranscode})
	observe(job.Event{Stage: job.StageTranscode, Percent: 50})
	return job.Result{
		OutputID:      req.OutputID,
		OutputPath:    job.OutputPath(req.OutputDir, req.OutputID, "mp4"),
		CaptionStatus: captions.StatusNotRequested,
		Source:        geometry.Dimensions{Width: 1920, Height: 1080},
		Target:        geometry.Dimensions{Width: 608, Height: 1080},
	}, nil
}

func newManager(t *testing.T, runner workflow.Runner, opts ...testsupport.ConfigOption) (*workflow.Manager, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Workflow.PollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, runner, logging.NewNop())
	return mgr, store, cfg
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(20 * time.Millisecond)
	}
	item, _ := store.GetByID(context.Background(), id)
	t.Fatalf("item %d did not reach %s, last state %#v", id, want, item)
	return nil
}

func TestManagerCompletesJobs(t *testing.T) {
	runner := &stubRunner{run: succeed}
	mgr, store, cfg := newManager(t, runner)
	item := testsupport.Enqueue(t, store, cfg, "/videos/clip.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()
	mgr.Wake()

	done := waitForStatus(t, store, item.ID, queue.StatusCompleted)
	if done.TargetWidth != 608 || done.TargetHeight != 1080 || done.SourceWidth != 1920 {
		t.Fatalf("geometry not persisted: %#v", done)
	}
	if done.OutputPath == "" || done.ProgressPercent != 100 {
		t.Fatalf("unexpected completed item %#v", done)
	}
	if done.CaptionStatus != string(captions.StatusNotRequested) {
		t.Fatalf("caption status = %q", done.CaptionStatus)
	}

	req := runner.first()
	if req.AspectRatio.String() != "9:16" || req.Scale.Label != "1080p" || req.OutputID != item.OutputID {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestManagerRecordsClassifiedFailure(t *testing.T) {
	runner := &stubRunner{run: func(context.Context, job.Request, job.Observer) (job.Result, error) {
		err := services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg", "encoder exited with error", errors.New("exit 1"))
		return job.Result{Error: &job.Failure{Stage: job.StageTranscode, Kind: services.Kind(err), Message: err.Error()}}, err
	}}
	mgr, store, cfg := newManager(t, runner)
	item := testsupport.Enqueue(t, store, cfg, "/videos/broken.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	failed := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if failed.ErrorStage != "transcode" || failed.ErrorKind != "transcode_failed" {
		t.Fatalf("unexpected failure fields %#v", failed)
	}
	status := mgr.Status(context.Background())
	if !status.Running || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerRejectsUnparseableRequestWithoutRunning(t *testing.T) {
	runner := &stubRunner{run: succeed}
	mgr, store, cfg := newManager(t, runner)
	item, err := store.Enqueue(context.Background(), queue.Spec{
		SourcePath:  "/videos/clip.mp4",
		AspectRatio: "wide",
		Resolution:  "1080p",
		Format:      "mp4",
		OutputDir:   cfg.Paths.OutputDir,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	failed := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if failed.ErrorKind != "invalid_spec" || failed.ErrorStage != "resolve" {
		t.Fatalf("unexpected failure %#v", failed)
	}
	if runner.count() != 0 {
		t.Fatal("runner must not be called for an invalid request")
	}
}

func TestManagerRunsJobsConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	runner := &stubRunner{run: func(ctx context.Context, req job.Request, observe job.Observer) (job.Result, error) {
		started.Done()
		<-release
		return succeed(ctx, req, observe)
	}}
	mgr, store, cfg := newManager(t, runner, testsupport.WithWorkers(2))
	a := testsupport.Enqueue(t, store, cfg, "/videos/a.mp4")
	b := testsupport.Enqueue(t, store, cfg, "/videos/b.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("expected both jobs to start in parallel")
	}
	if active := mgr.Status(context.Background()).Active; len(active) != 2 {
		t.Fatalf("expected 2 active jobs, got %v", active)
	}
	close(release)
	waitForStatus(t, store, a.ID, queue.StatusCompleted)
	waitForStatus(t, store, b.ID, queue.StatusCompleted)
}

func TestManagerStopFailsInFlightJobs(t *testing.T) {
	started := make(chan struct{})
	runner := &stubRunner{run: func(ctx context.Context, _ job.Request, observe job.Observer) (job.Result, error) {
		observe(job.Event{Stage: job.StageTranscode})
		close(started)
		<-ctx.Done()
		return job.Result{}, ctx.Err()
	}}
	mgr, store, cfg := newManager(t, runner)
	item := testsupport.Enqueue(t, store, cfg, "/videos/long.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	mgr.Stop()

	got, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed || got.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected item after stop %#v", got)
	}
	if mgr.Running() {
		t.Fatal("manager should not be running after Stop")
	}
}

func TestRequestFromItemDefaultsRatioFromVideoType(t *testing.T) {
	req, err := workflow.RequestFromItem(&queue.Item{
		SourcePath: "a.mp4",
		Resolution: "50%",
		Format:     "mkv",
		VideoType:  geometry.VideoTypeShort,
		OutputDir:  "/out",
	})
	if err != nil {
		t.Fatalf("RequestFromItem: %v", err)
	}
	if req.AspectRatio.String() != "9:16" {
		t.Fatalf("ratio = %s, want 9:16", req.AspectRatio)
	}
	if req.Scale.Kind != geometry.ScalePercentage || req.Scale.Percent != 50 {
		t.Fatalf("unexpected scale %+v", req.Scale)
	}
}

func TestManagerAnnouncesOutcomes(t *testing.T) {
	titles := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		titles <- r.Header.Get("Title")
	}))
	defer server.Close()

	runner := &stubRunner{run: func(ctx context.Context, req job.Request, observe job.Observer) (job.Result, error) {
		if strings.Contains(req.SourcePath, "bad") {
			return job.Result{}, services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg", "exit 1", nil)
		}
		return succeed(ctx, req, observe)
	}}
	mgr, store, cfg := newManager(t, runner, testsupport.WithWorkers(1), testsupport.WithNtfyTopic(server.URL))
	good := testsupport.Enqueue(t, store, cfg, "/videos/good.mp4")
	bad := testsupport.Enqueue(t, store, cfg, "/videos/bad.mp4")

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()
	mgr.Wake()

	waitForStatus(t, store, good.ID, queue.StatusCompleted)
	waitForStatus(t, store, bad.ID, queue.StatusFailed)

	got := map[string]bool{}
	for range 2 {
		select {
		case title := <-titles:
			got[title] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for notifications, got %v", got)
		}
	}
	if !got["Reframe - Job Complete"] || !got["Reframe - Job Failed"] {
		t.Fatalf("unexpected notifications %v", got)
	}
}
