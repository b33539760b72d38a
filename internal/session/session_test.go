package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vidstitch/internal/config"
	"vidstitch/internal/jobs"
	"vidstitch/internal/logging"
	"vidstitch/internal/services"
	"vidstitch/internal/session"
	"vidstitch/internal/testsupport"
)

const fakeProbeScript = `#!/bin/sh
cat <<'EOF'
{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":1920,"height":1080}],"format":{"duration":"2.000000","format_name":"mov,mp4,m4a,3gp,3g2,mj2"}}
EOF
exit 0
`

const fakeEncodeScript = `#!/bin/sh
out=""
for a in "$@"; do out="$a"; done
printf 'stitched' > "$out"
exit 0
`

const fakeSlowEncodeScript = `#!/bin/sh
case "$*" in
  *concat*) sleep 1 ;;
esac
out=""
for a in "$@"; do out="$a"; done
printf 'stitched' > "$out"
exit 0
`

const fakePartialEncodeScript = `#!/bin/sh
out=""
for a in "$@"; do out="$a"; done
printf 'truncated frames' > "$out"
exit 1
`

const fakeEmptyEncodeScript = `#!/bin/sh
out=""
for a in "$@"; do out="$a"; done
: > "$out"
exit 0
`

func writeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func newTestSession(t *testing.T, ffmpegScript string, observer session.Observer) (*session.Session, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	binDir := filepath.Join(testsupport.BaseDir(cfg), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Tools.FFprobe = writeTool(t, binDir, "ffprobe", fakeProbeScript)
	cfg.Tools.FFmpeg = writeTool(t, binDir, "ffmpeg", ffmpegScript)

	sess, err := session.New(session.Options{
		Config:   cfg,
		Logger:   logging.NewNop(),
		Observer: observer,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() {
		_ = sess.Close()
	})
	return sess, cfg
}

func addVideos(t *testing.T, sess *session.Session, cfg *config.Config, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for i, name := range names {
		path := filepath.Join(testsupport.BaseDir(cfg), name)
		testsupport.WriteFile(t, path, int64(2048*(i+1)))
		paths = append(paths, path)
	}
	ids := make([]string, 0, len(names))
	for _, result := range sess.AddPaths(context.Background(), paths) {
		if result.Err != nil {
			t.Fatalf("add %s: %v", result.SourcePath, result.Err)
		}
		ids = append(ids, result.EntryID)
	}
	return ids
}

type recordingObserver struct {
	mu       sync.Mutex
	percents []float64
	rejected []string
	failed   []error
	done     bool
}

func (o *recordingObserver) ProgressUpdated(jobID int64, phase string, percent float64, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.percents = append(o.percents, percent)
}

func (o *recordingObserver) EntryRejected(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, name)
}

func (o *recordingObserver) MergeCompleted(jobID int64, outputPath string, sizeBytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = true
}

func (o *recordingObserver) MergeFailed(jobID int64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, err)
}

func TestAddPathsValidatesAndExtracts(t *testing.T) {
	observer := &recordingObserver{}
	sess, cfg := newTestSession(t, fakeEncodeScript, observer)

	base := testsupport.BaseDir(cfg)
	good := filepath.Join(base, "clip.mp4")
	testsupport.WriteFile(t, good, 4096)
	text := filepath.Join(base, "notes.txt")
	testsupport.WriteFile(t, text, 64)
	missing := filepath.Join(base, "absent.mp4")

	results := sess.AddPaths(context.Background(), []string{good, text, missing})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("mp4 rejected: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, services.ErrRejectedInput) {
		t.Fatalf("txt err = %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, services.ErrRejectedInput) {
		t.Fatalf("missing file err = %v", results[2].Err)
	}

	entries := sess.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.DurationSeconds == nil || *entry.DurationSeconds != 2 {
		t.Fatalf("duration = %v", entry.DurationSeconds)
	}
	if entry.ThumbnailPath == nil {
		t.Fatal("thumbnail not captured")
	}
	if _, err := os.Stat(*entry.ThumbnailPath); err != nil {
		t.Fatalf("thumbnail missing on disk: %v", err)
	}

	if len(observer.rejected) != 2 {
		t.Fatalf("rejection callbacks = %v", observer.rejected)
	}
}

func TestExtractionFailureKeepsEntry(t *testing.T) {
	observer := &recordingObserver{}
	sess, cfg := newTestSession(t, fakeEncodeScript, observer)

	// Break ffprobe after session construction so Add still accepts the file.
	if err := os.WriteFile(cfg.Tools.FFprobe, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(testsupport.BaseDir(cfg), "clip.mp4")
	testsupport.WriteFile(t, path, 4096)
	results := sess.AddPaths(context.Background(), []string{path})
	if results[0].Err != nil {
		t.Fatalf("entry rejected on extraction failure: %v", results[0].Err)
	}

	entries := sess.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].DurationSeconds != nil || entries[0].ThumbnailPath != nil {
		t.Fatalf("degraded entry has metadata: %+v", entries[0])
	}
}

func TestMergeRequiresTwoFiles(t *testing.T) {
	sess, cfg := newTestSession(t, fakeEncodeScript, &recordingObserver{})

	_, err := sess.Merge(context.Background())
	if !errors.Is(err, services.ErrInsufficientInput) {
		t.Fatalf("empty set err = %v", err)
	}

	addVideos(t, sess, cfg, "a.mp4")
	_, err = sess.Merge(context.Background())
	if !errors.Is(err, services.ErrInsufficientInput) {
		t.Fatalf("single entry err = %v", err)
	}

	list, listErr := sess.Jobs(context.Background())
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(list) != 0 {
		t.Fatalf("rejected merges recorded jobs: %+v", list)
	}
}

func TestMergeEndToEnd(t *testing.T) {
	observer := &recordingObserver{}
	sess, cfg := newTestSession(t, fakeEncodeScript, observer)
	addVideos(t, sess, cfg, "a.mp4", "b.mp4", "c.mp4")

	job, err := sess.Merge(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("final percent = %v", job.ProgressPercent)
	}
	if !strings.HasPrefix(job.OutputName, "merged_video_") {
		t.Fatalf("output name = %s", job.OutputName)
	}

	info, err := os.Stat(job.ResultPath)
	if err != nil {
		t.Fatalf("result missing: %v", err)
	}
	if info.Size() != job.ResultSize || info.Size() == 0 {
		t.Fatalf("result size = %d, job says %d", info.Size(), job.ResultSize)
	}

	// The per-job staging directory is reclaimed after completion.
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "job-1")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging dir survived: %v", err)
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if !observer.done {
		t.Fatal("completion callback not fired")
	}
	last := float64(-1)
	for _, percent := range observer.percents {
		if percent < last {
			t.Fatalf("progress regressed: %v", observer.percents)
		}
		last = percent
	}
	if last != 100 {
		t.Fatalf("final reported percent = %v", last)
	}
}

func TestMergeRejectsConcurrentRequest(t *testing.T) {
	sess, cfg := newTestSession(t, fakeSlowEncodeScript, &recordingObserver{})
	addVideos(t, sess, cfg, "a.mp4", "b.mp4")

	firstDone := make(chan error, 1)
	go func() {
		_, err := sess.Merge(context.Background())
		firstDone <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		active, err := sess.ActiveJob(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if active != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first merge never became active")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := sess.Merge(context.Background()); !errors.Is(err, services.ErrMergeInFlight) {
		t.Fatalf("second merge err = %v", err)
	}

	if err := <-firstDone; err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
}

func TestMergeFailureMarksJob(t *testing.T) {
	observer := &recordingObserver{}
	sess, cfg := newTestSession(t, "#!/bin/sh\necho 'concat failed' >&2\nexit 1\n", observer)
	addVideos(t, sess, cfg, "a.mp4", "b.mp4")

	job, err := sess.Merge(context.Background())
	if !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("err = %v, want merge-execution marker", err)
	}
	if job == nil || job.ErrorMessage == "" {
		t.Fatalf("job = %+v", job)
	}
	if len(observer.failed) != 1 {
		t.Fatalf("failure callbacks = %d", len(observer.failed))
	}

	// A fresh merge is allowed after the failure.
	if _, err := sess.ActiveJob(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestMergeFailureRemovesPartialOutput(t *testing.T) {
	sess, cfg := newTestSession(t, fakePartialEncodeScript, &recordingObserver{})
	addVideos(t, sess, cfg, "a.mp4", "b.mp4")

	_, err := sess.Merge(context.Background())
	if !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("err = %v, want merge-execution marker", err)
	}

	leftovers, readErr := os.ReadDir(cfg.Paths.OutputDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(leftovers) != 0 {
		t.Fatalf("partial output survived failed merge: %v", leftovers)
	}
}

func TestReadbackFailureRemovesEmptyOutput(t *testing.T) {
	sess, cfg := newTestSession(t, fakeEmptyEncodeScript, &recordingObserver{})
	addVideos(t, sess, cfg, "a.mp4", "b.mp4")

	_, err := sess.Merge(context.Background())
	if !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("err = %v, want merge-execution marker", err)
	}

	leftovers, readErr := os.ReadDir(cfg.Paths.OutputDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(leftovers) != 0 {
		t.Fatalf("empty output survived failed readback: %v", leftovers)
	}
}

func TestMergeAsyncRejectsConcurrentStart(t *testing.T) {
	sess, cfg := newTestSession(t, fakeSlowEncodeScript, &recordingObserver{})
	addVideos(t, sess, cfg, "a.mp4", "b.mp4")

	if err := sess.MergeAsync(context.Background()); err != nil {
		t.Fatal(err)
	}
	// The slot is claimed before MergeAsync returns, so the refusal is
	// immediate rather than racing the background goroutine.
	if err := sess.MergeAsync(context.Background()); !errors.Is(err, services.ErrMergeInFlight) {
		t.Fatalf("second start err = %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		list, err := sess.Jobs(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(list) == 1 && list[0].Status == jobs.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("background merge never completed: %+v", list)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestReorderAndRemoveFlowIntoPlanOrder(t *testing.T) {
	sess, cfg := newTestSession(t, fakeEncodeScript, &recordingObserver{})
	ids := addVideos(t, sess, cfg, "a.mp4", "b.mp4", "c.mp4")

	if err := sess.Reorder([]string{ids[2], ids[0], ids[1]}); err != nil {
		t.Fatal(err)
	}
	if !sess.Remove(ids[0]) {
		t.Fatal("remove failed")
	}

	entries := sess.Entries()
	if len(entries) != 2 || entries[0].ID != ids[2] || entries[1].ID != ids[1] {
		t.Fatalf("unexpected order: %+v", entries)
	}

	if err := sess.Reorder(ids); !errors.Is(err, services.ErrReorder) {
		t.Fatalf("stale permutation err = %v", err)
	}
}

func TestResetClearsEverything(t *testing.T) {
	sess, cfg := newTestSession(t, fakeEncodeScript, &recordingObserver{})
	addVideos(t, sess, cfg, "a.mp4", "b.mp4")

	if _, err := sess.Merge(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sess.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}

	if sess.Count() != 0 {
		t.Fatalf("entries after reset = %d", sess.Count())
	}
	list, err := sess.Jobs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("job history survived reset: %+v", list)
	}

	remaining, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range remaining {
		if entry.Name() != "session.lock" && !strings.HasPrefix(entry.Name(), "jobs.db") {
			t.Fatalf("staging leftover after reset: %s", entry.Name())
		}
	}
}

func TestSecondSessionOnSameStagingDirFails(t *testing.T) {
	_, cfg := newTestSession(t, fakeEncodeScript, &recordingObserver{})

	_, err := session.New(session.Options{Config: cfg, Logger: logging.NewNop()})
	if err == nil || !strings.Contains(err.Error(), "in use") {
		t.Fatalf("err = %v, want lock conflict", err)
	}
}
