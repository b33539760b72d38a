package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vidstitch/internal/logging"
	"vidstitch/internal/merge"
	"vidstitch/internal/services"
	"vidstitch/internal/testsupport"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return New(cfg, logging.NewNop())
}

func stageInputs(t *testing.T, dir string, names ...string) []merge.Input {
	t.Helper()
	inputs := make([]merge.Input, 0, len(names))
	for i, name := range names {
		src := filepath.Join(dir, name)
		testsupport.WriteFile(t, src, int64(1024*(i+1)))
		inputs = append(inputs, merge.Input{
			EntryID:    name,
			SourcePath: src,
			StagedName: "input" + string(rune('0'+i)) + ".mp4",
		})
	}
	return inputs
}

func TestStageCopiesInOrder(t *testing.T) {
	eng := testEngine(t)
	base := t.TempDir()
	jobDir := filepath.Join(base, "job-1")
	inputs := stageInputs(t, base, "a.mp4", "b.mp4", "c.mp4")

	var calls [][2]int
	err := eng.Stage(context.Background(), jobDir, inputs, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	if err != nil {
		t.Fatal(err)
	}

	for i, input := range inputs {
		staged := filepath.Join(jobDir, input.StagedName)
		info, err := os.Stat(staged)
		if err != nil {
			t.Fatalf("staged file %s missing: %v", input.StagedName, err)
		}
		if info.Size() != int64(1024*(i+1)) {
			t.Fatalf("staged %s size = %d", input.StagedName, info.Size())
		}
	}
	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(calls) != len(want) {
		t.Fatalf("staged callbacks = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("callback[%d] = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestStageMissingSourceDiscardsJobDir(t *testing.T) {
	eng := testEngine(t)
	base := t.TempDir()
	jobDir := filepath.Join(base, "job-1")
	inputs := stageInputs(t, base, "a.mp4")
	inputs = append(inputs, merge.Input{
		EntryID:    "ghost",
		SourcePath: filepath.Join(base, "ghost.mp4"),
		StagedName: "input1.mp4",
	})

	err := eng.Stage(context.Background(), jobDir, inputs, nil)
	if !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("err = %v, want merge-execution marker", err)
	}
	if _, statErr := os.Stat(jobDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("job dir survived failed staging: %v", statErr)
	}
}

func TestStageCanceledContextDiscardsJobDir(t *testing.T) {
	eng := testEngine(t)
	base := t.TempDir()
	jobDir := filepath.Join(base, "job-1")
	inputs := stageInputs(t, base, "a.mp4", "b.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.Stage(ctx, jobDir, inputs, nil)
	if !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("err = %v, want merge-execution marker", err)
	}
	if _, statErr := os.Stat(jobDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("job dir survived canceled staging: %v", statErr)
	}
}

func TestWriteManifest(t *testing.T) {
	eng := testEngine(t)
	jobDir := t.TempDir()

	manifest := "file 'input0.mp4'\nfile 'input1.mp4'\n"
	path, err := eng.WriteManifest(jobDir, manifest)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != manifest {
		t.Fatalf("manifest content = %q", got)
	}
	if filepath.Base(path) != merge.ManifestName {
		t.Fatalf("manifest name = %s", filepath.Base(path))
	}
}

func TestReadback(t *testing.T) {
	eng := testEngine(t)
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.mp4")
	if _, err := eng.Readback(missing); !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("missing output err = %v", err)
	}

	empty := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Readback(empty); !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("empty output err = %v", err)
	}

	good := filepath.Join(dir, "good.mp4")
	testsupport.WriteFile(t, good, 4096)
	size, err := eng.Readback(good)
	if err != nil {
		t.Fatal(err)
	}
	if size != 4096 {
		t.Fatalf("size = %d, want 4096", size)
	}
}

func TestLoadMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = "vidstitch-test-no-such-binary"
	eng := New(cfg, logging.NewNop())

	if err := eng.Load(); !errors.Is(err, services.ErrMergeExecution) {
		t.Fatalf("err = %v, want merge-execution marker", err)
	}
	// Memoized: second call returns the same failure without relookup.
	if err := eng.Load(); err == nil {
		t.Fatal("second Load succeeded unexpectedly")
	}
}
