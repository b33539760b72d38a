package testsupport

import (
	"context"
	"testing"

	"vidstitch/internal/config"
	"vidstitch/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a staging job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, outputName string, inputCount int) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), outputName, "file 'input0.mp4'\n", inputCount)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
