package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vidstitch/internal/fileset"
	"vidstitch/internal/jobs"
	"vidstitch/internal/logging"
	"vidstitch/internal/merge"
	"vidstitch/internal/services"
)

// beginMerge claims the single merge slot. Fails with the in-flight marker
// when a merge is already running.
func (s *Session) beginMerge() error {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()
	if s.merging {
		return services.Wrap(services.ErrMergeInFlight, "session", "merge already running", nil)
	}
	s.merging = true
	return nil
}

func (s *Session) endMerge() {
	s.mergeMu.Lock()
	s.merging = false
	s.mergeMu.Unlock()
}

// Merge snapshots the current order and runs the full pipeline: stage,
// concat, read back. It blocks until the job finishes and returns the final
// job record. Only one merge may run at a time; a second request fails with
// the in-flight marker without touching the engine.
func (s *Session) Merge(ctx context.Context) (*jobs.Job, error) {
	if err := s.beginMerge(); err != nil {
		return nil, err
	}
	defer s.endMerge()
	return s.runMerge(ctx)
}

// MergeAsync claims the merge slot synchronously, then runs the pipeline in
// the background. Callers learn about a concurrent merge immediately instead
// of from a log line after the fact; outcomes reach them through the observer
// and the job store.
func (s *Session) MergeAsync(ctx context.Context) error {
	if err := s.beginMerge(); err != nil {
		return err
	}
	go func() {
		defer s.endMerge()
		if _, err := s.runMerge(ctx); err != nil {
			s.logger.Error("background merge failed", logging.Error(err))
		}
	}()
	return nil
}

func (s *Session) runMerge(ctx context.Context) (*jobs.Job, error) {
	snapshot := s.set.Snapshot()
	plan, err := merge.Build(snapshot, s.clock())
	if err != nil {
		return nil, err
	}

	store, err := s.jobStore()
	if err != nil {
		return nil, err
	}
	job, err := store.Create(ctx, plan.OutputName, plan.Manifest, len(plan.Inputs))
	if err != nil {
		return nil, err
	}

	s.logger.Info("merge started",
		logging.Int64("job", job.ID),
		logging.Int("inputs", len(plan.Inputs)),
		logging.String("output", plan.OutputName),
		logging.String("order", displayList(snapshot)))
	if err := s.notifier.NotifyMergeStarted(ctx, len(plan.Inputs)); err != nil {
		s.logger.Warn("merge-started notification failed", logging.Error(err))
	}

	if err := s.runPipeline(ctx, store, job, plan, snapshotDuration(snapshot)); err != nil {
		job.SetFailed(err.Error())
		if updateErr := store.Update(ctx, job); updateErr != nil {
			s.logger.Error("failed to record job failure", logging.Error(updateErr))
		}
		s.observer.MergeFailed(job.ID, err)
		if notifyErr := s.notifier.NotifyError(context.WithoutCancel(ctx), err, "merge"); notifyErr != nil {
			s.logger.Warn("error notification failed", logging.Error(notifyErr))
		}
		s.logger.Error("merge failed",
			logging.Int64("job", job.ID),
			logging.Error(err))
		return job, err
	}

	s.observer.MergeCompleted(job.ID, job.ResultPath, job.ResultSize)
	if err := s.notifier.NotifyMergeCompleted(ctx, job.OutputName, job.ResultSize); err != nil {
		s.logger.Warn("completion notification failed", logging.Error(err))
	}
	s.logger.Info("merge completed",
		logging.Int64("job", job.ID),
		logging.String("result", job.ResultPath),
		logging.Int64("bytes", job.ResultSize))
	return job, nil
}

func (s *Session) runPipeline(ctx context.Context, store *jobs.Store, job *jobs.Job, plan merge.Plan, totalDuration float64) error {
	mapper := merge.NewMapper(merge.SubRanges{
		StagingStart: s.cfg.Progress.StagingStart,
		StagingEnd:   s.cfg.Progress.StagingEnd,
		EncodeEnd:    s.cfg.Progress.EncodeEnd,
	})
	sampler := logging.NewProgressSampler(5)
	publish := func(phase, message string, percent float64) {
		job.SetProgress(phase, message, percent)
		if err := store.Update(ctx, job); err != nil {
			s.logger.Warn("progress update failed", logging.Error(err))
		}
		s.observer.ProgressUpdated(job.ID, phase, percent, message)
		if sampler.ShouldLog(percent, phase) {
			s.logger.Info("merge progress",
				logging.Int64("job", job.ID),
				logging.String("phase", phase),
				logging.Float64("percent", percent))
		}
	}

	if err := s.engine.Load(); err != nil {
		return err
	}

	jobDir := filepath.Join(s.cfg.Paths.StagingDir, fmt.Sprintf("job-%d", job.ID))
	total := len(plan.Inputs)
	publish("staging", fmt.Sprintf("staging 0/%d files", total), mapper.Staging(0, total))

	err := s.engine.Stage(ctx, jobDir, plan.Inputs, func(done, total int) {
		publish("staging", fmt.Sprintf("staging %d/%d files", done, total), mapper.Staging(done, total))
	})
	if err != nil {
		return err
	}

	manifestPath, err := s.engine.WriteManifest(jobDir, plan.Manifest)
	if err != nil {
		return err
	}

	job.Status = jobs.StatusEncoding
	publish("encoding", "concatenating streams", mapper.Encoding(0))

	outputPath := filepath.Join(s.cfg.Paths.OutputDir, plan.OutputName)
	err = s.engine.Execute(ctx, jobDir, plan.EngineArgs(manifestPath, outputPath), totalDuration, func(fraction float64) {
		publish("encoding", "concatenating streams", mapper.Encoding(fraction))
	})
	if err != nil {
		s.removePartialOutput(outputPath)
		return err
	}

	size, err := s.engine.Readback(outputPath)
	if err != nil {
		s.engine.Discard(jobDir)
		s.removePartialOutput(outputPath)
		return err
	}
	s.engine.Discard(jobDir)

	mapper.Complete()
	job.SetCompleted(outputPath, size)
	if err := store.Update(ctx, job); err != nil {
		return err
	}
	s.observer.ProgressUpdated(job.ID, "completed", 100, "merge complete")
	return nil
}

// removePartialOutput deletes a half-written result file so a failed or
// canceled merge leaves the output directory as it was before the attempt.
func (s *Session) removePartialOutput(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove partial output",
			logging.String("path", path),
			logging.Error(err))
	}
}

// snapshotDuration sums the known entry durations. Entries whose extraction
// failed contribute nothing; a zero total disables intermediate encode
// fractions rather than fabricating them.
func snapshotDuration(entries []fileset.Entry) float64 {
	var total float64
	for _, entry := range entries {
		if entry.DurationSeconds != nil {
			total += *entry.DurationSeconds
		}
	}
	return total
}
