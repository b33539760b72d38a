package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"vidstitch/internal/config"
	"vidstitch/internal/engine"
	"vidstitch/internal/fileset"
	"vidstitch/internal/jobs"
	"vidstitch/internal/logging"
	"vidstitch/internal/media/probe"
	"vidstitch/internal/notifications"
	"vidstitch/internal/services"
)

const (
	lockFileName = "session.lock"
	thumbDirName = "thumbnails"
)

// Observer receives session lifecycle callbacks. All methods may be called
// from merge worker goroutines; implementations must be safe for that.
type Observer interface {
	ProgressUpdated(jobID int64, phase string, percent float64, message string)
	EntryRejected(name string, err error)
	MergeCompleted(jobID int64, outputPath string, sizeBytes int64)
	MergeFailed(jobID int64, err error)
}

// NopObserver discards every callback.
type NopObserver struct{}

func (NopObserver) ProgressUpdated(int64, string, float64, string) {}
func (NopObserver) EntryRejected(string, error)                    {}
func (NopObserver) MergeCompleted(int64, string, int64)            {}
func (NopObserver) MergeFailed(int64, error)                       {}

// Options configures a session.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Observer Observer
	Notifier notifications.Service

	// Clock overrides time.Now for output naming. Nil uses the real clock.
	Clock func() time.Time
}

// Session coordinates the file set, extractor, engine, and job store for a
// single instance of the tool. At most one session may own a staging
// directory at a time.
type Session struct {
	cfg      *config.Config
	logger   *slog.Logger
	observer Observer
	notifier notifications.Service
	clock    func() time.Time

	set       *fileset.Set
	extractor *probe.Extractor
	engine    *engine.Engine
	lock      *flock.Flock

	storeMu sync.Mutex
	store   *jobs.Store

	mergeMu sync.Mutex
	merging bool
}

// New builds a session, acquires the staging-directory lock, and opens the
// job store. Fails when another process already holds the lock.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("session: config required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.StagingDir, lockFileName))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !held {
		return nil, fmt.Errorf("staging directory %s is in use by another instance", cfg.Paths.StagingDir)
	}

	store, err := jobs.Open(cfg.Paths.StagingDir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	eng := engine.New(cfg, logger)
	extractor := probe.NewExtractor(
		cfg.FFprobeBinary(),
		cfg.FFmpegBinary(),
		filepath.Join(cfg.Paths.StagingDir, thumbDirName),
		probe.ThumbnailOptions{
			Width:   cfg.Extraction.ThumbnailWidth,
			Height:  cfg.Extraction.ThumbnailHeight,
			Quality: cfg.Extraction.ThumbnailQuality,
		},
		cfg.Extraction.Concurrency,
		logger,
	)

	return &Session{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "session"),
		observer:  observer,
		notifier:  notifier,
		clock:     clock,
		set:       fileset.New(),
		extractor: extractor,
		engine:    eng,
		lock:      lock,
		store:     store,
	}, nil
}

// Close releases the job store and the staging lock. Thumbnails and staged
// files are left for Reset to reclaim.
func (s *Session) Close() error {
	s.storeMu.Lock()
	store := s.store
	s.store = nil
	s.storeMu.Unlock()

	var errs []error
	if store != nil {
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddResult reports the outcome of adding one path.
type AddResult struct {
	SourcePath string
	EntryID    string
	Err        error
}

// AddPaths validates and appends each path to the set in the given order,
// then extracts metadata for the accepted entries in one bounded batch.
// A rejected or unreadable path never blocks its siblings.
func (s *Session) AddPaths(ctx context.Context, paths []string) []AddResult {
	results := make([]AddResult, 0, len(paths))
	var requests []probe.Request

	for _, path := range paths {
		result := AddResult{SourcePath: path}
		info, err := os.Stat(path)
		switch {
		case err != nil:
			result.Err = services.Wrap(services.ErrRejectedInput, "session", "stat "+path, err)
		case info.IsDir():
			result.Err = services.Wrap(services.ErrRejectedInput, "session", path+" is a directory", nil)
		default:
			id, addErr := s.set.Add(fileset.Candidate{
				SourcePath:  path,
				DisplayName: filepath.Base(path),
				MIMEType:    mime.TypeByExtension(filepath.Ext(path)),
				SizeBytes:   info.Size(),
			})
			result.EntryID = id
			result.Err = addErr
		}

		if result.Err != nil {
			s.logger.Warn("input rejected",
				logging.String("path", path),
				logging.Error(result.Err))
			s.observer.EntryRejected(filepath.Base(path), result.Err)
		} else {
			requests = append(requests, probe.Request{Key: result.EntryID, SourcePath: path})
		}
		results = append(results, result)
	}

	if len(requests) > 0 {
		metadata := s.extractor.ExtractBatch(ctx, requests)
		for key, meta := range metadata {
			s.set.SetMetadata(key, meta.DurationSeconds, meta.ThumbnailPath)
		}
	}
	return results
}

// Remove drops an entry and its thumbnail. Absence is not an error.
func (s *Session) Remove(id string) bool {
	removed := s.set.Remove(id)
	if removed {
		s.extractor.RemoveThumbnail(id)
	}
	return removed
}

// Reorder applies a full permutation of entry ids, atomically.
func (s *Session) Reorder(idOrder []string) error {
	return s.set.Reorder(idOrder)
}

// Clear empties the set and removes every thumbnail.
func (s *Session) Clear() {
	for _, entry := range s.set.Snapshot() {
		s.extractor.RemoveThumbnail(entry.ID)
	}
	s.set.Clear()
}

// Entries returns an ordered copy of the current set.
func (s *Session) Entries() []fileset.Entry {
	return s.set.Snapshot()
}

// Count returns the number of entries.
func (s *Session) Count() int {
	return s.set.Count()
}

// Job fetches one job by id.
func (s *Session) Job(ctx context.Context, id int64) (*jobs.Job, error) {
	store, err := s.jobStore()
	if err != nil {
		return nil, err
	}
	return store.GetByID(ctx, id)
}

// ActiveJob returns the in-flight job, if any.
func (s *Session) ActiveJob(ctx context.Context) (*jobs.Job, error) {
	store, err := s.jobStore()
	if err != nil {
		return nil, err
	}
	return store.Active(ctx)
}

// Jobs lists every job recorded this session.
func (s *Session) Jobs(ctx context.Context) ([]*jobs.Job, error) {
	store, err := s.jobStore()
	if err != nil {
		return nil, err
	}
	return store.List(ctx)
}

// Health summarizes job counts per lifecycle state.
func (s *Session) Health(ctx context.Context) (jobs.HealthSummary, error) {
	store, err := s.jobStore()
	if err != nil {
		return jobs.HealthSummary{}, err
	}
	return store.Health(ctx)
}

// Reset returns the session to its initial state: the set is emptied, every
// staged artifact and thumbnail is removed, and the job history is destroyed.
// Refused while a merge is running.
func (s *Session) Reset(ctx context.Context) error {
	s.mergeMu.Lock()
	if s.merging {
		s.mergeMu.Unlock()
		return services.Wrap(services.ErrMergeInFlight, "session", "reset refused while merging", nil)
	}
	s.mergeMu.Unlock()

	s.Clear()

	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if s.store != nil {
		if err := s.store.Destroy(); err != nil {
			return err
		}
		s.store = nil
	}

	entries, err := os.ReadDir(s.cfg.Paths.StagingDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read staging directory: %w", err)
	}
	for _, entry := range entries {
		if entry.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.cfg.Paths.StagingDir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}

	store, err := jobs.Open(s.cfg.Paths.StagingDir)
	if err != nil {
		return err
	}
	s.store = store
	s.logger.Info("session reset")
	return nil
}

func (s *Session) jobStore() (*jobs.Store, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if s.store == nil {
		return nil, errors.New("session: job store closed")
	}
	return s.store, nil
}

func displayList(entries []fileset.Entry) string {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.DisplayName)
	}
	return strings.Join(names, ", ")
}
