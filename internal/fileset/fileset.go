package fileset

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vidstitch/internal/services"
)

const (
	acceptedMIME      = "video/mp4"
	acceptedExtension = ".mp4"
)

// Entry is one user-selected video file tracked by the ordered set, plus
// its derived metadata.
type Entry struct {
	ID          string
	SourcePath  string
	DisplayName string
	SizeBytes   int64

	// DurationSeconds and ThumbnailPath stay nil until metadata
	// extraction resolves. Extraction failure leaves them nil for good;
	// callers render placeholders in that case.
	DurationSeconds *float64
	ThumbnailPath   *string
}

// Candidate describes a file offered to the set before validation.
type Candidate struct {
	SourcePath  string
	DisplayName string
	MIMEType    string
	SizeBytes   int64
}

// Set is the ordered, mutex-guarded sequence of entries.
type Set struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New creates an empty set.
func New() *Set {
	return &Set{}
}

// Add validates the candidate and appends it to the end of the order. The
// returned entry id is stable until removal and never reused. Metadata
// enrichment happens out of band; the entry exists immediately with its
// metadata fields unset.
func (s *Set) Add(candidate Candidate) (string, error) {
	name := strings.TrimSpace(candidate.DisplayName)
	if name == "" {
		name = filepath.Base(strings.TrimSpace(candidate.SourcePath))
	}
	if !Accepts(candidate.MIMEType, name) {
		return "", services.Wrap(services.ErrRejectedInput, "fileset",
			fmt.Sprintf("%s is not an MP4 file", name), nil)
	}

	entry := &Entry{
		ID:          uuid.NewString(),
		SourcePath:  candidate.SourcePath,
		DisplayName: name,
		SizeBytes:   candidate.SizeBytes,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

// Accepts reports whether a candidate's declared media type or filename
// indicates the accepted container. Either signal alone is enough: a
// misdeclared MIME type falls back to the extension and vice versa.
func Accepts(mimeType, name string) bool {
	if declared := strings.TrimSpace(mimeType); declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil && strings.EqualFold(parsed, acceptedMIME) {
			return true
		}
	}
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), acceptedExtension)
}

// Remove deletes the entry with the given id and reports whether a removal
// occurred. Absence is not an error.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.entries {
		if entry.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Reorder replaces the ordering with the supplied id sequence. The sequence
// must be exactly a permutation of the current id set; otherwise the call
// fails and the existing order is left untouched.
func (s *Set) Reorder(idOrder []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(idOrder) != len(s.entries) {
		return services.Wrap(services.ErrReorder, "fileset",
			fmt.Sprintf("sequence has %d ids, set has %d entries", len(idOrder), len(s.entries)), nil)
	}

	byID := make(map[string]*Entry, len(s.entries))
	for _, entry := range s.entries {
		byID[entry.ID] = entry
	}

	reordered := make([]*Entry, 0, len(idOrder))
	seen := make(map[string]struct{}, len(idOrder))
	for _, id := range idOrder {
		if _, dup := seen[id]; dup {
			return services.Wrap(services.ErrReorder, "fileset", fmt.Sprintf("duplicate id %s", id), nil)
		}
		seen[id] = struct{}{}
		entry, ok := byID[id]
		if !ok {
			return services.Wrap(services.ErrReorder, "fileset", fmt.Sprintf("unknown id %s", id), nil)
		}
		reordered = append(reordered, entry)
	}

	s.entries = reordered
	return nil
}

// Clear empties the set unconditionally.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Count returns the number of live entries.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns an immutable ordered copy safe to hand to a
// concurrently-progressing merge job. Later set mutations do not affect it.
func (s *Set) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		copied := *entry
		if entry.DurationSeconds != nil {
			duration := *entry.DurationSeconds
			copied.DurationSeconds = &duration
		}
		if entry.ThumbnailPath != nil {
			thumb := *entry.ThumbnailPath
			copied.ThumbnailPath = &thumb
		}
		snapshot = append(snapshot, copied)
	}
	return snapshot
}

// SetMetadata records extraction results for an entry. A nil duration or
// thumbnail leaves the corresponding field unset. Returns false when the
// entry has been removed in the meantime.
func (s *Set) SetMetadata(id string, durationSeconds *float64, thumbnailPath *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.ID == id {
			if durationSeconds != nil {
				duration := *durationSeconds
				entry.DurationSeconds = &duration
			}
			if thumbnailPath != nil {
				thumb := *thumbnailPath
				entry.ThumbnailPath = &thumb
			}
			return true
		}
	}
	return false
}
