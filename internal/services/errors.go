// Package services defines the shared error taxonomy for vidstitch
// components and helpers for wrapping failures with operation context.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRejectedInput marks a candidate file that is not an acceptable
	// MP4 input. Per-file, non-fatal.
	ErrRejectedInput = errors.New("rejected input")
	// ErrUnreadableMedia marks a metadata extraction failure. The entry
	// degrades to placeholder metadata; merging is unaffected.
	ErrUnreadableMedia = errors.New("unreadable media")
	// ErrReorder marks an invalid permutation passed to reorder. The
	// existing order is left untouched.
	ErrReorder = errors.New("invalid reorder")
	// ErrInsufficientInput marks a merge request with fewer than two
	// entries. No engine invocation is attempted.
	ErrInsufficientInput = errors.New("insufficient input")
	// ErrMergeExecution marks an engine load/stage/execute/readback
	// failure. Fatal to the current job only.
	ErrMergeExecution = errors.New("merge execution failed")
	// ErrMergeInFlight marks a merge request while another is running.
	ErrMergeInFlight = errors.New("merge already in flight")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation string, err error) error {
	detail := buildDetail(component, operation)
	if marker == nil {
		marker = ErrMergeExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation string) string {
	parts := make([]string, 0, 2)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// IsFatalToJob reports whether an error should abandon the current merge job.
// Entry-level failures (rejection, unreadable media) never are.
func IsFatalToJob(err error) bool {
	switch {
	case errors.Is(err, ErrRejectedInput), errors.Is(err, ErrUnreadableMedia):
		return false
	default:
		return err != nil
	}
}
