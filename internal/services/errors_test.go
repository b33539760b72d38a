package services

import (
	"errors"
	"testing"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(ErrMergeExecution, "engine", "execute concat", cause)

	if !errors.Is(err, ErrMergeExecution) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "merge execution failed: engine: execute concat: exit status 1"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrInsufficientInput, "merge", "need at least 2 files, have 1", nil)
	if !errors.Is(err, ErrInsufficientInput) {
		t.Fatalf("marker lost: %v", err)
	}
}

func TestWrapNilMarkerDefaults(t *testing.T) {
	err := Wrap(nil, "engine", "stage", errors.New("disk full"))
	if !errors.Is(err, ErrMergeExecution) {
		t.Fatalf("nil marker should default to merge execution: %v", err)
	}
}

func TestIsFatalToJob(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rejected input", Wrap(ErrRejectedInput, "fileset", "not mp4", nil), false},
		{"unreadable media", Wrap(ErrUnreadableMedia, "probe", "inspect", nil), false},
		{"merge execution", Wrap(ErrMergeExecution, "engine", "stage", nil), true},
		{"plain error", errors.New("boom"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFatalToJob(tc.err); got != tc.want {
				t.Fatalf("IsFatalToJob = %v, want %v", got, tc.want)
			}
		})
	}
}
