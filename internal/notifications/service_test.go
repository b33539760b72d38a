package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vidstitch/internal/testsupport"
)

type recorded struct {
	title    string
	tags     string
	priority string
	body     string
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, *[]recorded) {
	t.Helper()
	var requests []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recorded{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func serviceFor(t *testing.T, topic string) Service {
	t.Helper()
	return NewService(testsupport.NewConfig(t, testsupport.WithNtfyTopic(topic)))
}

func TestNoopWhenUnconfigured(t *testing.T) {
	service := serviceFor(t, "")
	if _, ok := service.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", service)
	}
	if err := service.NotifyMergeStarted(context.Background(), 3); err != nil {
		t.Fatalf("noop returned error: %v", err)
	}
}

func TestNotifyMergeCompleted(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)
	service := serviceFor(t, server.URL)

	if err := service.NotifyMergeCompleted(context.Background(), "merged_video_20260829_1405.mp4", 5*1024*1024); err != nil {
		t.Fatal(err)
	}

	if len(*requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(*requests))
	}
	req := (*requests)[0]
	if !strings.Contains(req.title, "Merge Complete") {
		t.Fatalf("title = %q", req.title)
	}
	if !strings.Contains(req.body, "merged_video_20260829_1405.mp4") || !strings.Contains(req.body, "MiB") {
		t.Fatalf("body = %q", req.body)
	}
	if req.priority != "high" {
		t.Fatalf("priority = %q", req.priority)
	}
}

func TestNotifyErrorIncludesContext(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)
	service := serviceFor(t, server.URL)

	cause := errors.New("ffmpeg exited with status 1")
	if err := service.NotifyError(context.Background(), cause, "merge"); err != nil {
		t.Fatal(err)
	}

	req := (*requests)[0]
	if !strings.Contains(req.body, "merge") || !strings.Contains(req.body, "ffmpeg exited") {
		t.Fatalf("body = %q", req.body)
	}
	if !strings.Contains(req.tags, "error") {
		t.Fatalf("tags = %q", req.tags)
	}
}

func TestSendSurfacesServerErrors(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusForbidden)
	service := serviceFor(t, server.URL)

	err := service.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("err = %v, want 403 mention", err)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KiB"},
		{5 * 1024 * 1024, "5.00 MiB"},
		{3 * 1024 * 1024 * 1024, "3.00 GiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
