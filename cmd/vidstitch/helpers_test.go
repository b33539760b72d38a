package main

import "testing"

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{5 * 1 << 20, "5.00 MiB"},
		{2 * 1 << 30, "2.00 GiB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.in); got != tc.want {
			t.Fatalf("formatSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	short := 62.4
	long := 3725.0
	cases := []struct {
		name string
		in   *float64
		want string
	}{
		{"unknown", nil, "--:--"},
		{"minutes", &short, "1:02"},
		{"hours", &long, "1:02:05"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatDuration(tc.in); got != tc.want {
				t.Fatalf("formatDuration = %q, want %q", got, tc.want)
			}
		})
	}
}
