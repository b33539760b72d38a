// Package probe derives duration and a representative thumbnail for video
// files via ffprobe and ffmpeg. Extraction is isolated from the file set so
// a failed probe degrades a single entry without corrupting the set.
package probe
