// Package engine drives the external ffmpeg/ffprobe binaries through the
// merge pipeline: locate (once), stage inputs, write the manifest, execute
// the concat, and read back the result. The pipeline is strictly
// sequential; no step overlaps the next.
package engine
