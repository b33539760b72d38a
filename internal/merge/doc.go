// Package merge derives staged input names, the concat-demuxer manifest,
// and the engine argument vector deterministically from an ordered snapshot
// of the file set, and maps phase progress onto the displayed percent range.
package merge
