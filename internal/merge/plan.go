package merge

import (
	"fmt"
	"strings"
	"time"

	"vidstitch/internal/fileset"
	"vidstitch/internal/services"
)

const (
	// ManifestName is the concat list filename written into the staging
	// directory alongside the staged inputs.
	ManifestName = "inputs.txt"

	outputPrefix    = "merged_video_"
	outputExtension = ".mp4"
	stagedExtension = ".mp4"
)

// Input pairs an entry with the synthetic staged name it merges under.
// Staged names are collision-free and independent of user filenames.
type Input struct {
	EntryID    string
	SourcePath string
	StagedName string
}

// Plan is the deterministic description of a merge job, built from an immutable
// snapshot of the file-set order. Later set mutations do not affect it.
type Plan struct {
	Inputs     []Input
	Manifest   string
	OutputName string
}

// Build derives a plan from the ordered entries. Fails with the
// insufficient-input marker when fewer than two entries are supplied.
// Building twice from the same order and clock yields identical plans.
func Build(entries []fileset.Entry, now time.Time) (Plan, error) {
	if len(entries) < 2 {
		return Plan{}, services.Wrap(services.ErrInsufficientInput, "merge",
			fmt.Sprintf("need at least 2 files, have %d", len(entries)), nil)
	}

	plan := Plan{
		Inputs:     make([]Input, 0, len(entries)),
		OutputName: OutputName(now),
	}
	var manifest strings.Builder
	for i, entry := range entries {
		staged := fmt.Sprintf("input%d%s", i, stagedExtension)
		plan.Inputs = append(plan.Inputs, Input{
			EntryID:    entry.ID,
			SourcePath: entry.SourcePath,
			StagedName: staged,
		})
		fmt.Fprintf(&manifest, "file '%s'\n", staged)
	}
	plan.Manifest = manifest.String()
	return plan, nil
}

// OutputName returns the timestamp-derived output filename.
func OutputName(now time.Time) string {
	return outputPrefix + now.Format("20060102_1504") + outputExtension
}

// EngineArgs returns the fixed ffmpeg argument vector: concat-demuxer input
// mode, unsafe-path tolerance for the manifest, stream copy, and container
// metadata relocated for progressive playback.
func (p Plan) EngineArgs(manifestPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}
}
