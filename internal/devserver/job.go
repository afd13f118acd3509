package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docboxhq/docbox/internal/progress"
)

// simJob plays one scenario back for one source, emitting interpolated
// snapshots on every tick.
type simJob struct {
	sourceID string
	scenario *Scenario
	interval time.Duration
	started  time.Time
}

func newSimJob(sourceID string, scenario *Scenario, interval time.Duration) *simJob {
	return &simJob{
		sourceID: sourceID,
		scenario: scenario,
		interval: interval,
		started:  time.Now(),
	}
}

// run emits snapshots until the scenario's terminal step or ctx
// cancellation. It returns the final snapshot emitted, nil when
// cancelled before the first tick.
func (j *simJob) run(ctx context.Context, emit func(*progress.Snapshot)) *progress.Snapshot {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	var last *progress.Snapshot
	var prev Step

	for _, step := range j.scenario.Steps {
		ticks := step.Ticks
		if ticks < 1 {
			ticks = 1
		}

		for i := 1; i <= ticks; i++ {
			select {
			case <-ctx.Done():
				return last
			case <-ticker.C:
			}

			snap := j.snapshotAt(prev, step, float64(i)/float64(ticks))
			emit(snap)
			last = snap
		}
		prev = step
	}

	return last
}

// snapshotAt interpolates the counters between the previous step's end
// state and the current step's targets.
func (j *simJob) snapshotAt(prev, step Step, frac float64) *progress.Snapshot {
	elapsed := int64(time.Since(j.started).Seconds())

	snap := &progress.Snapshot{
		SourceID:             j.sourceID,
		Phase:                step.Phase,
		PhaseDescription:     phaseDescription(step.Phase),
		ElapsedSeconds:       elapsed,
		DirectoriesFound:     lerp(prev.Directories, step.Directories, frac),
		DirectoriesProcessed: lerp(prev.Directories, step.Directories, frac),
		FilesFound:           lerp(prev.Files, step.Files, frac),
		FilesProcessed:       lerp(prev.Files, step.Files, frac),
		BytesProcessed:       lerp(prev.Bytes, step.Bytes, frac),
		Warnings:             lerp(prev.Warnings, step.Warnings, frac),
	}

	// discovery counts run ahead of processing inside a step
	switch step.Phase {
	case progress.PhaseDiscoveringDirectories:
		snap.DirectoriesProcessed = prev.Directories
		snap.FilesFound = prev.Files
		snap.FilesProcessed = prev.Files
	case progress.PhaseDiscoveringFiles:
		snap.FilesProcessed = prev.Files
	case progress.PhaseProcessingFiles:
		snap.FilesFound = step.Files
		snap.DirectoriesFound = step.Directories
		dir := fmt.Sprintf("/data/dir-%03d", snap.DirectoriesProcessed)
		file := fmt.Sprintf("%s/file-%05d.doc", dir, snap.FilesProcessed)
		snap.CurrentDirectory = &dir
		snap.CurrentFile = &file
	}

	if snap.FilesFound > 0 {
		snap.FilesProgressPercent = 100 * float64(snap.FilesProcessed) / float64(snap.FilesFound)
	}
	if elapsed > 0 && snap.FilesProcessed > 0 {
		snap.ProcessingRateFilesPerSec = float64(snap.FilesProcessed) / float64(elapsed)
	}
	if snap.ProcessingRateFilesPerSec > 0 && snap.FilesFound > snap.FilesProcessed {
		eta := int64(float64(snap.FilesFound-snap.FilesProcessed) / snap.ProcessingRateFilesPerSec)
		snap.EstimatedSecondsRemaining = &eta
	}

	if step.Phase == progress.PhaseFailed {
		snap.Errors = 1
		if step.Error != "" {
			snap.PhaseDescription = step.Error
		}
	}

	snap.Normalize()
	return snap
}

func lerp(from, to int64, frac float64) int64 {
	if to <= from {
		return to
	}
	v := from + int64(float64(to-from)*frac)
	if v > to {
		v = to
	}
	return v
}

func phaseDescription(p progress.Phase) string {
	switch p {
	case progress.PhaseInitializing:
		return "Preparing sync job"
	case progress.PhaseEvaluating:
		return "Evaluating source configuration"
	case progress.PhaseDiscoveringDirectories:
		return "Scanning directory tree"
	case progress.PhaseDiscoveringFiles:
		return "Enumerating files"
	case progress.PhaseProcessingFiles:
		return "Processing files"
	case progress.PhaseSavingMetadata:
		return "Saving metadata"
	case progress.PhaseCompleted:
		return "Sync completed"
	case progress.PhaseFailed:
		return "Sync failed"
	default:
		slog.Warn("no description for phase", "phase", p)
		return string(p)
	}
}
