package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docboxhq/docbox/internal/progress"
)

func TestSimJobPlaysScenarioInOrder(t *testing.T) {
	job := newSimJob("src-1", DefaultScenario(), time.Millisecond)

	var snaps []*progress.Snapshot
	last := job.run(context.Background(), func(s *progress.Snapshot) {
		snaps = append(snaps, s)
	})

	require.NotNil(t, last)
	assert.Equal(t, progress.PhaseCompleted, last.Phase)
	assert.False(t, last.IsActive)

	// phases appear in script order, counters never go backwards
	phaseIdx := func(p progress.Phase) int {
		for i, known := range progress.Phases {
			if known == p {
				return i
			}
		}
		return -1
	}
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, phaseIdx(snaps[i].Phase), phaseIdx(snaps[i-1].Phase))
		assert.GreaterOrEqual(t, snaps[i].FilesProcessed, snaps[i-1].FilesProcessed)
		assert.GreaterOrEqual(t, snaps[i].BytesProcessed, snaps[i-1].BytesProcessed)
	}

	assert.Equal(t, int64(240), last.FilesProcessed)
	assert.InDelta(t, 100.0, last.FilesProgressPercent, 0.01)
	assert.Equal(t, "src-1", last.SourceID)
}

func TestSimJobFailureEndsInactive(t *testing.T) {
	job := newSimJob("src-1", FailingScenario(), time.Millisecond)

	last := job.run(context.Background(), func(*progress.Snapshot) {})
	require.NotNil(t, last)
	assert.Equal(t, progress.PhaseFailed, last.Phase)
	assert.False(t, last.IsActive)
	assert.Equal(t, int64(1), last.Errors)
	assert.Equal(t, "source unreachable", last.PhaseDescription)
}

func TestSimJobActiveFlagTracksPhase(t *testing.T) {
	job := newSimJob("src-1", DefaultScenario(), time.Millisecond)

	job.run(context.Background(), func(s *progress.Snapshot) {
		assert.Equal(t, s.Phase.Active(), s.IsActive)
	})
}

func TestSimJobCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	job := newSimJob("src-1", DefaultScenario(), 10*time.Millisecond)
	var count int
	last := job.run(ctx, func(*progress.Snapshot) {
		count++
		if count == 3 {
			cancel()
		}
	})

	require.NotNil(t, last)
	assert.Equal(t, 3, count)
	assert.True(t, last.IsActive, "cancelled before any terminal phase")
}
