package progress

import "fmt"

// Phase is the lifecycle stage of a sync job as reported by the server.
// The server is authoritative for phase sequencing; the client never
// rejects out-of-order transitions, it only classifies them.
type Phase string

const (
	PhaseInitializing           Phase = "initializing"
	PhaseEvaluating             Phase = "evaluating"
	PhaseDiscoveringDirectories Phase = "discovering_directories"
	PhaseDiscoveringFiles       Phase = "discovering_files"
	PhaseProcessingFiles        Phase = "processing_files"
	PhaseSavingMetadata         Phase = "saving_metadata"
	PhaseCompleted              Phase = "completed"
	PhaseFailed                 Phase = "failed"
)

// Phases lists all known phases in their expected order.
var Phases = []Phase{
	PhaseInitializing,
	PhaseEvaluating,
	PhaseDiscoveringDirectories,
	PhaseDiscoveringFiles,
	PhaseProcessingFiles,
	PhaseSavingMetadata,
	PhaseCompleted,
	PhaseFailed,
}

var knownPhases = func() map[Phase]struct{} {
	m := make(map[Phase]struct{}, len(Phases))
	for _, p := range Phases {
		m[p] = struct{}{}
	}
	return m
}()

// ParsePhase validates a phase string received off the wire. An
// unrecognized phase is a decode error, not a crash.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if _, ok := knownPhases[p]; !ok {
		return "", fmt.Errorf("unknown sync phase: %q", s)
	}
	return p, nil
}

// Active reports whether the job is still running. It is false exactly
// for the two terminal phases.
func (p Phase) Active() bool {
	return !p.Terminal()
}

// Terminal reports whether the phase is one of completed or failed.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

func (p Phase) String() string {
	return string(p)
}
