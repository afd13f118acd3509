package progress

// Snapshot is one point-in-time status report for a sync job. Each
// update supersedes the previous one for the same source; no history is
// kept. Field names match the wire contract verbatim.
//
// Optional fields are pointers so that "absent" stays distinguishable
// from zero after a round trip.
type Snapshot struct {
	SourceID                  string  `json:"sourceId"`
	Phase                     Phase   `json:"phase"`
	PhaseDescription          string  `json:"phaseDescription,omitempty"`
	ElapsedSeconds            int64   `json:"elapsedSeconds"`
	DirectoriesFound          int64   `json:"directoriesFound"`
	DirectoriesProcessed      int64   `json:"directoriesProcessed"`
	FilesFound                int64   `json:"filesFound"`
	FilesProcessed            int64   `json:"filesProcessed"`
	BytesProcessed            int64   `json:"bytesProcessed"`
	ProcessingRateFilesPerSec float64 `json:"processingRateFilesPerSec"`
	FilesProgressPercent      float64 `json:"filesProgressPercent"`
	EstimatedSecondsRemaining *int64  `json:"estimatedSecondsRemaining,omitempty"`
	CurrentDirectory          *string `json:"currentDirectory,omitempty"`
	CurrentFile               *string `json:"currentFile,omitempty"`
	Errors                    int64   `json:"errors"`
	Warnings                  int64   `json:"warnings"`
	IsActive                  bool    `json:"isActive"`
}

// Normalize recomputes the derived IsActive flag from the phase. The
// transport never gets to set it independently.
func (s *Snapshot) Normalize() {
	s.IsActive = s.Phase.Active()
}
