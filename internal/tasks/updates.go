package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	FileID  string // File being processed, when applicable
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	PhaseRefresh Phase = iota
	PhaseAdmission
	PhaseUpload
	PhaseSummary
)

func (p Phase) String() string {
	switch p {
	case PhaseRefresh:
		return "refresh"
	case PhaseAdmission:
		return "admission"
	case PhaseUpload:
		return "upload"
	case PhaseSummary:
		return "summary"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func refreshUpdate(step, total int, fileID string) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseRefresh, Step: step, Total: total, FileID: fileID, Message: "Refreshing local attributes..."}
}

func admissionUpdate(fileID, account string, admitted bool) ProgressUpdate {
	msg := fmt.Sprintf("Refused by quota on %s", account)
	if admitted {
		msg = fmt.Sprintf("Admitted on %s", account)
	}
	return ProgressUpdate{Phase: PhaseAdmission, FileID: fileID, Message: msg}
}

func uploadUpdate(fileID string, confirmed, total int64) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseUpload, FileID: fileID, Message: fmt.Sprintf("Uploaded %d of %d bytes", confirmed, total)}
}
