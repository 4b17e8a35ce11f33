package domain

import "time"

// Phase is the resting or transient state of one remote mount.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

// MountStatus is the combined orchestrator and boundary state of a mount.
// Err is set only when Phase is PhaseFailed.
type MountStatus struct {
	Phase      Phase
	Err        error
	RemountKey uint64
	RetryCount int
}

// MountRecord mirrors a mount's status in a state store.
type MountRecord struct {
	SessionID   string      `json:"session_id"`
	Remote      string      `json:"remote"`
	Phase       Phase       `json:"phase"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
	Error       string      `json:"error,omitempty"`
	RemountKey  uint64      `json:"remount_key"`
	RetryCount  int         `json:"retry_count"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewMountRecord snapshots status for the given session and remote.
func NewMountRecord(sessionID, remote string, st MountStatus) *MountRecord {
	rec := &MountRecord{
		SessionID:  sessionID,
		Remote:     remote,
		Phase:      st.Phase,
		RemountKey: st.RemountKey,
		RetryCount: st.RetryCount,
		UpdatedAt:  time.Now(),
	}
	if st.Err != nil {
		rec.Error = st.Err.Error()
		rec.FailureKind = Classify(st.Err)
	}
	return rec
}
