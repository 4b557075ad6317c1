package checkin

import (
	"time"

	"github.com/benmeehan/attendance-agent/pkg/location"
)

// Phase names a step of the check-in flow.
type Phase string

const (
	Idle           Phase = "idle"
	Verifying      Phase = "verifying"
	RangeResult    Phase = "range_result"
	ProviderFailed Phase = "provider_failed"
	Committed      Phase = "committed"
)

// Session identifies what a committed attempt is recorded against.
type Session struct {
	Subject     string `json:"subject"`
	SubjectCode string `json:"subject_code"`
	RollNo      string `json:"roll_no,omitempty"`
}

// Attempt is one verification cycle. Fields are filled in as the attempt progresses and
// never change once the attempt is committed.
type Attempt struct {
	ID             string               `json:"id"`
	RequestedAt    time.Time            `json:"requested_at"`
	Coordinate     *location.Coordinate `json:"coordinate,omitempty"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
	WithinRange    *bool                `json:"within_range,omitempty"`
	Committed      bool                 `json:"committed"`
	RecordID       string               `json:"record_id,omitempty"`
}

// State is a point-in-time view of the machine. Failure is set only in ProviderFailed;
// the attempt's range fields are set only in RangeResult and Committed.
type State struct {
	Phase   Phase                `json:"phase"`
	Session Session              `json:"session"`
	Attempt *Attempt             `json:"attempt,omitempty"`
	Failure location.FailureKind `json:"failure,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// CanCommit reports whether Commit would be accepted.
func (s State) CanCommit() bool {
	return s.Phase == RangeResult && s.Attempt != nil && s.Attempt.WithinRange != nil && *s.Attempt.WithinRange
}
