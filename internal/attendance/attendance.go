package attendance

import (
	"errors"
	"time"
)

// StatusPresent is the only status this version records. Lateness and
// absence policies were removed; the field stays so one can return without
// a schema change.
const StatusPresent = "Present"

// Domain errors surfaced to the HTTP layer.
var (
	ErrNotFound    = errors.New("employee not found")
	ErrDayComplete = errors.New("attendance already completed for today")
)

// Record is one employee-day attendance entry. Identity is
// (EmployeeID, Day); Day is a calendar date in the engine's fixed zone.
type Record struct {
	EmployeeID    string          `json:"employee_id"`
	Day           time.Time       `json:"date"`
	CheckIn       time.Time       `json:"check_in_time"`
	CheckOut      *time.Time      `json:"check_out_time"`
	Status        string          `json:"status"`
	PPECompliant  bool            `json:"ppe_compliant"`
	PPEItems      map[string]bool `json:"ppe_items_detected"`
	PPEConfidence float64         `json:"ppe_detection_confidence"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PPESignals carries the optional protective-equipment detections attached
// to a check-in. Zero values are the documented defaults.
type PPESignals struct {
	Compliant  bool
	Items      map[string]bool
	Confidence float64
}

// Outcome tags which branch of the daily state machine fired.
type Outcome string

const (
	OutcomeCheckIn  Outcome = "check-in"
	OutcomeCheckOut Outcome = "check-out"
)

// RosterFilter narrows the by-date roster query. Name matching is a
// case-insensitive substring search; the rest are equality filters.
type RosterFilter struct {
	EmployeeID  string
	Name        string
	Department  string
	Designation string
}

// RosterEntry is a record joined with employee display fields.
type RosterEntry struct {
	Record
	Name         string  `json:"name"`
	Department   string  `json:"department"`
	Designation  string  `json:"designation"`
	ProfilePhoto *string `json:"profilePhoto,omitempty"`
}
