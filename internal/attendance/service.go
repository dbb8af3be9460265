package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_check_ins_total",
		Help: "Attendance events that opened a daily record.",
	})
	checkOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_check_outs_total",
		Help: "Attendance events that closed a daily record.",
	})
	dayCompleteRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_day_complete_rejects_total",
		Help: "Attendance events rejected because the daily record was already closed.",
	})
)

// Store is the repository surface the engine needs.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec Record, day string) (bool, error)
	CloseOpen(ctx context.Context, employeeID, day string, at time.Time) (bool, error)
	History(ctx context.Context, employeeID string) ([]Record, error)
	Roster(ctx context.Context, from, to string, f RosterFilter) ([]RosterEntry, error)
	AllWithEmployee(ctx context.Context) ([]RosterEntry, error)
}

// Directory resolves an employee display name to the stable identifier.
// Returns "" when no employee matches.
type Directory interface {
	EmployeeIDByName(ctx context.Context, name string) (string, error)
}

// Service is the daily attendance state machine:
// NoRecord -> Open (check-in) -> Closed (check-out), Closed terminal.
type Service struct {
	store Store
	dir   Directory
	loc   *time.Location
}

// NewService builds the engine. All date arithmetic happens in loc; mixing
// zones here is how midnight off-by-one-day bugs happen.
func NewService(store Store, dir Directory, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, dir: dir, loc: loc}
}

// DayOf formats the calendar date of t in the engine's zone.
func (s *Service) DayOf(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// RecordEvent applies one attendance event. The first event of the day
// opens the record with the PPE signals; the second closes it, preserving
// the opening data; any further event is rejected with ErrDayComplete.
func (s *Service) RecordEvent(ctx context.Context, name string, at time.Time, ppe PPESignals) (Outcome, error) {
	if name == "" {
		return "", errors.New("employee name is required")
	}

	employeeID, err := s.dir.EmployeeIDByName(ctx, name)
	if err != nil {
		return "", err
	}
	if employeeID == "" {
		return "", ErrNotFound
	}

	day := s.DayOf(at)
	items := ppe.Items
	if items == nil {
		items = map[string]bool{}
	}
	rec := Record{
		EmployeeID:    employeeID,
		CheckIn:       at,
		Status:        StatusPresent,
		PPECompliant:  ppe.Compliant,
		PPEItems:      items,
		PPEConfidence: ppe.Confidence,
	}

	inserted, err := s.store.InsertIfAbsent(ctx, rec, day)
	if err != nil {
		return "", err
	}
	if inserted {
		checkIns.Inc()
		return OutcomeCheckIn, nil
	}

	closed, err := s.store.CloseOpen(ctx, employeeID, day, at)
	if err != nil {
		return "", err
	}
	if closed {
		checkOuts.Inc()
		return OutcomeCheckOut, nil
	}

	dayCompleteRejects.Inc()
	return "", ErrDayComplete
}

// History returns one employee's records.
func (s *Service) History(ctx context.Context, employeeID string) ([]Record, error) {
	return s.store.History(ctx, employeeID)
}

// Roster returns records for a date range with employee fields. Empty
// bounds default to today in the engine's zone, so no arguments means
// today's roster.
func (s *Service) Roster(ctx context.Context, from, to string, f RosterFilter) ([]RosterEntry, error) {
	if from == "" {
		from = s.DayOf(time.Now())
	}
	if to == "" {
		to = from
	}
	return s.store.Roster(ctx, from, to, f)
}

// GroupedByDay returns every record with employee fields, grouped by
// calendar date string.
func (s *Service) GroupedByDay(ctx context.Context) (map[string][]RosterEntry, error) {
	entries, err := s.store.AllWithEmployee(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]RosterEntry, len(entries))
	for _, e := range entries {
		key := e.Day.Format("2006-01-02")
		grouped[key] = append(grouped[key], e)
	}
	return grouped, nil
}
