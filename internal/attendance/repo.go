package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists attendance records in Postgres. The UNIQUE
// (employee_id, day) constraint is what makes the daily state machine safe
// under concurrent events; everything here leans on it instead of
// read-then-write.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertIfAbsent writes the day's opening record unless one already exists.
// Returns true when this call created the record.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec Record, day string) (bool, error) {
	items, err := json.Marshal(rec.PPEItems)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (employee_id, day, check_in_time, status, ppe_compliant, ppe_items, ppe_confidence)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		ON CONFLICT (employee_id, day) DO NOTHING
	`, rec.EmployeeID, day, rec.CheckIn, rec.Status, rec.PPECompliant, items, rec.PPEConfidence)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CloseOpen stamps the check-out on the day's open record. Returns false
// when the record is already closed (or was never opened, which the caller
// rules out by attempting the insert first).
func (r *Repository) CloseOpen(ctx context.Context, employeeID, day string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance SET check_out_time = $3
		WHERE employee_id = $1 AND day = $2::date AND check_out_time IS NULL
	`, employeeID, day, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const recordColumns = `employee_id, day, check_in_time, check_out_time, status, ppe_compliant, ppe_items, ppe_confidence, created_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var items []byte
	if err := row.Scan(&rec.EmployeeID, &rec.Day, &rec.CheckIn, &rec.CheckOut, &rec.Status,
		&rec.PPECompliant, &items, &rec.PPEConfidence, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &rec.PPEItems); err != nil {
			return Record{}, fmt.Errorf("decode ppe_items: %w", err)
		}
	}
	return rec, nil
}

// Get returns the record for one employee-day, nil when absent.
func (r *Repository) Get(ctx context.Context, employeeID, day string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance WHERE employee_id = $1 AND day = $2::date
	`, employeeID, day)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns all records for one employee, newest first.
func (r *Repository) History(ctx context.Context, employeeID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance WHERE employee_id = $1 ORDER BY day DESC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const rosterColumns = `a.employee_id, a.day, a.check_in_time, a.check_out_time, a.status,
		a.ppe_compliant, a.ppe_items, a.ppe_confidence, a.created_at,
		e.name, e.department, e.designation, e.profile_photo`

func scanRosterEntry(row interface{ Scan(...any) error }) (RosterEntry, error) {
	var entry RosterEntry
	var items []byte
	if err := row.Scan(&entry.EmployeeID, &entry.Day, &entry.CheckIn, &entry.CheckOut, &entry.Status,
		&entry.PPECompliant, &items, &entry.PPEConfidence, &entry.CreatedAt,
		&entry.Name, &entry.Department, &entry.Designation, &entry.ProfilePhoto); err != nil {
		return RosterEntry{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &entry.PPEItems); err != nil {
			return RosterEntry{}, fmt.Errorf("decode ppe_items: %w", err)
		}
	}
	return entry, nil
}

// Roster returns the records between two dates inclusive, joined with
// employee fields and narrowed by the optional filters. from == to queries
// a single day.
func (r *Repository) Roster(ctx context.Context, from, to string, f RosterFilter) ([]RosterEntry, error) {
	query := `SELECT ` + rosterColumns + `
		FROM attendance a JOIN employees e ON e.employee_id = a.employee_id
		WHERE a.day BETWEEN $1::date AND $2::date`
	args := []any{from, to}
	if f.EmployeeID != "" {
		args = append(args, f.EmployeeID)
		query += fmt.Sprintf(" AND a.employee_id = $%d", len(args))
	}
	if f.Department != "" {
		args = append(args, f.Department)
		query += fmt.Sprintf(" AND e.department = $%d", len(args))
	}
	if f.Designation != "" {
		args = append(args, f.Designation)
		query += fmt.Sprintf(" AND e.designation = $%d", len(args))
	}
	if f.Name != "" {
		args = append(args, "%"+f.Name+"%")
		query += fmt.Sprintf(" AND e.name ILIKE $%d", len(args))
	}
	query += " ORDER BY a.day, e.employee_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterEntry
	for rows.Next() {
		entry, err := scanRosterEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// AllWithEmployee returns every record joined with employee fields, newest
// day first. Feeds the admin grouped-by-date aggregate.
func (r *Repository) AllWithEmployee(ctx context.Context) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rosterColumns+`
		FROM attendance a JOIN employees e ON e.employee_id = a.employee_id
		ORDER BY a.day DESC, e.employee_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterEntry
	for rows.Next() {
		entry, err := scanRosterEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
