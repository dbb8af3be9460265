package employee

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists employees in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const employeeColumns = `id, employee_id, name, email, phone, department, designation, password_hash, profile_photos, profile_photo, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*Employee, error) {
	var e Employee
	var photos []byte
	if err := row.Scan(&e.ID, &e.EmployeeID, &e.Name, &e.Email, &e.Phone, &e.Department, &e.Designation,
		&e.PasswordHash, &photos, &e.ProfilePhoto, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &e.ProfilePhotos); err != nil {
			return nil, fmt.Errorf("decode profile_photos: %w", err)
		}
	}
	return &e, nil
}

// ExistsByIdentity reports whether any employee already claims the given
// email, phone, or display name.
func (r *Repository) ExistsByIdentity(ctx context.Context, email, phone, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM employees WHERE email = $1 OR phone = $2 OR name = $3)
	`, email, phone, name).Scan(&exists)
	return exists, err
}

// Insert writes a new employee. Unique-constraint races surface as
// ErrDuplicateIdentity.
func (r *Repository) Insert(ctx context.Context, e Employee) error {
	photos, err := json.Marshal(e.ProfilePhotos)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO employees (id, employee_id, name, email, phone, department, designation, password_hash, profile_photos)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.EmployeeID, e.Name, e.Email, e.Phone, e.Department, e.Designation, e.PasswordHash, photos)
	if isUniqueViolation(err) {
		return ErrDuplicateIdentity
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByEmail returns an employee by email, nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Employee, error) {
	return r.getWhere(ctx, "email = $1", email)
}

// GetByEmployeeID returns an employee by its stable identifier, nil when absent.
func (r *Repository) GetByEmployeeID(ctx context.Context, employeeID string) (*Employee, error) {
	return r.getWhere(ctx, "employee_id = $1", employeeID)
}

// GetByName returns an employee by display name, nil when absent.
func (r *Repository) GetByName(ctx context.Context, name string) (*Employee, error) {
	return r.getWhere(ctx, "name = $1", name)
}

func (r *Repository) getWhere(ctx context.Context, clause string, arg any) (*Employee, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE `+clause, arg)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// EmployeeIDByName resolves a display name to the stable identifier,
// returning "" when no employee matches. Satisfies attendance.Directory.
func (r *Repository) EmployeeIDByName(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT employee_id FROM employees WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// List returns all employees ordered by their public identifier.
func (r *Repository) List(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Update applies a partial profile update in one statement; nil fields are
// left untouched.
func (r *Repository) Update(ctx context.Context, employeeID string, name, phone, passwordHash *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE employees
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    password_hash = COALESCE($4, password_hash),
		    updated_at = NOW()
		WHERE employee_id = $1
	`, employeeID, name, phone, passwordHash)
	if isUniqueViolation(err) {
		return ErrDuplicateIdentity
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProfilePhoto records the current flat profile photo filename.
func (r *Repository) SetProfilePhoto(ctx context.Context, employeeID, filename string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE employees SET profile_photo = $2, updated_at = NOW() WHERE employee_id = $1
	`, employeeID, filename)
	return err
}
