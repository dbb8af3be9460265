package employee

import (
	"errors"
	"time"
)

// Domain errors surfaced to the HTTP layer.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateIdentity   = errors.New("employee already exists")
	ErrNotFound            = errors.New("employee not found")
	ErrBadCredentials      = errors.New("invalid email or password")
	ErrOldPasswordMismatch = errors.New("old password is incorrect")
)

// Employee is a registered worker. EmployeeID is the stable public
// identifier assigned at registration; ID is the internal row key.
type Employee struct {
	ID            string    `json:"-"`
	EmployeeID    string    `json:"employee_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Department    string    `json:"department"`
	Designation   string    `json:"designation"`
	PasswordHash  string    `json:"-"`
	ProfilePhotos []string  `json:"profilePhotos"`
	ProfilePhoto  *string   `json:"profilePhoto,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"-"`
}
