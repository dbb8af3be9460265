package employee

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"worksite-attendance/internal/embedjob"
	"worksite-attendance/internal/media"
)

// Repo is the store surface the service needs.
type Repo interface {
	ExistsByIdentity(ctx context.Context, email, phone, name string) (bool, error)
	Insert(ctx context.Context, e Employee) error
	GetByEmail(ctx context.Context, email string) (*Employee, error)
	GetByEmployeeID(ctx context.Context, employeeID string) (*Employee, error)
	Update(ctx context.Context, employeeID string, name, phone, passwordHash *string) error
	SetProfilePhoto(ctx context.Context, employeeID, filename string) error
}

// Locker is the photo storage surface the service needs.
type Locker interface {
	PlaceEnrollmentPhotos(name string, files []media.Upload) ([]string, error)
	ReplaceProfilePhoto(name, oldFilename string, file media.Upload) (string, error)
	PhotoDir(name string) string
	DiscardStaged(files []media.Upload)
}

// JobSubmitter enqueues embedding jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, job embedjob.Job) error
}

// Service runs the enrollment pipeline and profile maintenance.
type Service struct {
	repo       Repo
	locker     Locker
	jobs       JobSubmitter
	bcryptCost int
}

// NewService wires the pipeline.
func NewService(repo Repo, locker Locker, jobs JobSubmitter, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, locker: locker, jobs: jobs, bcryptCost: bcryptCost}
}

// RegisterInput carries a registration submission. Photos are already staged
// on disk by the HTTP layer.
type RegisterInput struct {
	EmployeeID  string
	Name        string
	Email       string
	Phone       string
	Department  string
	Designation string
	Password    string
	Photos      []media.Upload
}

func (in RegisterInput) validate() error {
	switch {
	case in.EmployeeID == "":
		return fmt.Errorf("%w: employee_id is required", ErrInvalidInput)
	case in.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	case in.Phone == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	case in.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(in.Photos) == 0:
		return fmt.Errorf("%w: at least one profile photo is required", ErrInvalidInput)
	}
	if err := media.ValidateName(in.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Register validates uniqueness, places the enrollment photos, and commits
// the employee record. The embedding job is NOT submitted here; callers
// invoke QueueEmbedding after the HTTP response has been written so the job
// can never delay or fail the registration reply.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Employee, error) {
	if err := in.validate(); err != nil {
		s.locker.DiscardStaged(in.Photos)
		return Employee{}, err
	}

	exists, err := s.repo.ExistsByIdentity(ctx, in.Email, in.Phone, in.Name)
	if err != nil {
		s.locker.DiscardStaged(in.Photos)
		return Employee{}, fmt.Errorf("uniqueness check: %w", err)
	}
	if exists {
		s.locker.DiscardStaged(in.Photos)
		return Employee{}, ErrDuplicateIdentity
	}

	photos, err := s.locker.PlaceEnrollmentPhotos(in.Name, in.Photos)
	if err != nil {
		return Employee{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return Employee{}, fmt.Errorf("hash password: %w", err)
	}

	e := Employee{
		ID:            uuid.NewString(),
		EmployeeID:    in.EmployeeID,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Department:    in.Department,
		Designation:   in.Designation,
		PasswordHash:  string(hash),
		ProfilePhotos: photos,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// QueueEmbedding submits the post-commit embedding job. It runs on its own
// context so an already-finished request cannot cancel it, and failures are
// logged only.
func (s *Service) QueueEmbedding(e Employee) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job := embedjob.Job{EmployeeID: e.EmployeeID, PhotoDir: s.locker.PhotoDir(e.Name)}
	if err := s.jobs.Submit(ctx, job); err != nil {
		log.Printf("enrollment job submit failed for %s: %v", e.EmployeeID, err)
	}
}

// Authenticate checks a credential pair. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Employee, error) {
	e, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return Employee{}, err
	}
	if e == nil {
		return Employee{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(password)) != nil {
		return Employee{}, ErrBadCredentials
	}
	return *e, nil
}

// UpdateInput is a partial profile update. A password change requires both
// the old and the new password.
type UpdateInput struct {
	Name        *string
	Phone       *string
	OldPassword string
	NewPassword string
}

// Update applies the fields as a single unit. A failed old-password check
// leaves everything unmodified.
func (s *Service) Update(ctx context.Context, employeeID string, in UpdateInput) error {
	e, err := s.repo.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		return err
	}
	if e == nil {
		return ErrNotFound
	}

	if in.Name != nil {
		if err := media.ValidateName(*in.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	var newHash *string
	if in.OldPassword != "" && in.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(in.OldPassword)) != nil {
			return ErrOldPasswordMismatch
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		newHash = &h
	}

	return s.repo.Update(ctx, employeeID, in.Name, in.Phone, newHash)
}

// ReplaceProfilePhoto swaps the flat profile photo and records the new
// filename. The filesystem half is best-effort, not transactional.
func (s *Service) ReplaceProfilePhoto(ctx context.Context, employeeID string, file media.Upload) (string, error) {
	e, err := s.repo.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", ErrNotFound
	}

	old := ""
	if e.ProfilePhoto != nil {
		old = *e.ProfilePhoto
	}
	name, err := s.locker.ReplaceProfilePhoto(e.Name, old, file)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetProfilePhoto(ctx, employeeID, name); err != nil {
		return "", err
	}
	return name, nil
}

// Get returns an employee by stable identifier.
func (s *Service) Get(ctx context.Context, employeeID string) (Employee, error) {
	e, err := s.repo.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		return Employee{}, err
	}
	if e == nil {
		return Employee{}, ErrNotFound
	}
	return *e, nil
}

// GetByEmail returns an employee by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (Employee, error) {
	e, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return Employee{}, err
	}
	if e == nil {
		return Employee{}, ErrNotFound
	}
	return *e, nil
}
