package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrStorage marks filesystem failures in the photo locker. Handlers map it
// to a generic 500; the underlying cause stays in the logs.
var ErrStorage = errors.New("photo storage failure")

// Upload is a staged blob waiting to be moved into its final location.
// TempPath lives on the same filesystem as the locker root so the move is a
// plain rename.
type Upload struct {
	OriginalName string
	TempPath     string
}

// Ext returns the extension of the originally submitted file.
func (u Upload) Ext() string {
	return filepath.Ext(u.OriginalName)
}

// Locker owns the photo content root. Enrollment photos live in one
// subdirectory per employee; current profile photos live flat under the root.
type Locker struct {
	root string
}

// NewLocker creates the content root if needed.
func NewLocker(root string) (*Locker, error) {
	if err := os.MkdirAll(filepath.Join(root, ".staging"), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root %s: %v", ErrStorage, root, err)
	}
	return &Locker{root: root}, nil
}

// Root returns the content root, for static file serving.
func (l *Locker) Root() string { return l.root }

// ValidateName checks that an employee display name is safe to use as a
// path component. This is a precondition for every other locker operation.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	if len(name) > 100 {
		return errors.New("name too long")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("name %q contains path characters", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name %q may not start with a dot", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return errors.New("name contains control characters")
		}
	}
	return nil
}

// Stage copies an incoming blob into the staging area and returns the Upload
// handle used by the placement operations.
func (l *Locker) Stage(src io.Reader, originalName string) (Upload, error) {
	tmp := filepath.Join(l.root, ".staging", uuid.NewString()+filepath.Ext(originalName))
	f, err := os.Create(tmp)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: stage %s: %v", ErrStorage, originalName, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmp)
		return Upload{}, fmt.Errorf("%w: stage %s: %v", ErrStorage, originalName, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Upload{}, fmt.Errorf("%w: stage %s: %v", ErrStorage, originalName, err)
	}
	return Upload{OriginalName: originalName, TempPath: tmp}, nil
}

// PlaceEnrollmentPhotos moves staged uploads into the employee's directory,
// naming them {name}_{index}{ext} in submission order. It refuses to
// overwrite files already present so one employee's enrollment can never
// clobber another's.
func (l *Locker) PlaceEnrollmentPhotos(name string, files []Upload) ([]string, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("at least one photo is required")
	}

	dir := filepath.Join(l.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create employee dir %s: %v", ErrStorage, dir, err)
	}

	names := make([]string, 0, len(files))
	for i, f := range files {
		final := fmt.Sprintf("%s_%d%s", name, i, f.Ext())
		dest := filepath.Join(dir, final)
		if _, err := os.Stat(dest); err == nil {
			return nil, fmt.Errorf("%w: %s already exists", ErrStorage, dest)
		}
		if err := os.Rename(f.TempPath, dest); err != nil {
			return nil, fmt.Errorf("%w: place %s: %v", ErrStorage, final, err)
		}
		names = append(names, final)
	}
	return names, nil
}

// PhotoDir returns the enrollment photo directory for an employee. It is the
// path handed to the embedding job.
func (l *Locker) PhotoDir(name string) string {
	return filepath.Join(l.root, name)
}

// ReplaceProfilePhoto deletes the previous flat profile photo if present and
// moves the staged upload in as {name}{ext}. The delete and the move are not
// transactional; a failed move after a successful delete is not rolled back.
func (l *Locker) ReplaceProfilePhoto(name, oldFilename string, file Upload) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if oldFilename != "" && !strings.ContainsAny(oldFilename, "/\\") {
		if err := os.Remove(filepath.Join(l.root, oldFilename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: remove %s: %v", ErrStorage, oldFilename, err)
		}
	}
	final := name + file.Ext()
	if err := os.Rename(file.TempPath, filepath.Join(l.root, final)); err != nil {
		return "", fmt.Errorf("%w: place %s: %v", ErrStorage, final, err)
	}
	return final, nil
}

// DiscardStaged removes staged uploads that never got placed, e.g. when the
// registration failed validation after the files were received.
func (l *Locker) DiscardStaged(files []Upload) {
	for _, f := range files {
		if f.TempPath != "" {
			_ = os.Remove(f.TempPath)
		}
	}
}
