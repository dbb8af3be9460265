package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLocker(t *testing.T) *Locker {
	t.Helper()
	l, err := NewLocker(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	return l
}

func stage(t *testing.T, l *Locker, originalName, content string) Upload {
	t.Helper()
	up, err := l.Stage(strings.NewReader(content), originalName)
	if err != nil {
		t.Fatalf("Stage %s: %v", originalName, err)
	}
	return up
}

func TestPlaceEnrollmentPhotosOrdering(t *testing.T) {
	l := newTestLocker(t)
	files := []Upload{
		stage(t, l, "a.jpg", "first"),
		stage(t, l, "b.png", "second"),
	}

	names, err := l.PlaceEnrollmentPhotos("Jane", files)
	if err != nil {
		t.Fatalf("PlaceEnrollmentPhotos: %v", err)
	}

	want := []string{"Jane_0.jpg", "Jane_1.png"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	got, err := os.ReadFile(filepath.Join(l.Root(), "Jane", "Jane_1.png"))
	if err != nil {
		t.Fatalf("read placed photo: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("placed photo content = %q, want %q", got, "second")
	}
}

func TestPlaceEnrollmentPhotosRefusesOverwrite(t *testing.T) {
	l := newTestLocker(t)
	if _, err := l.PlaceEnrollmentPhotos("Jane", []Upload{stage(t, l, "a.jpg", "x")}); err != nil {
		t.Fatalf("first placement: %v", err)
	}
	_, err := l.PlaceEnrollmentPhotos("Jane", []Upload{stage(t, l, "other.jpg", "y")})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage on collision, got %v", err)
	}
}

func TestPlaceEnrollmentPhotosRequiresFiles(t *testing.T) {
	l := newTestLocker(t)
	if _, err := l.PlaceEnrollmentPhotos("Jane", nil); err == nil {
		t.Fatal("expected error for empty file list")
	}
}

func TestReplaceProfilePhotoDeletesPrior(t *testing.T) {
	l := newTestLocker(t)
	old := filepath.Join(l.Root(), "Jane.jpg")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	name, err := l.ReplaceProfilePhoto("Jane", "Jane.jpg", stage(t, l, "new.png", "new"))
	if err != nil {
		t.Fatalf("ReplaceProfilePhoto: %v", err)
	}
	if name != "Jane.png" {
		t.Errorf("got filename %q, want %q", name, "Jane.png")
	}
	if _, err := os.Stat(old); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old photo still present: %v", err)
	}
}

func TestReplaceProfilePhotoMissingPriorIsNotAnError(t *testing.T) {
	l := newTestLocker(t)
	name, err := l.ReplaceProfilePhoto("Jane", "Jane.jpg", stage(t, l, "new.jpg", "new"))
	if err != nil {
		t.Fatalf("ReplaceProfilePhoto with missing prior photo: %v", err)
	}
	if name != "Jane.jpg" {
		t.Errorf("got filename %q, want %q", name, "Jane.jpg")
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"Jane", "Jane Doe", "O'Brien"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "  ", "a/b", `a\b`, "..", "../etc", ".hidden", "bad\x00name", strings.Repeat("x", 101)} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestDiscardStaged(t *testing.T) {
	l := newTestLocker(t)
	up := stage(t, l, "a.jpg", "x")
	l.DiscardStaged([]Upload{up})
	if _, err := os.Stat(up.TempPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("staged file still present: %v", err)
	}
}
