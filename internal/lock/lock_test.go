package lock

import (
	"path/filepath"
	"testing"
)

func TestAcquireIsExclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".figx-out", "run.lock")
	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := Acquire(path); err == nil {
		t.Fatal("second Acquire succeeded while first lock is held")
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	l, err := Acquire(filepath.Join(t.TempDir(), "run.lock"))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
}
