package lockfile

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestWithLockRunsBody(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "hsmp.lock"))

	ran := false
	if err := l.WithLock(func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("body did not run")
	}
}

func TestWithLockPropagatesError(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "hsmp.lock"))
	sentinel := errors.New("exchange failed")

	if err := l.WithLock(func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("WithLock error = %v, want sentinel", err)
	}

	// The lock must have been released despite the error.
	if err := l.WithLock(func() error { return nil }); err != nil {
		t.Errorf("WithLock after error: %v", err)
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "hsmp.lock"))

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = l.WithLock(func() error { panic("boom") })
	}()

	if err := l.WithLock(func() error { return nil }); err != nil {
		t.Errorf("WithLock after panic: %v", err)
	}
}

func TestWithLockMutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hsmp.lock")

	// Two independent Lock values on the same path, as two processes
	// would have.
	a := New(path)
	b := New(path)

	aHolding := make(chan struct{})
	releaseA := make(chan struct{})
	bDone := make(chan struct{})

	go func() {
		_ = a.WithLock(func() error {
			close(aHolding)
			<-releaseA
			return nil
		})
	}()

	<-aHolding
	go func() {
		_ = b.WithLock(func() error { return nil })
		close(bDone)
	}()

	select {
	case <-bDone:
		t.Fatal("second locker ran while first still held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseA)
	select {
	case <-bDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second locker never acquired the lock")
	}
}

func TestDefaultPath(t *testing.T) {
	if got := New("").Path(); got != DefaultPath {
		t.Errorf("New(\"\").Path() = %q, want %q", got, DefaultPath)
	}
}

func TestWithLockUnwritablePath(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "absent", "hsmp.lock"))
	if err := l.WithLock(func() error { return nil }); err == nil {
		t.Error("expected error for unwritable lock path")
	}
}
