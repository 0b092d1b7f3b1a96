package mobius

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func failure(msg string) Failure {
	return Failure{Route: "r", Err: errors.New(msg)}
}

func TestFailureRing_NilSafe(t *testing.T) {
	var r *failureRing

	// All operations should be safe on nil
	r.push(failure("test"))
	r.clear()

	if r.all() != nil {
		t.Error("expected nil from nil ring")
	}
}

func TestFailureRing_ZeroAndNegativeSize(t *testing.T) {
	if newFailureRing(0) != nil {
		t.Error("expected nil ring for size 0")
	}
	if newFailureRing(-1) != nil {
		t.Error("expected nil ring for negative size")
	}
}

func TestFailureRing_FillsWithoutWrapping(t *testing.T) {
	r := newFailureRing(3)

	r.push(failure("error1"))
	r.push(failure("error2"))
	r.push(failure("error3"))

	got := r.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(got))
	}
	// Oldest first
	for i, want := range []string{"error1", "error2", "error3"} {
		if got[i].Err.Error() != want {
			t.Errorf("position %d: expected %q, got %q", i, want, got[i].Err)
		}
	}
}

func TestFailureRing_WrapsAndEvictsOldest(t *testing.T) {
	r := newFailureRing(3)

	for i := 1; i <= 4; i++ {
		r.push(failure(fmt.Sprintf("error%d", i)))
	}

	got := r.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(got))
	}
	// error1 should be gone, oldest is now error2
	for i, want := range []string{"error2", "error3", "error4"} {
		if got[i].Err.Error() != want {
			t.Errorf("position %d: expected %q, got %q", i, want, got[i].Err)
		}
	}
}

func TestFailureRing_ClearThenPush(t *testing.T) {
	r := newFailureRing(3)

	r.push(failure("error1"))
	r.push(failure("error2"))
	r.clear()

	if got := r.all(); got != nil {
		t.Errorf("expected nil after clear, got %v", got)
	}

	r.push(failure("new error"))
	got := r.all()
	if len(got) != 1 || got[0].Err.Error() != "new error" {
		t.Errorf("expected only the new failure, got %v", got)
	}
}

func TestFailureRing_SizeOne(t *testing.T) {
	r := newFailureRing(1)

	r.push(failure("error1"))
	r.push(failure("error2"))

	got := r.all()
	if len(got) != 1 || got[0].Err.Error() != "error2" {
		t.Errorf("expected error2 to replace error1, got %v", got)
	}
}

func TestFailureRing_ConcurrentPush(t *testing.T) {
	r := newFailureRing(16)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.push(failure("concurrent"))
				_ = r.all()
			}
		}()
	}
	wg.Wait()

	if len(r.all()) != 16 {
		t.Errorf("expected a full ring, got %d", len(r.all()))
	}
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	f := Failure{Route: "fetch", Err: base}

	if f.Error() != "fetch: boom" {
		t.Errorf("unexpected message %q", f.Error())
	}
	if !errors.Is(f, base) {
		t.Error("expected Failure to unwrap to its error")
	}
}
