package server

import "testing"

// TestInvariantAdmissionBound is testable property 7: the number of
// sessions concurrently holding a slot never exceeds MaxConcurrentSessions,
// and a rejected acquire does not consume a slot.
func TestInvariantAdmissionBound(t *testing.T) {
	const max = 3
	a := NewAdmission(max, max*10) // generous burst so the limiter never fires first

	for i := 0; i < max; i++ {
		if !a.TryAcquire() {
			t.Fatalf("acquire %d of %d should have succeeded", i+1, max)
		}
	}
	if a.InUse() != max {
		t.Fatalf("InUse = %d, want %d", a.InUse(), max)
	}
	if a.TryAcquire() {
		t.Fatal("acquire beyond max should have failed")
	}
	if a.InUse() != max {
		t.Fatalf("InUse after rejected acquire = %d, want %d (rejection must not consume a slot)", a.InUse(), max)
	}

	a.Release()
	if a.InUse() != max-1 {
		t.Fatalf("InUse after Release = %d, want %d", a.InUse(), max-1)
	}
	if !a.TryAcquire() {
		t.Fatal("acquire after a Release should have succeeded")
	}
}

func TestAdmissionReleaseBeyondZeroIsNoop(t *testing.T) {
	a := NewAdmission(1, 1)
	a.Release()
	if a.InUse() != 0 {
		t.Fatalf("InUse = %d, want 0", a.InUse())
	}
	if !a.TryAcquire() {
		t.Fatal("acquire on a fresh gate should have succeeded")
	}
}
