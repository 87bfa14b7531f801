package worker

import (
	"testing"
	"time"
)

func TestSpawnRefusesWhenBusy(t *testing.T) {
	s := NewSlot("worker", nil)
	done, err := s.Spawn([]string{"sleep", "5"}, 2*time.Second, nil)
	if err != nil {
		t.Skipf("sleep(1) unavailable in this environment: %v", err)
	}
	defer func() {
		<-done
		s.Reap()
	}()

	if _, err := s.Spawn([]string{"sleep", "5"}, 2*time.Second, nil); err != ErrBusy {
		t.Fatalf("second Spawn() err = %v, want ErrBusy", err)
	}
}

// S5: worker deliberately overruns its deadline and must be force-killed,
// with the timeout sticky flag observable on reap.
func TestSpawnDeadlineKillsAndFlagsTimeout(t *testing.T) {
	s := NewSlot("worker", nil)
	done, err := s.Spawn([]string{"sleep", "10"}, 200*time.Millisecond, nil)
	if err != nil {
		t.Skipf("sleep unavailable in this environment: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subprocess was not killed within deadline + grace period")
	}

	status, timedOut, err := s.Reap()
	if err != nil {
		t.Fatalf("Reap() error = %v", err)
	}
	if !timedOut {
		t.Fatal("expected timedOut = true")
	}
	if !status.Has(FlagScrubberTimeout) {
		t.Fatalf("status = %v, expected timeout flag set", status)
	}
}

func TestReapOnEmptySlotErrors(t *testing.T) {
	s := NewSlot("ancillary", nil)
	if _, _, err := s.Reap(); err == nil {
		t.Fatal("expected error reaping an empty slot")
	}
}

func TestExitStatusClassAndFlags(t *testing.T) {
	s := ExitStoreFailure | FlagModemTimeout | FlagScrubberMalformed
	if s.Class() != ExitStoreFailure {
		t.Fatalf("Class() = %v, want ExitStoreFailure", s.Class())
	}
	if !s.Has(FlagModemTimeout) || !s.Has(FlagScrubberMalformed) {
		t.Fatal("expected both sticky flags set")
	}
	if s.Has(FlagInternetTimeout) {
		t.Fatal("unexpected flag set")
	}
}
