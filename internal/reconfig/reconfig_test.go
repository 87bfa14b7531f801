package reconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaislahattu/icmond/internal/config"
	"github.com/kaislahattu/icmond/internal/eventqueue"
)

// S6: reload preserves INTERNAL events untouched while replacing the
// PARSED subset.
func TestReloadPreservesInternalEvents(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "icmond.conf")
	if err := os.WriteFile(cfgPath, []byte("schedule = 03:00 SUSPEND\ninet pinghosts = 8.8.8.8\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	base := config.Defaults()
	base.InetPingHosts = []string{"8.8.8.8"}
	queue := eventqueue.New()

	now := time.Now()
	internalTrigger := now.Add(600 * time.Second)
	internal := &eventqueue.Event{
		NextTrigger: internalTrigger,
		Type:        eventqueue.Interval,
		Action:      eventqueue.ImportStaging,
		Source:      eventqueue.Internal,
	}
	queue.Insert(internal)

	ctl := New(base, queue, nil, nil)
	if _, err := ctl.Reload(cfgPath, true, now); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	var sawInternal bool
	var parsedCount int
	for _, e := range queue.Drain() {
		if e.Source == eventqueue.Internal {
			sawInternal = true
			if !e.NextTrigger.Equal(internalTrigger) {
				t.Fatalf("INTERNAL event trigger changed: got %v want %v", e.NextTrigger, internalTrigger)
			}
		} else {
			parsedCount++
		}
	}
	if !sawInternal {
		t.Fatal("expected the original INTERNAL event to survive reload")
	}
	if parsedCount != 1 {
		t.Fatalf("parsed events after reload = %d, want 1 (the new SUSPEND)", parsedCount)
	}
}

func TestReloadAbandonsOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "icmond.conf")
	// interval out of range -> Validate() must fail.
	if err := os.WriteFile(cfgPath, []byte("interval = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	base := config.Defaults()
	base.InetPingHosts = []string{"8.8.8.8"}
	queue := eventqueue.New()
	ctl := New(base, queue, nil, nil)

	if _, err := ctl.Reload(cfgPath, true, time.Now()); err == nil {
		t.Fatal("expected reload to fail validation")
	}
	if ctl.Live() != base {
		t.Fatal("live snapshot must be unchanged after a failed reload")
	}
}
