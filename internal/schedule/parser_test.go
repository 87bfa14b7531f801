package schedule

import (
	"testing"

	"github.com/kaislahattu/icmond/internal/eventqueue"
)

// S1: parse rejection set.
func TestParseRejectionSet(t *testing.T) {
	entries := []string{
		"", "a:59 RESUME", "-3:00 RESUME", "20€ off now!", "1:on",
		"2:99 PWRON", "12: pwroff", "23:59 ", "04:00 off", "2:2:0",
		"+12:+10+", "16:10 PwrOn16:25 PwrOff",
	}
	r := Parse(entries)
	if r.Rejected != 11 {
		t.Fatalf("rejected = %d, want 11 (errors: %v)", r.Rejected, r.Errors)
	}
	if len(r.Events) != 0 {
		t.Fatalf("committed = %d, want 0", len(r.Events))
	}
}

// S2: parse acceptance set.
func TestParseAcceptanceSet(t *testing.T) {
	entries := []string{
		"03:20 SUSPEND", "3:30              poweron", "4:5RESUME",
		"@09:30ImportTMPFS", "!00:01 ImportTMPFStimeout", "!49:59 POWEROFF",
	}
	r := Parse(entries)
	if len(r.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	if len(r.Events) != 6 {
		t.Fatalf("committed = %d, want 6", len(r.Events))
	}
	wantTypes := []eventqueue.Type{
		eventqueue.Daily, eventqueue.Daily, eventqueue.Daily,
		eventqueue.Interval, eventqueue.Once, eventqueue.Once,
	}
	for i, e := range r.Events {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d type = %v, want %v", i, e.Type, wantTypes[i])
		}
	}
}

// S4: auto POWER_ON insertion.
func TestApplyPowerControlInsertsCompanion(t *testing.T) {
	r := Parse([]string{"05:00 RESUME"})
	if len(r.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	events := ApplyPowerControl(r.Events, true, 300)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	var resume, powerOn *eventqueue.Event
	for _, e := range events {
		switch e.Action {
		case eventqueue.Resume:
			resume = e
		case eventqueue.PowerOn:
			powerOn = e
		}
	}
	if resume == nil || powerOn == nil {
		t.Fatalf("expected both RESUME and POWER_ON, got %+v", events)
	}
	if resume.LocalOffset != 5*3600 {
		t.Fatalf("RESUME offset = %d, want %d", resume.LocalOffset, 5*3600)
	}
	if powerOn.LocalOffset != 4*3600+55*60 {
		t.Fatalf("POWER_ON offset = %d, want %d", powerOn.LocalOffset, 4*3600+55*60)
	}
}

func TestParseNilIsSentinel(t *testing.T) {
	r := Parse(nil)
	if r.Rejected != -1 {
		t.Fatalf("Rejected = %d, want -1 sentinel for nil input", r.Rejected)
	}
}

func TestParseEmptyEntriesAreSkippedNotRejected(t *testing.T) {
	r := Parse([]string{"", "  ", ""})
	if r.Rejected != 0 {
		t.Fatalf("Rejected = %d, want 0 for all-empty input", r.Rejected)
	}
	if len(r.Events) != 0 {
		t.Fatalf("Events = %d, want 0", len(r.Events))
	}
}
