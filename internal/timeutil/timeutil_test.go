package timeutil

import (
	"testing"
	"time"
)

func TestDaysHoursMinutesSeconds(t *testing.T) {
	offset := 1*SecondsPerDay + 2*SecondsPerHour + 3*SecondsPerMinute + 4
	if got := Days(offset); got != 1 {
		t.Fatalf("Days(%d) = %d, want 1", offset, got)
	}
	if got := Hours(offset); got != 2 {
		t.Fatalf("Hours(%d) = %d, want 2", offset, got)
	}
	if got := Minutes(offset); got != 3 {
		t.Fatalf("Minutes(%d) = %d, want 3", offset, got)
	}
	if got := Seconds(offset); got != 4 {
		t.Fatalf("Seconds(%d) = %d, want 4", offset, got)
	}
}

// withLocalZone temporarily swaps time.Local for loc, restoring it on
// cleanup. America/New_York is used below because it observes DST with
// well-known 2024 transition dates, exercising the same zone comparison
// Today and NextDailyTrigger both rely on.
func withLocalZone(t *testing.T, loc *time.Location) {
	t.Helper()
	orig := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = orig })
}

func TestTodayShiftsBackOneHourDuringDSTWhenApplyDSTFalse(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	withLocalZone(t, loc)

	// 2024-07-15 is well inside US DST (EDT, UTC-4).
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	snap := Today(now, false)
	if !snap.LocalIsDST {
		t.Fatalf("expected LocalIsDST true in July")
	}
	if got, want := snap.Local.Hour(), now.In(loc).Add(-time.Hour).Hour(); got != want {
		t.Fatalf("Local hour = %d, want %d (shifted back one hour)", got, want)
	}

	snapApply := Today(now, true)
	if got, want := snapApply.Local.Hour(), now.In(loc).Hour(); got != want {
		t.Fatalf("applyDST=true: Local hour = %d, want %d (unshifted)", got, want)
	}
}

func TestNextDailyTriggerMatchesTodayDuringDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	withLocalZone(t, loc)

	// 04:10 offset-from-midnight, evaluated from a moment before it fires
	// on a DST day (2024-07-15 is EDT).
	const offset = 4*SecondsPerHour + 10*SecondsPerMinute
	now := time.Date(2024, 7, 15, 1, 0, 0, 0, loc)

	// applyDST=false: the mechanical switch lags the legal clock by one
	// hour, so the civil-time trigger is 05:10, not 04:10.
	got := NextDailyTrigger(now, offset, false)
	if got.Hour() != 5 || got.Minute() != 10 {
		t.Fatalf("applyDST=false: got %02d:%02d, want 05:10", got.Hour(), got.Minute())
	}

	// applyDST=true: the legal clock is used as-is, so the trigger is the
	// configured 04:10.
	got = NextDailyTrigger(now, offset, true)
	if got.Hour() != 4 || got.Minute() != 10 {
		t.Fatalf("applyDST=true: got %02d:%02d, want 04:10", got.Hour(), got.Minute())
	}
}

func TestNextDailyTriggerOutsideDSTIsUnaffected(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	withLocalZone(t, loc)

	// 2024-01-15 is standard time (EST); applyDST should make no
	// difference to the computed trigger.
	const offset = 4*SecondsPerHour + 10*SecondsPerMinute
	now := time.Date(2024, 1, 15, 1, 0, 0, 0, loc)

	noApply := NextDailyTrigger(now, offset, false)
	apply := NextDailyTrigger(now, offset, true)
	if !noApply.Equal(apply) {
		t.Fatalf("expected identical triggers outside DST, got %v vs %v", noApply, apply)
	}
	if noApply.Hour() != 4 || noApply.Minute() != 10 {
		t.Fatalf("got %02d:%02d, want 04:10", noApply.Hour(), noApply.Minute())
	}
}

func TestNextDailyTriggerRollsToNextDayWhenPassed(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zoneinfo unavailable: %v", err)
	}
	withLocalZone(t, loc)

	const offset = 4*SecondsPerHour + 10*SecondsPerMinute
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, loc) // after 04:10 already

	got := NextDailyTrigger(now, offset, false)
	if got.Day() != 16 {
		t.Fatalf("expected rollover to the 16th, got day %d", got.Day())
	}
	if got.Hour() != 4 || got.Minute() != 10 {
		t.Fatalf("got %02d:%02d, want 04:10", got.Hour(), got.Minute())
	}
}
