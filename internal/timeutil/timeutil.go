// Package timeutil provides the day/hour/minute/second arithmetic and
// local-standard-time snapshot used by the event scheduler. All inputs and
// outputs are expressed as durations-since-midnight or epoch instants; the
// package never carries state of its own.
package timeutil

import "time"

const (
	SecondsPerMinute = 60
	SecondsPerHour   = 60 * SecondsPerMinute
	SecondsPerDay    = 24 * SecondsPerHour
)

// Days, Hours, Minutes and Seconds decompose an offset-from-midnight value
// (in seconds) into its calendar components. Hours and Minutes are the
// remainder within the day/hour, matching the C original's div/mod pair.
func Days(offset int) int    { return offset / SecondsPerDay }
func Hours(offset int) int   { return (offset % SecondsPerDay) / SecondsPerHour }
func Minutes(offset int) int { return (offset % SecondsPerHour) / SecondsPerMinute }
func Seconds(offset int) int { return offset % SecondsPerMinute }

// Snapshot is a decomposition of "now" into UTC and local-standard-time
// views, honoring the apply_dst policy.
type Snapshot struct {
	UTCNow     time.Time
	UTCMidnight time.Time
	UTCOffset  int // seconds since UTC midnight
	Local      time.Time
	LocalIsDST bool
}

// Today builds a Snapshot for the instant now. If the local zone is
// presently observing daylight saving time and applyDST is false, the
// local view is shifted back by one hour: the modem's mechanical
// timeswitch does not itself observe DST, so the schedule must be
// evaluated against standard time even while the OS clock has jumped.
func Today(now time.Time, applyDST bool) Snapshot {
	utcNow := now.UTC()
	midnight := time.Date(utcNow.Year(), utcNow.Month(), utcNow.Day(), 0, 0, 0, 0, time.UTC)
	offset := int(utcNow.Sub(midnight).Seconds())

	local := now.Local()
	_, isDST := localDSTOffset(local)
	if isDST && !applyDST {
		local = local.Add(-time.Hour)
	}

	return Snapshot{
		UTCNow:      utcNow,
		UTCMidnight: midnight,
		UTCOffset:   offset,
		Local:       local,
		LocalIsDST:  isDST,
	}
}

// localDSTOffset reports whether t's zone is currently in daylight saving
// time, by comparing its offset to the offset six months away (one of the
// two will be standard time in any zone that observes DST at all).
func localDSTOffset(t time.Time) (time.Duration, bool) {
	_, off := t.Zone()
	_, offOppositeSeason := t.AddDate(0, 6, 0).Zone()
	return time.Duration(off) * time.Second, off > offOppositeSeason
}

// NextDailyTrigger returns the next absolute instant, strictly after now, at
// which a DAILY event with the given offset-from-local-midnight should
// fire. If today's occurrence has already passed, the following day's is
// returned — recomputed from scratch so that a DST transition between now
// and then is handled correctly rather than by simple addition.
func NextDailyTrigger(now time.Time, localOffset int, applyDST bool) time.Time {
	loc := time.Local
	base := now.In(loc)
	candidate := time.Date(base.Year(), base.Month(), base.Day(),
		Hours(localOffset), Minutes(localOffset), Seconds(localOffset), 0, loc)

	if _, isDST := localDSTOffset(base); isDST && !applyDST {
		candidate = candidate.Add(time.Hour)
	}

	if !candidate.After(now) {
		next := base.AddDate(0, 0, 1)
		candidate = time.Date(next.Year(), next.Month(), next.Day(),
			Hours(localOffset), Minutes(localOffset), Seconds(localOffset), 0, loc)
		if _, isDST := localDSTOffset(next); isDST && !applyDST {
			candidate = candidate.Add(time.Hour)
		}
	}
	return candidate
}
