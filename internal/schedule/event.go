// Package schedule implements the event grammar parser, next-trigger
// arithmetic and commit semantics. It depends on internal/timeutil and
// internal/eventqueue but is not depended on by either.
package schedule

import (
	"sort"
	"time"

	"github.com/kaislahattu/icmond/internal/eventqueue"
	"github.com/kaislahattu/icmond/internal/timeutil"
)

// Result is the outcome of a parse run: the staged (not yet committed)
// events, the count of rejected entries, and the accumulated error text —
// one formatted message per rejected entry, in input order.
//
// Rejected is -1 when the parse input itself was nil, distinguishing "no
// input provided" from "input provided but every entry was empty".
type Result struct {
	Events   []*eventqueue.Event
	Rejected int
	Errors   []string
}

// ErrorText joins every accumulated parse error into one block, the
// companion accessor to the rejected-entry counter.
func (r Result) ErrorText() string {
	out := ""
	for i, e := range r.Errors {
		if i > 0 {
			out += "\n"
		}
		out += e
	}
	return out
}

// NextTrigger computes the absolute instant at which e should next fire,
// given the current instant now and the DST policy. For DAILY events this
// reconverts from local-time components (so a DST transition between now
// and the target is handled correctly); for INTERVAL and ONCE it is a
// plain offset from now.
func NextTrigger(e *eventqueue.Event, now time.Time, applyDST bool) time.Time {
	switch e.Type {
	case eventqueue.Daily:
		return timeutil.NextDailyTrigger(now, e.LocalOffset, applyDST)
	default: // Interval, Once
		return now.Add(time.Duration(e.LocalOffset) * time.Second)
	}
}

// Rearm recomputes and returns the next trigger for an event that just
// fired, without mutating e. DAILY events reconvert from local time
// (handles DST); INTERVAL events advance by a fixed offset from their own
// prior trigger, drift-free; ONCE events are never rearmed — callers must
// discard them instead of calling Rearm.
func Rearm(e *eventqueue.Event, applyDST bool) time.Time {
	switch e.Type {
	case eventqueue.Daily:
		return timeutil.NextDailyTrigger(e.NextTrigger.Add(time.Minute), e.LocalOffset, applyDST)
	case eventqueue.Interval:
		return e.NextTrigger.Add(time.Duration(e.LocalOffset) * time.Second)
	default:
		return e.NextTrigger
	}
}

// CommitParsed moves every staged event in r into q, computing each
// event's initial NextTrigger relative to now. It does not clear any
// existing queue content — callers that are replacing the PARSED subset
// must call q.Clear(eventqueue.Parsed) first.
func CommitParsed(q *eventqueue.Queue, r Result, now time.Time, applyDST bool) {
	for _, e := range r.Events {
		e.NextTrigger = NextTrigger(e, now, applyDST)
		q.Insert(e)
	}
}

// ApplyPowerControl inserts an auto-generated PARSED POWER_ON companion
// event at (offset - powerUpDelay), wrapped across the day boundary, for
// every RESUME event already in the staged set. It must run before
// sorting and before CommitParsed. No-op when powerUpDelay is 0 or power
// control is disabled.
func ApplyPowerControl(events []*eventqueue.Event, enabled bool, powerUpDelay int) []*eventqueue.Event {
	if !enabled || powerUpDelay <= 0 {
		return events
	}
	var additions []*eventqueue.Event
	for _, e := range events {
		if e.Action != eventqueue.Resume {
			continue
		}
		offset := e.LocalOffset - powerUpDelay
		for offset < 0 {
			offset += timeutil.SecondsPerDay
		}
		additions = append(additions, &eventqueue.Event{
			LocalOffset: offset,
			Type:        eventqueue.Daily,
			Action:      eventqueue.PowerOn,
			Source:      eventqueue.Parsed,
		})
	}
	return append(events, additions...)
}

// SortByOffset orders events ascending by LocalOffset. Not a correctness
// requirement — the heap reorders on commit — but required for
// deterministic diagnostic output.
func SortByOffset(events []*eventqueue.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].LocalOffset < events[j].LocalOffset
	})
}
