package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kaislahattu/icmond/internal/eventqueue"
)

var actionNames = map[string]eventqueue.Action{
	"SUSPEND":            eventqueue.Suspend,
	"RESUME":             eventqueue.Resume,
	"POWEROFF":           eventqueue.PowerOff,
	"POWERON":            eventqueue.PowerOn,
	"IMPORTTMPFS":        eventqueue.ImportStaging,
	"IMPORTTMPFSTIMEOUT": eventqueue.ImportStagingTimeout,
	"WATCHDOG":           eventqueue.Watchdog,
}

// ParseString splits raw on the schedule list delimiters (comma,
// semicolon) and parses each resulting entry.
func ParseString(raw string) Result {
	if raw == "" {
		return Result{}
	}
	entries := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	return Parse(entries)
}

// Parse validates each entry independently: a malformed entry is
// recorded into the error accumulator but does not abort the remainder.
// Empty entries are silently skipped — they count toward neither
// Rejected nor Events.
//
// entries == nil is the sentinel for "no input at all"; Parse reports
// that by returning Rejected == -1.
func Parse(entries []string) Result {
	if entries == nil {
		return Result{Rejected: -1}
	}

	var r Result
	for i, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		e, err := parseEntry(entry)
		if err != nil {
			r.Rejected++
			r.Errors = append(r.Errors, fmt.Sprintf("entry %d (%q): %v", i, raw, err))
			continue
		}
		r.Events = append(r.Events, e)
	}
	return r
}

// parseEntry parses one schedule grammar entry:
//
//	event  := [prefix] HH ":" MM ws* action
//	prefix := "" (DAILY) | "@" (INTERVAL) | "!" (ONCE)
func parseEntry(entry string) (*eventqueue.Event, error) {
	typ := eventqueue.Daily
	rest := entry
	switch rest[0] {
	case '@':
		typ = eventqueue.Interval
		rest = rest[1:]
	case '!':
		typ = eventqueue.Once
		rest = rest[1:]
	}

	hh, rest, err := takeDigits(rest)
	if err != nil {
		return nil, fmt.Errorf("hour field: %w", err)
	}
	if len(rest) == 0 || rest[0] != ':' {
		return nil, fmt.Errorf("expected ':' after hour field")
	}
	rest = rest[1:]

	mm, rest, err := takeDigits(rest)
	if err != nil {
		return nil, fmt.Errorf("minute field: %w", err)
	}
	if mm < 0 || mm > 59 {
		return nil, fmt.Errorf("minute %d out of range 0..59", mm)
	}
	if typ == eventqueue.Daily && (hh < 0 || hh > 23) {
		return nil, fmt.Errorf("hour %d out of range 0..23 for DAILY event", hh)
	}
	if hh < 0 {
		return nil, fmt.Errorf("hour must not be negative")
	}

	rest = strings.TrimLeft(rest, " \t")
	actionText := strings.ToUpper(strings.TrimSpace(rest))
	action, ok := actionNames[actionText]
	if !ok {
		return nil, fmt.Errorf("unrecognized action %q", rest)
	}

	return &eventqueue.Event{
		LocalOffset: hh*3600 + mm*60,
		Type:        typ,
		Action:      action,
		Source:      eventqueue.Parsed,
	}, nil
}

// takeDigits consumes a run of one or more leading ASCII digits from s,
// returning their integer value and the unconsumed remainder.
func takeDigits(s string) (int, string, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, fmt.Errorf("expected digits")
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, err
	}
	return n, s[i:], nil
}
