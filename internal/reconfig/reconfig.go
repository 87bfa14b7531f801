// Package reconfig implements the reconfiguration controller: on
// SIGHUP, re-parse config plus command line, validate, and atomically
// swap the live snapshot.
package reconfig

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kaislahattu/icmond/internal/config"
	"github.com/kaislahattu/icmond/internal/eventqueue"
	"github.com/kaislahattu/icmond/internal/schedule"
)

// Controller owns the live configuration pointer and the event queue it
// keeps in sync. The zero value is not usable; construct with New.
type Controller struct {
	live   atomic.Pointer[config.Snapshot]
	queue  *eventqueue.Queue
	logger *slog.Logger

	// argv is the original command line saved at startup; reload always
	// re-applies it, never whatever might be current at reload time.
	argv []string
}

// New constructs a Controller with the given initial snapshot already
// committed, and saves argv for every future reload.
func New(initial *config.Snapshot, queue *eventqueue.Queue, argv []string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	c := &Controller{queue: queue, argv: argv, logger: logger}
	c.live.Store(initial)
	return c
}

// Live returns the currently active snapshot. Callers must not mutate
// it — Reload always installs a distinct value via atomic swap.
func (c *Controller) Live() *config.Snapshot {
	return c.live.Load()
}

// IntervalChanged reports whether a reload changed the probe interval,
// used by the caller to decide whether the interval timer needs
// re-arming.
type ReloadResult struct {
	IntervalChanged bool
}

// Reload shallow-copies the live snapshot, overlays the config file then
// the command line, validates, and atomically swaps the live pointer,
// reporting what changed so the caller can re-arm timers, then replaces
// the PARSED event subset. On any validation failure the live snapshot
// and queue are left completely untouched — no partial apply.
func (c *Controller) Reload(configPath string, explicit bool, now time.Time) (ReloadResult, error) {
	old := c.live.Load()

	candidate, err := config.Load(configPath, explicit, old)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("reconfig: load config: %w", err)
	}
	if _, err := config.ParseFull(c.argv, candidate); err != nil {
		return ReloadResult{}, fmt.Errorf("reconfig: re-apply command line: %w", err)
	}

	if err := candidate.Validate(); err != nil {
		return ReloadResult{}, fmt.Errorf("reconfig: validate new configuration: %w", err)
	}

	parseResult := schedule.ParseString(candidate.ScheduleString)
	if len(parseResult.Errors) > 0 {
		return ReloadResult{}, fmt.Errorf("reconfig: schedule string has %d error(s): %s", len(parseResult.Errors), parseResult.ErrorText())
	}
	events := schedule.ApplyPowerControl(parseResult.Events, candidate.ModemPowerControl, int(candidate.ModemPowerUpDelay.Seconds()))
	schedule.SortByOffset(events)

	result := ReloadResult{IntervalChanged: candidate.Interval != old.Interval}

	c.live.Store(candidate)
	c.queue.Clear(eventqueue.Parsed)
	schedule.CommitParsed(c.queue, schedule.Result{Events: events}, now, candidate.ScheduleDST)

	c.logger.Info("reconfig: reload applied", "interval_changed", result.IntervalChanged, "events_committed", len(events))
	return result, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
