// Package supervisor implements startup, signal installation, the main
// loop, graceful shutdown and exit statistics. It wires together every
// other internal package without adding scheduling or privilege logic
// of its own.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kaislahattu/icmond/internal/config"
	"github.com/kaislahattu/icmond/internal/eventqueue"
	"github.com/kaislahattu/icmond/internal/loop"
	"github.com/kaislahattu/icmond/internal/pidfile"
	"github.com/kaislahattu/icmond/internal/reconfig"
	"github.com/kaislahattu/icmond/internal/schedule"
	"github.com/kaislahattu/icmond/internal/store"
	"github.com/kaislahattu/icmond/internal/worker"
)

// Stats holds the runtime counters reported in the shutdown log line.
type Stats struct {
	Start                   time.Time
	End                     time.Time
	IntervalTicks           int
	WorkerLaunches          int
	WorkerSuccesses         int
	ScheduledEventsExecuted int
}

// FormatRuntime renders Stats.Start..End as a coarse
// years/days/hours/minutes/seconds breakdown for the shutdown log line.
func (s Stats) FormatRuntime() string {
	d := s.End.Sub(s.Start)
	years := int(d.Hours() / (24 * 365))
	d -= time.Duration(years) * 365 * 24 * time.Hour
	days := int(d.Hours() / 24)
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d.Hours())
	d -= time.Duration(hours) * time.Hour
	minutes := int(d.Minutes())
	d -= time.Duration(minutes) * time.Minute
	seconds := int(d.Seconds())
	return fmt.Sprintf("%dy %dd %dh %dm %ds", years, days, hours, minutes, seconds)
}

// WorkerEntry builds the argv used to re-exec this same binary in
// worker mode, since Go has no fork() to share the parent's
// already-initialized state. It is handed the live configuration
// snapshot at spawn time so the re-exec'd child receives the currently
// active database path, probe targets and scrubber settings rather than
// compiled-in defaults.
type WorkerEntry func(*config.Snapshot) ([]string, error)

// AncillaryEntry is WorkerEntry's counterpart for the ancillary slot; it
// additionally receives the action that triggered the launch.
type AncillaryEntry func(eventqueue.Action, *config.Snapshot) ([]string, error)

// Supervisor owns the live configuration controller, the event queue,
// the two child slots, and the collaborators needed to run the main
// loop.
type Supervisor struct {
	logger *slog.Logger
	queue  *eventqueue.Queue
	ctl    *reconfig.Controller
	lp     *loop.Loop

	workerSlot      *worker.Slot
	ancillarySlot   *worker.Slot
	workerDoneCh    chan struct{}
	ancillaryDoneCh chan struct{}

	workerEntryArgv    WorkerEntry
	ancillaryEntryArgv AncillaryEntry

	store store.Store
	pf    *pidfile.Handle

	suspendedByCommand  bool
	suspendedBySchedule bool

	stats Stats
}

// New constructs a Supervisor. The config path re-read on SIGHUP is set
// separately with SetConfigPathHint.
func New(logger *slog.Logger, snap *config.Snapshot, argv []string, workerEntry WorkerEntry,
	ancillaryEntry AncillaryEntry, st store.Store) *Supervisor {

	queue := eventqueue.New()
	ctl := reconfig.New(snap, queue, argv, logger)

	s := &Supervisor{
		logger:             logger,
		queue:              queue,
		ctl:                ctl,
		workerSlot:         worker.NewSlot("worker", logger),
		ancillarySlot:      worker.NewSlot("ancillary", logger),
		workerDoneCh:       make(chan struct{}, 1),
		ancillaryDoneCh:    make(chan struct{}, 1),
		workerEntryArgv:    workerEntry,
		ancillaryEntryArgv: ancillaryEntry,
		store:              st,
		stats:              Stats{Start: time.Now()},
	}

	handlers := loop.Handlers{
		OnReload:            s.handleReload,
		OnTerminate:         s.handleTerminate,
		OnEnterSuspend:      func() { s.suspendedByCommand = true },
		OnLeaveSuspend:      func() { s.suspendedByCommand = false },
		OnWorkerExited:      s.handleWorkerExited,
		OnAncillaryExited:   s.handleAncillaryExited,
		OnIntervalTick:      s.handleIntervalTick,
		OnWorkerDeadline:    func() { s.workerSlot.Kill() },
		OnAncillaryDeadline: func() { s.ancillarySlot.Kill() },
		OnScheduledEvent:    s.handleScheduledEvent,
	}
	s.lp = loop.New(logger, queue, handlers, s.workerDoneCh, s.ancillaryDoneCh)
	return s
}

// SeedSchedule parses and commits the configuration's schedule string, as
// part of startup before the main loop begins.
func (s *Supervisor) SeedSchedule(now time.Time) error {
	snap := s.ctl.Live()
	result := schedule.ParseString(snap.ScheduleString)
	if len(result.Errors) > 0 {
		s.logger.Warn("supervisor: schedule string had rejected entries", "count", len(result.Errors), "detail", result.ErrorText())
	}
	events := schedule.ApplyPowerControl(result.Events, snap.ModemPowerControl, int(snap.ModemPowerUpDelay.Seconds()))
	schedule.SortByOffset(events)
	schedule.CommitParsed(s.queue, schedule.Result{Events: events}, now, snap.ScheduleDST)
	return nil
}

// DefaultStagingImportPeriod is the fallback period for the INTERNAL
// IMPORT_STAGING event SeedStagingImport inserts when the operator's own
// schedule string does not already define one.
const DefaultStagingImportPeriod = 15 * time.Minute

// SeedStagingImport arms a periodic IMPORT_STAGING event so the ancillary
// staging-flush slot runs automatically once the staging latency test has
// recommended buffering samples through the RAM-disk store, instead of
// firing only when an operator hand-writes an "@HH:MM ImportTMPFS"
// schedule entry. It is a no-op if the committed schedule already
// contains an IMPORT_STAGING event of either source.
func (s *Supervisor) SeedStagingImport(now time.Time) {
	for _, e := range s.queue.Drain() {
		if e.Action == eventqueue.ImportStaging {
			return
		}
	}
	period := DefaultStagingImportPeriod
	s.queue.Insert(&eventqueue.Event{
		NextTrigger: now.Add(period),
		LocalOffset: int(period.Seconds()),
		Type:        eventqueue.Interval,
		Action:      eventqueue.ImportStaging,
		Source:      eventqueue.Internal,
	})
}

// AttachPidfile records the already-acquired pidfile handle so Shutdown
// can release it.
func (s *Supervisor) AttachPidfile(h *pidfile.Handle) { s.pf = h }

// Run arms the timers and blocks in the main loop until a terminate
// signal is processed or ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	s.lp.ArmInterval(s.ctl.Live().Interval)
	s.lp.RearmSchedule()
	s.lp.Run(ctx)
}

// Shutdown logs runtime statistics, releases the pidfile and closes the
// store.
func (s *Supervisor) Shutdown() {
	s.stats.End = time.Now()
	s.logger.Info("supervisor: shutting down", "runtime", s.stats.FormatRuntime(),
		"interval_ticks", s.stats.IntervalTicks,
		"worker_launches", s.stats.WorkerLaunches,
		"worker_successes", s.stats.WorkerSuccesses,
		"scheduled_events_executed", s.stats.ScheduledEventsExecuted)

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("supervisor: closing store", "error", err.Error())
		}
	}
	if s.pf != nil {
		if err := s.pf.Unlock(); err != nil {
			s.logger.Error("supervisor: releasing pidfile", "error", err.Error())
		}
	}
}

// Stats returns a copy of the current runtime statistics.
func (s *Supervisor) Stats() Stats { return s.stats }

func (s *Supervisor) handleTerminate() {
	s.logger.Info("supervisor: terminate signal received, draining")
}

func (s *Supervisor) handleReload() {
	snap := s.ctl.Live()
	result, err := s.ctl.Reload(defaultConfigPathHint, true, time.Now())
	if err != nil {
		s.logger.Error("supervisor: reload failed, keeping prior configuration", "error", err.Error())
		return
	}
	if result.IntervalChanged {
		s.lp.ArmInterval(s.ctl.Live().Interval)
	}
	s.lp.RearmSchedule()
	s.logger.Info("supervisor: reload applied", "previous_interval", snap.Interval)
}

// defaultConfigPathHint is overwritten by cmd/icmond at startup via
// SetConfigPathHint; kept as a package-level default only so tests that
// never call it still compile against a sane value.
var defaultConfigPathHint = "/etc/icmond.conf"

// SetConfigPathHint records the alternate config path Reload should
// re-read, saved at startup.
func (s *Supervisor) SetConfigPathHint(path string) { defaultConfigPathHint = path }

// handleIntervalTick is the per-tick worker dispatch logic.
func (s *Supervisor) handleIntervalTick() {
	s.stats.IntervalTicks++

	if s.suspendedByCommand || s.suspendedBySchedule {
		return
	}
	if s.workerSlot.Busy() {
		s.logger.Warn("supervisor: previous worker still running, skipping tick")
		return
	}

	snap := s.ctl.Live()
	argv, err := s.workerEntryArgv(snap)
	if err != nil {
		s.logger.Error("supervisor: building worker argv", "error", err.Error())
		return
	}
	timeout := snap.ModemScrubberTimeout + snap.ModemPingTimeout + snap.InetPingTimeout
	done, err := s.workerSlot.Spawn(argv, timeout, nil)
	if err != nil {
		s.logger.Warn("supervisor: worker fork failed, dropping tick", "error", err.Error())
		return
	}
	s.stats.WorkerLaunches++
	s.lp.ArmWorkerDeadline(timeout)
	go func() {
		<-done
		select {
		case s.workerDoneCh <- struct{}{}:
		default:
		}
	}()
}

func (s *Supervisor) handleWorkerExited() {
	s.lp.DisarmWorkerDeadline()
	status, timedOut, err := s.workerSlot.Reap()
	if err != nil {
		s.logger.Error("supervisor: reaping worker", "error", err.Error())
		return
	}
	if timedOut {
		s.logger.Warn("supervisor: worker killed for exceeding deadline")
	}
	if status.Class() == worker.ExitSuccess {
		s.stats.WorkerSuccesses++
	}
}

func (s *Supervisor) handleAncillaryExited() {
	s.lp.DisarmAncillaryDeadline()
	status, timedOut, err := s.ancillarySlot.Reap()
	if err != nil {
		s.logger.Error("supervisor: reaping ancillary", "error", err.Error())
		return
	}
	if timedOut {
		s.logger.Warn("supervisor: ancillary killed for exceeding deadline")
	} else if status.Class() != worker.ExitSuccess {
		s.logger.Warn("supervisor: ancillary exited with failure", "status", uint8(status))
	}
}

// handleScheduledEvent dispatches one fired event. SUSPEND/RESUME toggle
// the schedule-initiated latch; IMPORT_STAGING launches the ancillary
// slot plus its companion timeout event; POWER_ON/POWER_OFF and WATCHDOG
// are logged only — the modem power-control relay itself is out of
// scope. DAILY and INTERVAL events are rearmed and reinserted; ONCE
// events are discarded after firing.
func (s *Supervisor) handleScheduledEvent(e *eventqueue.Event) {
	s.stats.ScheduledEventsExecuted++
	snap := s.ctl.Live()

	switch e.Action {
	case eventqueue.Suspend:
		s.suspendedBySchedule = true
	case eventqueue.Resume:
		s.suspendedBySchedule = false
	case eventqueue.ImportStaging:
		s.launchAncillary(e, snap)
	case eventqueue.ImportStagingTimeout:
		s.ancillarySlot.Kill()
	case eventqueue.PowerOn, eventqueue.PowerOff, eventqueue.Watchdog:
		s.logger.Info("supervisor: scheduled event fired", "action", e.Action.String())
	}

	if e.Type == eventqueue.Once {
		return
	}
	e.NextTrigger = schedule.Rearm(e, snap.ScheduleDST)
	s.queue.Insert(e)
}

func (s *Supervisor) launchAncillary(e *eventqueue.Event, snap *config.Snapshot) {
	if s.ancillarySlot.Busy() {
		s.logger.Warn("supervisor: ancillary already running, dropping IMPORT_STAGING")
		return
	}
	argv, err := s.ancillaryEntryArgv(e.Action, snap)
	if err != nil {
		s.logger.Error("supervisor: building ancillary argv", "error", err.Error())
		return
	}
	timeout := snap.ModemScrubberTimeout * 4
	done, err := s.ancillarySlot.Spawn(argv, timeout, nil)
	if err != nil {
		s.logger.Warn("supervisor: ancillary fork failed", "error", err.Error())
		return
	}
	s.lp.ArmAncillaryDeadline(timeout)
	go func() {
		<-done
		select {
		case s.ancillaryDoneCh <- struct{}{}:
		default:
		}
	}()

	s.queue.Insert(&eventqueue.Event{
		NextTrigger: time.Now().Add(timeout),
		Type:        eventqueue.Once,
		Action:      eventqueue.ImportStagingTimeout,
		Source:      eventqueue.Internal,
	})
}

// Exit codes for resource-acquisition fatal errors.
const (
	ExitSuccess             = 0
	ExitGeneralFailure      = 1
	ExitAlreadyRunning      = 2
	ExitPrivilegeDropFailed = 3
	ExitConfigInvalid       = 4
)

// Fatal logs msg at ERROR and exits the process with code. Both
// programming-defect conditions and resource-acquisition fatal errors
// terminate this way.
func Fatal(logger *slog.Logger, code int, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(code)
}
