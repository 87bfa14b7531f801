// Package loop implements the supervisor's timer/signal multiplexer. The
// C original blocks in a single pselect() over a read-set of file
// descriptors; Go has no equivalent direct syscall exposed to user code,
// so the multiplexer instead blocks in one select statement over
// channels — the "handle that becomes ready" abstraction, mapped onto
// the language's native primitive.
//
// The fixed dispatch order — signals before interval before worker
// deadline before ancillary deadline before schedule — is enforced by
// draining every ready source in priority order on each wake, via
// repeated non-blocking selects, before blocking again. This matches the
// C original's single pselect() return dispatching every ready fd in a
// fixed sequence more faithfully than relying on Go's random case choice
// in a single multi-way select.
package loop

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaislahattu/icmond/internal/eventqueue"
)

// Handlers are invoked by Run as each wakeup source fires. None may
// block: each handler must run to completion before the loop waits for
// the next wake.
type Handlers struct {
	OnReload       func()
	OnTerminate    func()
	OnEnterSuspend func()
	OnLeaveSuspend func()

	OnWorkerExited    func()
	OnAncillaryExited func()

	OnIntervalTick       func()
	OnWorkerDeadline     func()
	OnAncillaryDeadline  func()
	OnScheduledEvent     func(*eventqueue.Event)
}

// Loop owns the five wakeup sources and dispatches to Handlers.
type Loop struct {
	logger   *slog.Logger
	handlers Handlers
	queue    *eventqueue.Queue

	sigCh          chan os.Signal
	workerDone     chan struct{}
	ancillaryDone  chan struct{}
	interval       *time.Timer
	intervalPeriod time.Duration
	schedule       *time.Timer
	workerDeadline *time.Timer
	ancillaryDeadline *time.Timer

	terminating bool
}

// New constructs a Loop. workerDone and ancillaryDone are fed externally
// by internal/supervisor, which forwards internal/worker's done channel
// once the tracked os/exec.Cmd.Wait() returns —
// the Go-native substitute for a SIGCHLD-delivered reap, since os/exec
// already performs the wait4()-based reap internally and a second,
// signal-driven reap would race it.
func New(logger *slog.Logger, queue *eventqueue.Queue, h Handlers, workerDone, ancillaryDone chan struct{}) *Loop {
	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT,
		syscall.SIGUSR1, syscall.SIGUSR2)

	return &Loop{
		logger:            logger,
		handlers:          h,
		queue:             queue,
		sigCh:             sigCh,
		workerDone:        workerDone,
		ancillaryDone:     ancillaryDone,
		interval:          time.NewTimer(time.Hour),
		schedule:          time.NewTimer(time.Hour),
		workerDeadline:    newDisarmedTimer(),
		ancillaryDeadline: newDisarmedTimer(),
	}
}

func newDisarmedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

// ArmInterval (re)arms the interval timer, phase-aligned to the next 10s
// boundary, and remembers period so the timer keeps repeating at that
// period after each fire. Called once at startup and again whenever a
// reload changes the configured interval; the repeating re-arm after
// each regular tick happens internally in Run/drainReady and is not
// phase-aligned, so the configured period is never skewed by it.
func (l *Loop) ArmInterval(period time.Duration) {
	l.intervalPeriod = period
	if !l.interval.Stop() {
		select {
		case <-l.interval.C:
		default:
		}
	}
	l.interval.Reset(nextPhaseAligned())
}

// rearmInterval resets the interval timer to fire period after now,
// without phase-alignment, to keep the tick rate drift-free.
func (l *Loop) rearmInterval() {
	l.interval.Reset(l.intervalPeriod)
}

// nextPhaseAligned returns the delay until the next multiple of 10s
// after now.
func nextPhaseAligned() time.Duration {
	now := time.Now()
	const phase = 10 * time.Second
	elapsed := now.Sub(now.Truncate(phase))
	return phase - elapsed
}

// ArmWorkerDeadline arms the worker deadline timer for duration d.
func (l *Loop) ArmWorkerDeadline(d time.Duration) {
	resetTimer(l.workerDeadline, d)
}

// ArmAncillaryDeadline arms the ancillary deadline timer for duration d.
func (l *Loop) ArmAncillaryDeadline(d time.Duration) {
	resetTimer(l.ancillaryDeadline, d)
}

// DisarmWorkerDeadline cancels a pending worker deadline (the worker
// exited before the timer fired).
func (l *Loop) DisarmWorkerDeadline() { stopTimer(l.workerDeadline) }

// DisarmAncillaryDeadline cancels a pending ancillary deadline.
func (l *Loop) DisarmAncillaryDeadline() { stopTimer(l.ancillaryDeadline) }

// RearmSchedule rebuilds the schedule timer from the queue head. Called
// whenever the queue's head may have changed (after commit, clear, or a
// scheduled event's dispatch).
func (l *Loop) RearmSchedule() {
	stopTimer(l.schedule)
	e, ok := l.queue.Peek()
	if !ok {
		return
	}
	d := time.Until(e.NextTrigger)
	if d < 0 {
		d = 0
	}
	l.schedule.Reset(d)
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// Run blocks, dispatching wakeup sources to Handlers, until ctx is
// cancelled or a terminate signal is received and drained. It returns
// after the final wake's handlers have all completed.
func (l *Loop) Run(ctx context.Context) {
	for {
		if l.terminating {
			return
		}
		select {
		case <-ctx.Done():
			return
		case sig := <-l.sigCh:
			l.dispatchSignal(sig)
		case <-l.workerDone:
			if l.handlers.OnWorkerExited != nil {
				l.handlers.OnWorkerExited()
			}
		case <-l.ancillaryDone:
			if l.handlers.OnAncillaryExited != nil {
				l.handlers.OnAncillaryExited()
			}
		case <-l.interval.C:
			l.rearmInterval()
			if l.handlers.OnIntervalTick != nil {
				l.handlers.OnIntervalTick()
			}
		case <-l.workerDeadline.C:
			if l.handlers.OnWorkerDeadline != nil {
				l.handlers.OnWorkerDeadline()
			}
		case <-l.ancillaryDeadline.C:
			if l.handlers.OnAncillaryDeadline != nil {
				l.handlers.OnAncillaryDeadline()
			}
		case <-l.schedule.C:
			l.drainScheduled()
		}
		l.drainReady()
	}
}

// dispatchSignal routes one delivered OS signal to its handler.
func (l *Loop) dispatchSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		if l.handlers.OnReload != nil {
			l.handlers.OnReload()
		}
	case syscall.SIGTERM, syscall.SIGINT:
		l.terminating = true
		if l.handlers.OnTerminate != nil {
			l.handlers.OnTerminate()
		}
	case syscall.SIGUSR1:
		if l.handlers.OnEnterSuspend != nil {
			l.handlers.OnEnterSuspend()
		}
	case syscall.SIGUSR2:
		if l.handlers.OnLeaveSuspend != nil {
			l.handlers.OnLeaveSuspend()
		}
	}
}

// drainScheduled fires every queued event whose NextTrigger has already
// passed, draining the queue fully before re-entering the wait, then
// rebuilds the schedule timer from the new head.
func (l *Loop) drainScheduled() {
	now := time.Now()
	for {
		e, ok := l.queue.FetchIfTriggered(now)
		if !ok {
			break
		}
		if l.handlers.OnScheduledEvent != nil {
			l.handlers.OnScheduledEvent(e)
		}
	}
	l.RearmSchedule()
}

// drainReady services every other source that is already ready, without
// blocking, preserving the fixed priority order for a single wake that
// happened to ready more than one source at once (e.g. a signal arriving
// in the same instant as a timer fire).
func (l *Loop) drainReady() {
	for {
		select {
		case sig := <-l.sigCh:
			l.dispatchSignal(sig)
			continue
		default:
		}
		select {
		case <-l.interval.C:
			l.rearmInterval()
			if l.handlers.OnIntervalTick != nil {
				l.handlers.OnIntervalTick()
			}
			continue
		default:
		}
		select {
		case <-l.workerDeadline.C:
			if l.handlers.OnWorkerDeadline != nil {
				l.handlers.OnWorkerDeadline()
			}
			continue
		default:
		}
		select {
		case <-l.ancillaryDeadline.C:
			if l.handlers.OnAncillaryDeadline != nil {
				l.handlers.OnAncillaryDeadline()
			}
			continue
		default:
		}
		select {
		case <-l.schedule.C:
			l.drainScheduled()
			continue
		default:
		}
		return
	}
}
