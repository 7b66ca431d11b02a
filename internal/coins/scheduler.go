package coins

import (
	"time"

	"coin-service/internal/metrics"
	"coin-service/internal/schedule"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// maxTimerDelay is the longest single wait armed. Longer schedules re-arm
// when the timer fires early and reconcile finds nothing due.
const maxTimerDelay = (1<<31 - 1) * time.Millisecond

type State int

const (
	Unscheduled State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "unscheduled"
}

// Scheduler applies the daily reset. It keeps at most one pending timer and
// is not safe for concurrent use; the Instance serializes every call,
// including timer callbacks.
type Scheduler struct {
	kv       *kv
	keys     Keys
	policy   schedule.Policy
	starting int64
	ledger   *Ledger
	clock    clockwork.Clock
	log      *logrus.Logger

	// fire is invoked from the timer goroutine.
	fire func()

	timer    clockwork.Timer
	armedFor time.Time
	stopped  bool
}

// Reconcile applies the reset if it is due at now and re-arms the timer for
// the next boundary. It reports whether a reset was applied. Calling it again
// with the same now is a no-op apart from re-arming.
func (s *Scheduler) Reconcile(now time.Time) bool {
	nextMs, ok, err := s.kv.getInt(s.keys.NextReset)
	if err != nil {
		return false
	}

	computed := false
	if !ok {
		nextMs, computed = s.initialAnchor(now), true
	}
	next := time.UnixMilli(nextMs)

	if now.Before(next) {
		if computed {
			_ = s.kv.setInt(s.keys.NextReset, nextMs)
		}
		s.arm(next, now)
		return false
	}

	// Compute from now rather than the missed boundary so any number of
	// skipped days collapses into this single reset.
	following := s.policy.NextBoundary(now.Add(time.Millisecond))

	// The schedule moves first: if the balance write then fails the reset
	// is skipped, never repeated.
	if err := s.kv.setInt(s.keys.NextReset, following.UnixMilli()); err != nil {
		return false
	}
	if err := s.ledger.write(s.starting); err != nil {
		s.arm(following, now)
		return false
	}
	s.recordReset(now)

	metrics.ResetsApplied.Inc()
	s.log.WithFields(logrus.Fields{
		"due":     next.UnixMilli(),
		"applied": now.UnixMilli(),
		"next":    following.UnixMilli(),
		"balance": s.starting,
	}).Debug("balance reset applied")

	s.arm(following, now)
	return true
}

// CheckDue reconciles only when something needs doing: the reset is due,
// no schedule is persisted, or no timer is pending.
func (s *Scheduler) CheckDue(now time.Time) {
	nextMs, ok, err := s.kv.getInt(s.keys.NextReset)
	if err != nil {
		return
	}
	if ok && now.Before(time.UnixMilli(nextMs)) && s.timer != nil {
		return
	}
	s.Reconcile(now)
}

// NextReset returns the persisted next reset instant.
func (s *Scheduler) NextReset() (time.Time, bool) {
	nextMs, ok, err := s.kv.getInt(s.keys.NextReset)
	if err != nil || !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(nextMs), true
}

// State reports whether a timer is pending and for which instant.
func (s *Scheduler) State() (State, time.Time) {
	if s.timer == nil {
		return Unscheduled, time.Time{}
	}
	return Armed, s.armedFor
}

// Stop cancels the pending timer; nothing is armed afterwards.
func (s *Scheduler) Stop() {
	s.stopped = true
	s.cancelTimer()
}

// initialAnchor picks the schedule when none is persisted: a valid anchor
// left by an earlier revision, otherwise the next boundary after now.
func (s *Scheduler) initialAnchor(now time.Time) int64 {
	if s.keys.LegacyAnchor != "" {
		if legacy, ok, err := s.kv.getInt(s.keys.LegacyAnchor); err == nil && ok && legacy > 0 {
			s.log.WithField("anchor", legacy).Debug("adopting legacy reset anchor")
			return legacy
		}
	}
	return s.policy.NextBoundary(now).UnixMilli()
}

func (s *Scheduler) recordReset(now time.Time) {
	last := now.UnixMilli()
	if prev, ok, err := s.kv.getInt(s.keys.LastReset); err == nil && ok && prev > last {
		last = prev
	}
	_ = s.kv.setInt(s.keys.LastReset, last)
}

func (s *Scheduler) arm(next, now time.Time) {
	s.cancelTimer()
	if s.stopped {
		return
	}

	delay := next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	if delay > maxTimerDelay {
		delay = maxTimerDelay
	}
	s.timer = s.clock.AfterFunc(delay, s.fire)
	s.armedFor = next
}

func (s *Scheduler) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.armedFor = time.Time{}
	}
}
