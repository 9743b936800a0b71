package main

import (
	"sync"
	"time"
)

// Virtual player think delays
const (
	VirtualTurnDelay   = 1500 * time.Millisecond
	VirtualCombatDelay = 1 * time.Second
)

// SchedulerHooks receive timer events. The Room implements them; every hook
// re-validates game state because a timer may fire right as a player acts.
type SchedulerHooks interface {
	OnTick(secondsLeft int)
	OnTurnExpired()
	OnTransitionDone()
	OnCombatExpired()
	OnVirtualTurn()
	OnVirtualCombat()
}

// Scheduler drives the per-game countdowns. Mutations never arm timers:
// they return PhaseEvents and Apply alone decides what runs next. A
// generation counter invalidates callbacks armed for superseded phases, so
// a timer firing after room teardown or a phase change is a no-op.
type Scheduler struct {
	mu      sync.Mutex
	cfg     GameConfig
	hooks   SchedulerHooks
	gen     int
	stopped bool
}

// NewScheduler creates a scheduler for one game
func NewScheduler(cfg GameConfig, hooks SchedulerHooks) *Scheduler {
	return &Scheduler{cfg: cfg, hooks: hooks}
}

// Apply reads a phase descriptor and (re)arms the matching countdown
func (s *Scheduler) Apply(ev *PhaseEvent) {
	if ev == nil {
		return
	}
	switch ev.Phase {
	case PhaseTransition:
		s.after(time.Duration(s.cfg.TransitionSeconds)*time.Second, s.hooks.OnTransitionDone)
	case PhaseActing:
		s.countdown(s.cfg.TurnSeconds, s.hooks.OnTick, s.hooks.OnTurnExpired)
		if ev.Actor != nil && ev.Actor.Flags.IsVirtual() {
			s.alongside(VirtualTurnDelay, s.hooks.OnVirtualTurn)
		}
	case PhaseCombat:
		seconds := s.cfg.CombatSeconds
		if ev.Actor != nil && ev.Actor.EvasionAttempts >= MaxEvasionAttempts {
			seconds = s.cfg.CombatSecondsNoEvade
		}
		s.countdown(seconds, s.hooks.OnTick, s.hooks.OnCombatExpired)
		if ev.Actor != nil && ev.Actor.Flags.IsVirtual() {
			s.alongside(VirtualCombatDelay, s.hooks.OnVirtualCombat)
		}
	case PhaseOver:
		s.Stop()
	}
}

// Stop invalidates every pending callback. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.gen++
	s.mu.Unlock()
}

// after arms fn as the sole pending callback of a new generation
func (s *Scheduler) after(d time.Duration, fn func()) {
	gen := s.bump()
	go func() {
		time.Sleep(d)
		if s.live(gen) {
			fn()
		}
	}()
}

// alongside arms fn without invalidating the countdown of the current
// generation (used for virtual-player think delays)
func (s *Scheduler) alongside(d time.Duration, fn func()) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	go func() {
		time.Sleep(d)
		if s.live(gen) {
			fn()
		}
	}()
}

// countdown ticks once per second, then fires expire
func (s *Scheduler) countdown(seconds int, tick func(int), expire func()) {
	gen := s.bump()
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		remaining := seconds
		for range t.C {
			if !s.live(gen) {
				return
			}
			remaining--
			if remaining <= 0 {
				expire()
				return
			}
			tick(remaining)
		}
	}()
}

func (s *Scheduler) bump() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

func (s *Scheduler) live(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.gen == gen
}
