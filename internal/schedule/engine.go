// Package schedule implements the slot availability and conflict engine:
// time-slot generation from recurring availability windows, one-off
// blocked periods and live bookings; a single-instant availability
// check; conflict classification with alternative-slot suggestions; and
// the transactional appointment lifecycle (booking, reschedule, status
// changes) with an append-only history trail.
//
// The engine is request-scoped and stateless. All store access goes
// through the interfaces in store.go; nothing here knows about Postgres
// or HTTP.
package schedule

import (
	"log/slog"
	"time"
)

// Rules is the static scheduling configuration of the practice.
type Rules struct {
	MinAdvance     time.Duration // minimum notice before a slot can start
	MaxAdvance     time.Duration // how far ahead bookings are offered
	Buffer         time.Duration // idle time required between appointments
	SlotStep       time.Duration // candidate grid step, aligned to window start
	MinDuration    time.Duration
	MaxDuration    time.Duration
	Location       *time.Location // business timezone; all display math happens here
	LookaheadDays  int            // extra days scanned for alternative suggestions
	MaxSuggestions int
}

func DefaultRules() Rules {
	return Rules{
		MinAdvance:     24 * time.Hour,
		MaxAdvance:     30 * 24 * time.Hour,
		Buffer:         15 * time.Minute,
		SlotStep:       15 * time.Minute,
		MinDuration:    15 * time.Minute,
		MaxDuration:    480 * time.Minute,
		Location:       time.UTC,
		LookaheadDays:  1,
		MaxSuggestions: 6,
	}
}

// normalized fills zero fields with defaults so a partially populated
// Rules value behaves sensibly.
func (r Rules) normalized() Rules {
	d := DefaultRules()
	if r.MinAdvance <= 0 {
		r.MinAdvance = d.MinAdvance
	}
	if r.MaxAdvance <= 0 {
		r.MaxAdvance = d.MaxAdvance
	}
	if r.Buffer < 0 {
		r.Buffer = d.Buffer
	}
	if r.SlotStep <= 0 {
		r.SlotStep = d.SlotStep
	}
	if r.MinDuration <= 0 {
		r.MinDuration = d.MinDuration
	}
	if r.MaxDuration <= 0 {
		r.MaxDuration = d.MaxDuration
	}
	if r.Location == nil {
		r.Location = d.Location
	}
	if r.LookaheadDays < 0 {
		r.LookaheadDays = d.LookaheadDays
	}
	if r.MaxSuggestions <= 0 {
		r.MaxSuggestions = d.MaxSuggestions
	}
	return r
}

// Clock abstracts wall-clock time so advance-notice math is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

type Engine struct {
	store  Store
	tx     Transactor
	clock  Clock
	rules  Rules
	logger *slog.Logger
}

func New(store Store, tx Transactor, clock Clock, rules Rules, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		store:  store,
		tx:     tx,
		clock:  clock,
		rules:  rules.normalized(),
		logger: logger,
	}
}

func (e *Engine) Rules() Rules { return e.rules }
