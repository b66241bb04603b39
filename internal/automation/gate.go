// Package automation decides when a user's automated broadcast may run and
// which product it sends next.
package automation

import (
	"time"

	"github.com/foxzi/ofertabot/internal/models"
)

// Reason explains why a send was not permitted
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonInactive      Reason = "inactive"
	ReasonWrongDay      Reason = "wrong_day"
	ReasonOutsideWindow Reason = "outside_window"
	ReasonTooSoon       Reason = "too_soon"
)

// Decision is the outcome of a gate check
type Decision struct {
	Permitted bool
	Reason    Reason
}

// Gate evaluates automation configs against the wall clock of one civil timezone.
// All users of a deployment share the same timezone.
type Gate struct {
	loc *time.Location
}

// NewGate creates a gate for the given location; nil means UTC
func NewGate(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{loc: loc}
}

// Location returns the gate's civil timezone
func (g *Gate) Location() *time.Location {
	return g.loc
}

// Check evaluates cfg at instant now. The checks run in order and the
// first failing one is reported.
func (g *Gate) Check(cfg *models.AutomationConfig, now time.Time) Decision {
	return Check(cfg, now.In(g.loc))
}

// Check evaluates cfg at nowLocal, whose location defines the calendar day
// and time of day.
func Check(cfg *models.AutomationConfig, nowLocal time.Time) Decision {
	if !cfg.IsActive {
		return Decision{Reason: ReasonInactive}
	}

	if !cfg.Days.Contains(nowLocal.Weekday()) {
		return Decision{Reason: ReasonWrongDay}
	}

	if !InWindow(models.ClockOf(nowLocal), cfg.StartHour, cfg.EndHour) {
		return Decision{Reason: ReasonOutsideWindow}
	}

	if cfg.LastSentAt != nil && nowLocal.Sub(*cfg.LastSentAt) < cfg.Interval() {
		return Decision{Reason: ReasonTooSoon}
	}

	return Decision{Permitted: true}
}

// Permitted reports whether cfg allows a send at nowLocal
func Permitted(cfg *models.AutomationConfig, nowLocal time.Time) bool {
	return Check(cfg, nowLocal).Permitted
}

// InWindow reports whether t lies in the half-open window [start, end).
// Windows never wrap past midnight: start >= end is an empty window.
func InWindow(t, start, end models.Clock) bool {
	if start >= end {
		return false
	}
	return t >= start && t < end
}
