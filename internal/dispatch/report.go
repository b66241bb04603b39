package dispatch

import (
	"strings"
	"time"

	"github.com/foxzi/ofertabot/internal/automation"
)

// Status is the reason code of one user's outcome in a pass
type Status string

const (
	StatusSent              Status = "sent"
	StatusFailed            Status = "failed"
	StatusInactive          Status = "skipped:inactive"
	StatusWrongDay          Status = "skipped:wrong_day"
	StatusOutsideWindow     Status = "skipped:outside_window"
	StatusTooSoon           Status = "skipped:too_soon"
	StatusNotConfigured     Status = "skipped:not_configured"
	StatusNoProducts        Status = "skipped:no_products"
	StatusNoEligibleProduct Status = "skipped:no_eligible_product"
	StatusLocked            Status = "skipped:locked"
	StatusError             Status = "error"
)

func skippedBy(r automation.Reason) Status {
	return Status("skipped:" + string(r))
}

// Skipped reports whether no send was attempted
func (s Status) Skipped() bool {
	return strings.HasPrefix(string(s), "skipped:")
}

// Delivery is the result of sending to one destination
type Delivery struct {
	ChatID     string `json:"chat_id"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the gateway accepted the message
func (d Delivery) OK() bool {
	return d.Error == ""
}

// Outcome is what happened for one user
type Outcome struct {
	UserID       string     `json:"user_id"`
	Status       Status     `json:"status"`
	ProductID    string     `json:"product_id,omitempty"`
	ProductTitle string     `json:"product_title,omitempty"`
	Deliveries   []Delivery `json:"deliveries,omitempty"`
	// EntryID is the schedule log entry written for the send
	EntryID string `json:"entry_id,omitempty"`
	// Conflict is set when the rotation save lost to a concurrent update
	Conflict bool   `json:"conflict,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report summarizes one pass
type Report struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Test       bool      `json:"test,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Duration of the pass
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts groups outcomes by status
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}
