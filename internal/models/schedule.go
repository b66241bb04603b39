package models

import "time"

// ScheduleStatus is the lifecycle state of a schedule entry
type ScheduleStatus string

const (
	StatusPending ScheduleStatus = "pending"
	StatusSent    ScheduleStatus = "sent"
	StatusFailed  ScheduleStatus = "failed"
)

// Frequency controls whether a pending entry repeats
type Frequency string

const (
	FrequencyOnce   Frequency = "once"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// Period returns the recurrence period, or zero for one-shot entries
func (f Frequency) Period() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// PlatformWhatsApp is the only delivery channel
const PlatformWhatsApp = "WhatsApp"

// RemovedProductTitle is shown for entries whose product snapshot is empty
const RemovedProductTitle = "Produto removido"

// ScheduleEntry is a row of the schedule log: future manual sends and
// the history of automated ones
type ScheduleEntry struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	ProductID     string         `json:"product_id"`
	ProductTitle  string         `json:"product_title"`
	ProductImage  string         `json:"product_image"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	Status        ScheduleStatus `json:"status"`
	Platform      string         `json:"platform"`
	Frequency     Frequency      `json:"frequency"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Recurring reports whether the entry is a pending daily/weekly send
func (e *ScheduleEntry) Recurring() bool {
	return e.Status == StatusPending && e.Frequency.Period() > 0
}

// TargetKind distinguishes a single product from the whole active catalog
type TargetKind int

const (
	TargetSingle TargetKind = iota
	TargetAllActive
)

// Target selects the products of a batch schedule request.
// It is resolved to concrete products before allocation and never stored.
type Target struct {
	Kind      TargetKind
	ProductID string
}

// SingleProduct targets one product
func SingleProduct(id string) Target {
	return Target{Kind: TargetSingle, ProductID: id}
}

// AllActiveProducts targets every active product of the user
func AllActiveProducts() Target {
	return Target{Kind: TargetAllActive}
}
