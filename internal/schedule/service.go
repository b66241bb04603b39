package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/foxzi/ofertabot/internal/metrics"
	"github.com/foxzi/ofertabot/internal/models"
)

var (
	// ErrSlotTaken is returned when an entry already exists at the requested instant
	ErrSlotTaken = errors.New("a send is already scheduled at this time")
	// ErrInvalidTime is returned for a missing or past time, or an empty time list
	ErrInvalidTime = errors.New("invalid schedule time")
	// ErrInvalidFrequency is returned for a frequency other than once, daily or weekly
	ErrInvalidFrequency = errors.New("invalid frequency")
	// ErrProductNotFound is returned when the product does not exist or belongs to another user
	ErrProductNotFound = errors.New("product not found")
)

// EntryStore is the schedule log
type EntryStore interface {
	Append(ctx context.Context, e *models.ScheduleEntry) (string, error)
	AppendMany(ctx context.Context, entries []models.ScheduleEntry) error
	ListByUser(ctx context.Context, userID string) ([]models.ScheduleEntry, error)
	UpdateTimestamp(ctx context.Context, id string, t time.Time) error
	DeleteMany(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProductLookup resolves batch targets
type ProductLookup interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	ListActive(ctx context.Context, userID string) ([]models.Product, error)
}

// Service is the manual scheduling entry point
type Service struct {
	entries  EntryStore
	products ProductLookup
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a schedule service. loc is the civil timezone used for
// start dates and times of day; nil means UTC.
func NewService(entries EntryStore, products ProductLookup, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		entries:  entries,
		products: products,
		loc:      loc,
		logger:   logger.With("component", "schedule"),
		now:      time.Now,
	}
}

// Location returns the service's civil timezone
func (s *Service) Location() *time.Location {
	return s.loc
}

// List returns the user's entries, newest first, after rolling overdue
// recurring entries forward and persisting their new times. Entries whose
// product snapshot is empty are titled "Produto removido".
func (s *Service) List(ctx context.Context, userID string) ([]models.ScheduleEntry, error) {
	entries, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule: %w", err)
	}

	moved := Advance(entries, s.now())
	for _, e := range moved {
		if err := s.entries.UpdateTimestamp(ctx, e.ID, e.ScheduledTime); err != nil {
			return nil, fmt.Errorf("failed to advance entry %s: %w", e.ID, err)
		}
	}
	if len(moved) > 0 {
		metrics.AddScheduleAdvanced(len(moved))
		s.logger.Debug("recurring entries advanced", "user_id", userID, "count", len(moved))
	}

	for i := range entries {
		if entries[i].ProductTitle == "" {
			entries[i].ProductTitle = models.RemovedProductTitle
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ScheduledTime.After(entries[j].ScheduledTime)
	})
	return entries, nil
}

// Batch allocates one slot per target product starting on startDate, using
// times as the candidate times of day. Slots that are already past are
// skipped. Entries always run once.
func (s *Service) Batch(ctx context.Context, userID string, target models.Target, startDate time.Time, times []models.Clock) (*Result, error) {
	if len(normalizeTimes(times)) == 0 {
		return nil, fmt.Errorf("%w: at least one time of day is required", ErrInvalidTime)
	}
	if startDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalidTime)
	}

	products, err := s.resolve(ctx, userID, target)
	if err != nil {
		return nil, err
	}

	existing, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing schedule: %w", err)
	}
	occupied := make([]time.Time, len(existing))
	for i, e := range existing {
		occupied[i] = e.ScheduledTime
	}

	res := Allocate(products, startDate, times, occupied, s.now(), s.loc)
	if len(res.Entries) > 0 {
		if err := s.entries.AppendMany(ctx, res.Entries); err != nil {
			return nil, fmt.Errorf("failed to save allocated entries: %w", err)
		}
	}

	metrics.AddSlotsAllocated(len(res.Entries), len(res.Unscheduled))
	if len(res.Unscheduled) > 0 {
		s.logger.Warn("products left unscheduled", "user_id", userID, "count", len(res.Unscheduled))
	}
	s.logger.Info("batch scheduled", "user_id", userID, "entries", len(res.Entries))
	return &res, nil
}

// CreateEntry schedules one product at an exact instant
func (s *Service) CreateEntry(ctx context.Context, userID, productID string, at time.Time, freq models.Frequency) (*models.ScheduleEntry, error) {
	if freq == "" {
		freq = models.FrequencyOnce
	}
	if !freq.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, freq)
	}
	if at.IsZero() || at.Before(s.now()) {
		return nil, fmt.Errorf("%w: time must be in the future", ErrInvalidTime)
	}

	p, err := s.product(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	existing, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing schedule: %w", err)
	}
	for _, e := range existing {
		if e.ScheduledTime.Equal(at) {
			return nil, ErrSlotTaken
		}
	}

	entry := newEntry(*p, at, freq)
	entry.UserID = userID
	if _, err := s.entries.Append(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}
	s.logger.Info("entry scheduled", "user_id", userID, "product_id", p.ID, "at", entry.ScheduledTime, "frequency", freq)
	return &entry, nil
}

// Delete removes the user's entries with the given ids
func (s *Service) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	n, err := s.entries.DeleteMany(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Info("entries deleted", "user_id", userID, "requested", len(ids), "deleted", n)
	return n, nil
}

// PurgeHistory removes sent and failed entries older than cutoff
func (s *Service) PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.entries.DeleteHistoryBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge schedule history: %w", err)
	}
	return n, nil
}

func (s *Service) resolve(ctx context.Context, userID string, target models.Target) ([]models.Product, error) {
	switch target.Kind {
	case models.TargetAllActive:
		products, err := s.products.ListActive(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list active products: %w", err)
		}
		return products, nil
	case models.TargetSingle:
		p, err := s.product(ctx, userID, target.ProductID)
		if err != nil {
			return nil, err
		}
		return []models.Product{*p}, nil
	default:
		return nil, fmt.Errorf("unknown target kind %d", target.Kind)
	}
}

func (s *Service) product(ctx context.Context, userID, productID string) (*models.Product, error) {
	if productID == "" {
		return nil, ErrProductNotFound
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if p == nil || p.UserID != userID {
		return nil, ErrProductNotFound
	}
	return p, nil
}
