package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/foxzi/ofertabot/internal/db"
	"github.com/foxzi/ofertabot/internal/models"
	"github.com/foxzi/ofertabot/internal/repository"
)

type fixture struct {
	svc      *Service
	entries  *repository.ScheduleRepository
	products *repository.ProductRepository
}

var serviceNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		entries:  repository.NewScheduleRepository(database.DB),
		products: repository.NewProductRepository(database.DB),
	}
	f.svc = NewService(f.entries, f.products, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return serviceNow }
	return f
}

func (f *fixture) product(t *testing.T, userID, title string, active bool) *models.Product {
	t.Helper()
	p := &models.Product{UserID: userID, Title: title, Price: 10, Active: active, Platform: models.PlatformShopee}
	if err := f.products.Create(context.Background(), p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestService_BatchAllActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "u1", "Fone", true)
	f.product(t, "u1", "Mouse", true)
	f.product(t, "u1", "Inativo", false)
	f.product(t, "u2", "Alheio", true)

	// a pre-existing entry occupies the first slot
	_, err := f.entries.Append(ctx, &models.ScheduleEntry{
		UserID: "u1", ProductTitle: "Antigo", ScheduledTime: time.Date(2024, 5, 11, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Batch(ctx, "u1", models.AllActiveProducts(), time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), clocks("10:00", "14:00"))
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 active products", len(res.Entries))
	}
	if got := res.Entries[0].ScheduledTime; !got.Equal(time.Date(2024, 5, 11, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("first entry at %v, want D 14:00", got)
	}
	if got := res.Entries[1].ScheduledTime; !got.Equal(time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("second entry at %v, want D+1 10:00", got)
	}

	stored, err := f.entries.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Errorf("stored entries = %d, want 3", len(stored))
	}
}

func TestService_BatchSingleProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "u1", "Fone", true)
	other := f.product(t, "u2", "Alheio", true)

	res, err := f.svc.Batch(ctx, "u1", models.SingleProduct(p.ID), serviceNow, clocks("18:00"))
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].ProductID != p.ID {
		t.Fatalf("entries = %+v", res.Entries)
	}

	if _, err := f.svc.Batch(ctx, "u1", models.SingleProduct(other.ID), serviceNow, clocks("18:00")); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("other user's product: err = %v, want ErrProductNotFound", err)
	}
	if _, err := f.svc.Batch(ctx, "u1", models.SingleProduct(p.ID), serviceNow, nil); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("no times: err = %v, want ErrInvalidTime", err)
	}
}

func TestService_BatchNeverBooksThePast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "u1", "Fone", true)
	f.product(t, "u1", "Mouse", true)

	res, err := f.svc.Batch(ctx, "u1", models.AllActiveProducts(), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), clocks("10:00", "14:00"))
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	for _, e := range res.Entries {
		if !e.ScheduledTime.After(serviceNow) {
			t.Errorf("entry booked at %v, not after %v", e.ScheduledTime, serviceNow)
		}
	}
	if got := res.Entries[0].ScheduledTime; !got.Equal(time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("first entry at %v, want today 14:00", got)
	}
}

func TestService_CreateEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "u1", "Fone", true)
	when := serviceNow.Add(2 * time.Hour)

	e, err := f.svc.CreateEntry(ctx, "u1", p.ID, when, models.FrequencyWeekly)
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if e.ID == "" || e.Frequency != models.FrequencyWeekly || e.Status != models.StatusPending {
		t.Errorf("entry = %+v", e)
	}

	tests := []struct {
		name    string
		product string
		at      time.Time
		freq    models.Frequency
		wantErr error
	}{
		{"slot taken", p.ID, when, models.FrequencyOnce, ErrSlotTaken},
		{"past", p.ID, serviceNow.Add(-time.Minute), models.FrequencyOnce, ErrInvalidTime},
		{"bad frequency", p.ID, when.Add(time.Hour), "monthly", ErrInvalidFrequency},
		{"unknown product", "nope", when.Add(time.Hour), models.FrequencyOnce, ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateEntry(ctx, "u1", tt.product, tt.at, tt.freq)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_ListAdvancesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overdue := serviceNow.Add(-50 * time.Hour)
	id, err := f.entries.Append(ctx, &models.ScheduleEntry{
		UserID: "u1", ProductID: "gone", ScheduledTime: overdue, Frequency: models.FrequencyDaily,
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := f.svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.ID != id {
		t.Errorf("id changed from %s to %s", id, got.ID)
	}
	want := overdue.Add(72 * time.Hour)
	if !got.ScheduledTime.Equal(want) {
		t.Errorf("scheduled = %v, want %v", got.ScheduledTime, want)
	}
	if got.ProductTitle != models.RemovedProductTitle {
		t.Errorf("title = %q, want %q", got.ProductTitle, models.RemovedProductTitle)
	}

	stored, err := f.entries.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !stored[0].ScheduledTime.Equal(want) {
		t.Errorf("persisted time = %v, want %v", stored[0].ScheduledTime, want)
	}
}

func TestService_DeleteAndPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := serviceNow.Add(-40 * 24 * time.Hour)
	keep, _ := f.entries.Append(ctx, &models.ScheduleEntry{UserID: "u1", ScheduledTime: serviceNow.Add(time.Hour)})
	drop, _ := f.entries.Append(ctx, &models.ScheduleEntry{UserID: "u1", ScheduledTime: serviceNow.Add(2 * time.Hour)})
	f.entries.Append(ctx, &models.ScheduleEntry{UserID: "u1", ScheduledTime: old, Status: models.StatusSent})

	n, err := f.svc.Delete(ctx, "u1", []string{drop, "missing"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	purged, err := f.svc.PurgeHistory(ctx, serviceNow.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeHistory() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	left, _ := f.entries.ListByUser(ctx, "u1")
	if len(left) != 1 || left[0].ID != keep {
		t.Errorf("remaining = %+v, want only %s", left, keep)
	}
}
