package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/foxzi/ofertabot/internal/models"
)

func TestAutomationRepository_GetOrDefault(t *testing.T) {
	repo := NewAutomationRepository(setupTestDB(t))
	ctx := context.Background()

	cfg, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cfg != nil {
		t.Fatal("Get() should return nil when nothing is stored")
	}

	def, err := repo.GetOrDefault(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrDefault() error = %v", err)
	}
	if def.IsActive {
		t.Error("default config should be inactive")
	}
	if def.StartHour != models.DefaultStartHour || def.EndHour != models.DefaultEndHour {
		t.Errorf("default window = %s-%s", def.StartHour, def.EndHour)
	}
	if def.IntervalMinutes != models.DefaultIntervalMinutes {
		t.Errorf("default interval = %d", def.IntervalMinutes)
	}
	if len(def.Days) != 7 {
		t.Errorf("default days = %v, want all seven", def.Days)
	}
}

func TestAutomationRepository_SaveSettings(t *testing.T) {
	repo := NewAutomationRepository(setupTestDB(t))
	ctx := context.Background()

	cfg := models.DefaultAutomationConfig("user-1")
	cfg.IsActive = true
	cfg.Days = models.DaySet{models.Monday, models.Friday}
	cfg.StartHour = models.MustClock("09:30")
	cfg.EndHour = models.MustClock("18:00")
	cfg.IntervalMinutes = 45

	if err := repo.SaveSettings(ctx, cfg); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err := repo.Get(ctx, "user-1")
	if err != nil || got == nil {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if !got.IsActive || got.IntervalMinutes != 45 {
		t.Errorf("Get() = %+v", got)
	}
	if got.StartHour.String() != "09:30" || got.EndHour.String() != "18:00" {
		t.Errorf("window = %s-%s", got.StartHour, got.EndHour)
	}
	if len(got.Days) != 2 || got.Days[0] != models.Monday {
		t.Errorf("days = %v", got.Days)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}

	// editing settings again keeps the rotation version
	got.IsActive = false
	if err := repo.SaveSettings(ctx, got); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	again, _ := repo.Get(ctx, "user-1")
	if again.IsActive || again.Version != 1 {
		t.Errorf("after second save: active=%v version=%d", again.IsActive, again.Version)
	}

	ids, err := repo.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "user-1" {
		t.Errorf("ListUserIDs() = %v, want [user-1]", ids)
	}
}

func TestAutomationRepository_CorruptRowStaysWithItsUser(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAutomationRepository(database)
	ctx := context.Background()

	for _, id := range []string{"bad", "good"} {
		if err := repo.SaveSettings(ctx, models.DefaultAutomationConfig(id)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := database.Exec(`UPDATE automation_configs SET days = 'mon,tue' WHERE user_id = 'bad'`); err != nil {
		t.Fatal(err)
	}

	ids, err := repo.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ListUserIDs() = %v, want both users", ids)
	}

	if _, err := repo.Get(ctx, "bad"); err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("Get(bad) error = %v, want parse error naming the user", err)
	}
	if got, err := repo.Get(ctx, "good"); err != nil || got == nil {
		t.Errorf("Get(good) = %v, %v", got, err)
	}
}

func TestAutomationRepository_SaveSettingsInvalid(t *testing.T) {
	repo := NewAutomationRepository(setupTestDB(t))

	cfg := models.DefaultAutomationConfig("user-1")
	cfg.IntervalMinutes = 0
	if err := repo.SaveSettings(context.Background(), cfg); err == nil {
		t.Error("SaveSettings() should reject a non-positive interval")
	}
}

func TestAutomationRepository_SaveRotation(t *testing.T) {
	repo := NewAutomationRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.SaveSettings(ctx, models.DefaultAutomationConfig("user-1")); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	first, _ := repo.Get(ctx, "user-1")
	stale, _ := repo.Get(ctx, "user-1")

	sentAt := time.Date(2026, 3, 2, 11, 15, 0, 0, time.UTC)
	first.ShuffledProductIDs = []string{"p2", "p1", "p3"}
	first.LastShuffleIndex = 1
	first.LastSentAt = &sentAt

	if err := repo.SaveRotation(ctx, first); err != nil {
		t.Fatalf("SaveRotation() error = %v", err)
	}
	if first.Version != 2 {
		t.Errorf("version after save = %d, want 2", first.Version)
	}

	got, _ := repo.Get(ctx, "user-1")
	if len(got.ShuffledProductIDs) != 3 || got.ShuffledProductIDs[0] != "p2" {
		t.Errorf("shuffled ids = %v", got.ShuffledProductIDs)
	}
	if got.LastShuffleIndex != 1 {
		t.Errorf("cursor = %d, want 1", got.LastShuffleIndex)
	}
	if got.LastSentAt == nil || !got.LastSentAt.Equal(sentAt) {
		t.Errorf("last_sent_at = %v, want %v", got.LastSentAt, sentAt)
	}

	// an overlapping pass that read the old version must not overwrite
	stale.LastShuffleIndex = 2
	if err := repo.SaveRotation(ctx, stale); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("SaveRotation() with stale version error = %v, want ErrVersionConflict", err)
	}
}

func TestAutomationRepository_SaveRotationNoRows(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectExec("UPDATE automation_configs").
		WithArgs(`["p1"]`, 1, sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewAutomationRepository(sqlDB)
	cfg := &models.AutomationConfig{
		UserID:             "user-1",
		ShuffledProductIDs: []string{"p1"},
		LastShuffleIndex:   1,
		Version:            7,
	}

	if err := repo.SaveRotation(context.Background(), cfg); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("SaveRotation() error = %v, want ErrVersionConflict", err)
	}
	if cfg.Version != 7 {
		t.Errorf("version changed on conflict: %d", cfg.Version)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAutomationRepository_SaveRotationExecError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectExec("UPDATE automation_configs").WillReturnError(errors.New("database is locked"))

	repo := NewAutomationRepository(sqlDB)
	err = repo.SaveRotation(context.Background(), &models.AutomationConfig{UserID: "user-1", Version: 1})
	if err == nil || errors.Is(err, ErrVersionConflict) {
		t.Errorf("SaveRotation() error = %v, want a wrapped driver error", err)
	}
}
