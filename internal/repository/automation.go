package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/foxzi/ofertabot/internal/models"
	"github.com/google/uuid"
)

// ErrVersionConflict is returned when the rotation state was changed by
// someone else between read and write
var ErrVersionConflict = errors.New("automation config was modified concurrently")

type AutomationRepository struct {
	db *sql.DB
}

func NewAutomationRepository(db *sql.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

const automationColumns = `id, user_id, is_active, days, start_hour, end_hour, interval_minutes,
	shuffled_product_ids, last_shuffle_index, last_sent_at, version, updated_at`

// Get returns the user's automation config, or nil if none is stored
func (r *AutomationRepository) Get(ctx context.Context, userID string) (*models.AutomationConfig, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+automationColumns+" FROM automation_configs WHERE user_id = ?", userID)

	cfg, err := scanAutomation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetOrDefault returns the stored config or the defaults for a new user
func (r *AutomationRepository) GetOrDefault(ctx context.Context, userID string) (*models.AutomationConfig, error) {
	cfg, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return models.DefaultAutomationConfig(userID), nil
	}
	return cfg, nil
}

// ListUserIDs returns the ids of every user with a stored config. Configs
// are loaded one by one with Get so a corrupt row only affects its owner.
func (r *AutomationRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM automation_configs ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveSettings upserts the user-editable schedule fields.
// Rotation state and version are left untouched.
func (r *AutomationRepository) SaveSettings(ctx context.Context, cfg *models.AutomationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	days, err := json.Marshal(cfg.Days)
	if err != nil {
		return fmt.Errorf("marshal days: %w", err)
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	cfg.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automation_configs (id, user_id, is_active, days, start_hour, end_hour, interval_minutes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			is_active = excluded.is_active,
			days = excluded.days,
			start_hour = excluded.start_hour,
			end_hour = excluded.end_hour,
			interval_minutes = excluded.interval_minutes,
			updated_at = excluded.updated_at`,
		cfg.ID, cfg.UserID, cfg.IsActive, string(days), cfg.StartHour.String(), cfg.EndHour.String(), cfg.IntervalMinutes, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation settings: %w", err)
	}
	return nil
}

// SaveRotation persists the shuffle order, cursor and last send time using
// compare-and-swap on version. On success cfg.Version is incremented.
func (r *AutomationRepository) SaveRotation(ctx context.Context, cfg *models.AutomationConfig) error {
	ids := cfg.ShuffledProductIDs
	if ids == nil {
		ids = []string{}
	}
	shuffled, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal shuffled ids: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE automation_configs
		SET shuffled_product_ids = ?, last_shuffle_index = ?, last_sent_at = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`,
		string(shuffled), cfg.LastShuffleIndex, cfg.LastSentAt, now, cfg.UserID, cfg.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save rotation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	cfg.Version++
	cfg.UpdatedAt = now
	return nil
}

func scanAutomation(s rowScanner) (*models.AutomationConfig, error) {
	cfg := &models.AutomationConfig{}
	var days, shuffled, start, end string
	var lastSentAt sql.NullTime

	err := s.Scan(&cfg.ID, &cfg.UserID, &cfg.IsActive, &days, &start, &end, &cfg.IntervalMinutes,
		&shuffled, &cfg.LastShuffleIndex, &lastSentAt, &cfg.Version, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(days), &cfg.Days); err != nil {
		return nil, fmt.Errorf("parse days for user %s: %w", cfg.UserID, err)
	}
	if err := json.Unmarshal([]byte(shuffled), &cfg.ShuffledProductIDs); err != nil {
		return nil, fmt.Errorf("parse shuffled ids for user %s: %w", cfg.UserID, err)
	}
	if cfg.StartHour, err = models.ParseClock(start); err != nil {
		return nil, fmt.Errorf("parse start hour for user %s: %w", cfg.UserID, err)
	}
	if cfg.EndHour, err = models.ParseClock(end); err != nil {
		return nil, fmt.Errorf("parse end hour for user %s: %w", cfg.UserID, err)
	}
	if lastSentAt.Valid {
		t := lastSentAt.Time
		cfg.LastSentAt = &t
	}

	return cfg, nil
}
