package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/foxzi/ofertabot/internal/models"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the user's app settings, or nil if none are stored
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*models.AppSettings, error) {
	s := &models.AppSettings{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, COALESCE(sales_template, ''), COALESCE(display_name, '')
		FROM app_settings WHERE user_id = ?`, userID,
	).Scan(&s.UserID, &s.SalesTemplate, &s.DisplayName)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SalesTemplate returns the user's saved template, empty when unset
func (r *SettingsRepository) SalesTemplate(ctx context.Context, userID string) (string, error) {
	s, err := r.Get(ctx, userID)
	if err != nil || s == nil {
		return "", err
	}
	return s.SalesTemplate, nil
}

// Save upserts the user's app settings
func (r *SettingsRepository) Save(ctx context.Context, s *models.AppSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_settings (user_id, sales_template, display_name, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			sales_template = excluded.sales_template,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		s.UserID, s.SalesTemplate, s.DisplayName, time.Now().UTC(),
	)
	return err
}
