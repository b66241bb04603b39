package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foxzi/ofertabot/internal/models"
	"github.com/foxzi/ofertabot/internal/secrets"
)

// IntegrationRepository stores WhatsApp gateway credentials.
// The token is sealed with the configured secrets box.
type IntegrationRepository struct {
	db  *sql.DB
	box *secrets.Box
}

func NewIntegrationRepository(db *sql.DB, box *secrets.Box) *IntegrationRepository {
	if box == nil {
		box, _ = secrets.New(nil)
	}
	return &IntegrationRepository{db: db, box: box}
}

// Get returns the user's messaging credentials, or nil if none are stored
func (r *IntegrationRepository) Get(ctx context.Context, userID string) (*models.MessagingCredentials, error) {
	c := &models.MessagingCredentials{}
	var token, destinations string

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, enabled, COALESCE(instance_id, ''), COALESCE(token, ''), COALESCE(base_url, ''), destinations
		FROM integrations WHERE user_id = ?`, userID,
	).Scan(&c.UserID, &c.Enabled, &c.InstanceID, &token, &c.BaseURL, &destinations)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(destinations), &c.Destinations); err != nil {
		return nil, fmt.Errorf("parse destinations for user %s: %w", userID, err)
	}

	c.Token, err = r.box.Open(token)
	if err != nil {
		return nil, fmt.Errorf("open token for user %s: %w", userID, err)
	}

	return c, nil
}

// Save upserts the user's messaging credentials
func (r *IntegrationRepository) Save(ctx context.Context, c *models.MessagingCredentials) error {
	if len(c.Destinations) > models.MaxDestinations {
		return fmt.Errorf("at most %d destinations are supported", models.MaxDestinations)
	}

	dests := c.Destinations
	if dests == nil {
		dests = []string{}
	}
	destinations, err := json.Marshal(dests)
	if err != nil {
		return fmt.Errorf("marshal destinations: %w", err)
	}

	token, err := r.box.Seal(c.Token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO integrations (user_id, enabled, instance_id, token, base_url, destinations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			enabled = excluded.enabled,
			instance_id = excluded.instance_id,
			token = excluded.token,
			base_url = excluded.base_url,
			destinations = excluded.destinations,
			updated_at = excluded.updated_at`,
		c.UserID, c.Enabled, c.InstanceID, token, c.BaseURL, string(destinations), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}
	return nil
}
