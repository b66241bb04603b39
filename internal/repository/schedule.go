package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/foxzi/ofertabot/internal/models"
	"github.com/google/uuid"
)

// ScheduleRepository is the schedule log store
type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, user_id, COALESCE(product_id, ''), COALESCE(product_title, ''), COALESCE(product_image, ''),
	scheduled_time, status, platform, frequency, COALESCE(error, ''), created_at`

const insertSchedule = `
	INSERT INTO schedules (id, user_id, product_id, product_title, product_image, scheduled_time, status, platform, frequency, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Append inserts an entry and returns its id
func (r *ScheduleRepository) Append(ctx context.Context, e *models.ScheduleEntry) (string, error) {
	prepareEntry(e, time.Now().UTC())

	_, err := r.db.ExecContext(ctx, insertSchedule, entryArgs(e)...)
	if err != nil {
		return "", fmt.Errorf("failed to append schedule entry: %w", err)
	}
	return e.ID, nil
}

// AppendMany inserts entries in a single transaction
func (r *ScheduleRepository) AppendMany(ctx context.Context, entries []models.ScheduleEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSchedule)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range entries {
		prepareEntry(&entries[i], now)
		if _, err := stmt.ExecContext(ctx, entryArgs(&entries[i])...); err != nil {
			return fmt.Errorf("failed to append schedule entry: %w", err)
		}
	}

	return tx.Commit()
}

// ListByUser returns the user's entries ordered by scheduled time
func (r *ScheduleRepository) ListByUser(ctx context.Context, userID string) ([]models.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE user_id = ? ORDER BY scheduled_time, id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ScheduleEntry{}
	for rows.Next() {
		var e models.ScheduleEntry
		var status, frequency string
		err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.ProductTitle, &e.ProductImage,
			&e.ScheduledTime, &status, &e.Platform, &frequency, &e.Error, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Status = models.ScheduleStatus(status)
		e.Frequency = models.Frequency(frequency)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateTimestamp moves an entry to a new scheduled time in place
func (r *ScheduleRepository) UpdateTimestamp(ctx context.Context, id string, t time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE schedules SET scheduled_time = ? WHERE id = ?", t.UTC(), id)
	return err
}

// DeleteMany deletes the user's entries with the given ids
func (r *ScheduleRepository) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM schedules WHERE user_id = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete schedule entries: %w", err)
	}
	return result.RowsAffected()
}

// CountHistoryBefore counts sent/failed entries scheduled before cutoff
func (r *ScheduleRepository) CountHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM schedules
		WHERE status IN ('sent', 'failed') AND scheduled_time < ?`, cutoff.UTC(),
	).Scan(&count)
	return count, err
}

// DeleteHistoryBefore removes sent/failed entries scheduled before cutoff
func (r *ScheduleRepository) DeleteHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM schedules
		WHERE status IN ('sent', 'failed') AND scheduled_time < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func prepareEntry(e *models.ScheduleEntry, now time.Time) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = models.StatusPending
	}
	if e.Frequency == "" {
		e.Frequency = models.FrequencyOnce
	}
	if e.Platform == "" {
		e.Platform = models.PlatformWhatsApp
	}
	e.ScheduledTime = e.ScheduledTime.UTC()
	e.CreatedAt = now
}

func entryArgs(e *models.ScheduleEntry) []any {
	var productID any
	if e.ProductID != "" {
		productID = e.ProductID
	}
	return []any{e.ID, e.UserID, productID, e.ProductTitle, e.ProductImage, e.ScheduledTime,
		string(e.Status), e.Platform, string(e.Frequency), e.Error, e.CreatedAt}
}
