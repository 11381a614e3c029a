package database

import (
	"context"
	"fmt"
	"time"

	"matchwell/internal/models"
)

const deliveryColumns = `id, channel, recipient, subject, body, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateDeliveryTask(ctx context.Context, task *models.DeliveryTask) error {
	query := `INSERT INTO delivery_tasks (channel, recipient, subject, body, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.Channel,
		task.Recipient,
		task.Subject,
		task.Body,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingDeliveryTasks(ctx context.Context, limit int) ([]models.DeliveryTask, error) {
	query := `SELECT ` + deliveryColumns + `
              FROM delivery_tasks
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending delivery tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.DeliveryTask
	for rows.Next() {
		var t models.DeliveryTask
		err := rows.Scan(
			&t.ID, &t.Channel, &t.Recipient, &t.Subject, &t.Body, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateDeliveryTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.DeliveryRetry:
		query = `UPDATE delivery_tasks SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.DeliveryCompleted, models.DeliveryFailed:
		query = `UPDATE delivery_tasks SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE delivery_tasks SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update delivery task status: %w", err)
	}
	return nil
}

func (db *DB) GetFailedDeliveryTasks(ctx context.Context) ([]models.DeliveryTask, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_tasks WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed delivery tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.DeliveryTask
	for rows.Next() {
		var t models.DeliveryTask
		err := rows.Scan(
			&t.ID, &t.Channel, &t.Recipient, &t.Subject, &t.Body, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
