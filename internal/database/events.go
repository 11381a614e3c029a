package database

import (
	"context"
	"fmt"
	"time"

	"matchwell/internal/models"
)

func (db *DB) InsertFunnelEvent(ctx context.Context, ev *models.FunnelEvent) error {
	query := `INSERT INTO funnel_events (session_id, type, utm_source, utm_campaign, payload, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if !ev.CreatedAt.IsZero() {
		now = ev.CreatedAt
	}
	result, err := db.ExecContext(ctx, query,
		ev.SessionID,
		ev.Type,
		ev.UTMSource,
		ev.UTMCampaign,
		ev.Payload,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert funnel event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	ev.CreatedAt = now
	return nil
}

// GetFunnelEvents returns the period's events ordered by session and time, the
// shape the stats aggregation wants.
func (db *DB) GetFunnelEvents(ctx context.Context, startDate, endDate time.Time) ([]*models.FunnelEvent, error) {
	query := `SELECT id, session_id, type, utm_source, utm_campaign, payload, created_at
              FROM funnel_events
              WHERE created_at >= ? AND created_at < ?
              ORDER BY session_id, created_at`
	rows, err := db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get funnel events: %w", err)
	}
	defer rows.Close()

	var events []*models.FunnelEvent
	for rows.Next() {
		var ev models.FunnelEvent
		err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Type, &ev.UTMSource, &ev.UTMCampaign, &ev.Payload, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
