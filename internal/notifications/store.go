package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/drivenotify/internal/db"
)

const recordColumns = `id, event_type, file_name, file_id, recipients, status,
	success_count, failed_count, created_at, completed_at`

// Store persists notification log records. Each record is created once and
// updated at most once.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Create inserts a pending record with zero counts and returns its id.
func (s *Store) Create(ctx context.Context, rec NewRecord) (string, error) {
	recipients := rec.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	data, err := json.Marshal(recipients)
	if err != nil {
		return "", fmt.Errorf("marshalling recipients: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_logs (id, event_type, file_name, file_id, recipients, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.EventType, rec.FileName, rec.FileID, string(data),
		string(StatusPending), formatTime(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("inserting notification record: %w", err)
	}
	return id, nil
}

// UpdateStatus records the final delivery counts and marks the record
// completed. Only a pending record transitions.
func (s *Store) UpdateStatus(ctx context.Context, id string, successCount, failedCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notification_logs
		SET status = ?, success_count = ?, failed_count = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusCompleted), successCount, failedCount, formatTime(s.now()),
		id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("updating notification %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of notification %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, "SELECT status FROM notification_logs WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking notification %s: %w", id, err)
	}
	return ErrAlreadyCompleted
}

// GetByID retrieves a single record.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM notification_logs WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading notification %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first. A non-positive limit returns every
// record from offset on.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+`
		FROM notification_logs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	result := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notification_logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes records created more than days days ago and
// returns how many were removed.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("days must be non-negative, got %d", days)
	}
	cutoff := s.now().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx, "DELETE FROM notification_logs WHERE created_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purging notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged notifications: %w", err)
	}
	return n, nil
}

// Statistics aggregates counts over the whole log.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{ByEventType: map[string]int{}}
	since := formatTime(s.now().Add(-24 * time.Hour))

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(success_count), 0),
			COALESCE(SUM(failed_count), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM notification_logs`, since).Scan(
		&stats.TotalNotifications, &stats.Pending, &stats.Completed,
		&stats.TotalSent, &stats.TotalFailed, &stats.Last24Hours,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating notifications: %w", err)
	}
	if attempts := stats.TotalSent + stats.TotalFailed; attempts > 0 {
		stats.SuccessRate = float64(stats.TotalSent) / float64(attempts) * 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM notification_logs GROUP BY event_type ORDER BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("grouping notifications by event type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			eventType string
			n         int
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scanning event type count: %w", err)
		}
		stats.ByEventType[eventType] = n
	}
	return stats, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec            Record
		status         string
		recipientsJSON string
		createdAt      string
		completedAt    sql.NullString
	)

	err := sc.Scan(&rec.ID, &rec.EventType, &rec.FileName, &rec.FileID, &recipientsJSON,
		&status, &rec.SuccessCount, &rec.FailedCount, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = Status(status)
	rec.CreatedAt = parseTime(createdAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		rec.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(recipientsJSON), &rec.Recipients); err != nil {
		rec.Recipients = nil
	}
	return &rec, nil
}

// Timestamps are stored as UTC text so that lexical order is time order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
