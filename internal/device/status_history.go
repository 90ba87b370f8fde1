package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/meshsim/internal/message"
)

// Status history source values.
const (
	StatusSourceEndpoint = "endpoint" // Status or ID message from the physical device
	StatusSourceAPI      = "api"
	StatusSourceReplace  = "replace" // Snapshot carried over by Replace
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// StatusHistoryEntry is one recorded status snapshot.
type StatusHistoryEntry struct {
	ID        int64          `json:"id"`
	DeviceID  int            `json:"device_id"`
	Status    message.Status `json:"status"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
}

// StatusHistoryRepository stores and retrieves device status snapshots.
//
// Implementations must be thread-safe and use UTC timestamps.
type StatusHistoryRepository interface {
	// RecordStatus stores a snapshot of status for the device.
	RecordStatus(ctx context.Context, deviceID int, status message.Status, source string) error

	// GetHistory returns up to limit snapshots for the device, newest first.
	GetHistory(ctx context.Context, deviceID int, limit int) ([]StatusHistoryEntry, error)
}

// SQLiteStatusHistoryRepository implements StatusHistoryRepository on the
// status_history table. Snapshots are stored as JSON.
type SQLiteStatusHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStatusHistoryRepository creates a repository backed by db.
func NewSQLiteStatusHistoryRepository(db *sql.DB) *SQLiteStatusHistoryRepository {
	return &SQLiteStatusHistoryRepository{db: db}
}

// RecordStatus inserts a status snapshot. An empty source defaults to
// StatusSourceEndpoint.
func (r *SQLiteStatusHistoryRepository) RecordStatus(ctx context.Context, deviceID int, status message.Status, source string) error {
	if deviceID < 0 {
		return fmt.Errorf("%w: negative id %d", ErrInvalidDevice, deviceID)
	}
	if source == "" {
		source = StatusSourceEndpoint
	}
	if status == nil {
		status = message.Status{}
	}

	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO status_history (device_id, status, source) VALUES (?, ?, ?)",
		deviceID,
		string(statusJSON),
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

// GetHistory returns recent snapshots for a device, newest first.
// limit defaults to 50 and is capped at 200.
func (r *SQLiteStatusHistoryRepository) GetHistory(ctx context.Context, deviceID int, limit int) ([]StatusHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, status, source, created_at
		 FROM status_history
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]StatusHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StatusHistoryEntry
		var statusJSON, createdAt string

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &statusJSON, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}
		if err := json.Unmarshal([]byte(statusJSON), &entry.Status); err != nil {
			return nil, fmt.Errorf("unmarshalling status: %w", err)
		}
		entry.CreatedAt, err = parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes snapshots older than olderThan and returns the
// number of rows removed.
func (r *SQLiteStatusHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, "DELETE FROM status_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting status history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return ts, nil
}
