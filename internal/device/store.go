package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store defines the interface for durable device persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// The Registry is the only writer; it always persists a full record
// before updating its in-memory cache.
type Store interface {
	// GetByID retrieves a device by its identity.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByStatus retrieves all devices with the given status.
	ListByStatus(ctx context.Context, status Status) ([]Device, error)

	// Save inserts or replaces the full record for a device.
	Save(ctx context.Context, device *Device) error

	// Delete removes a device by identity.
	// Returns ErrNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
// The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const deviceColumns = `id, name, status, first_seen, last_connection,
	last_status_change, last_seen, connection_count, metadata,
	created_at, updated_at`

// GetByID retrieves a device by its identity.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by identity.
func (s *SQLiteStore) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY id`
	return s.queryDevices(ctx, query)
}

// ListByStatus retrieves all devices with the given status.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE status = ? ORDER BY id`
	return s.queryDevices(ctx, query, string(status))
}

// Save inserts or replaces the full record for a device.
func (s *SQLiteStore) Save(ctx context.Context, device *Device) error {
	var metadataJSON sql.NullString
	if device.Metadata != nil {
		b, err := json.Marshal(device.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO devices (
			id, name, status, first_seen, last_connection,
			last_status_change, last_seen, connection_count, metadata,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			first_seen = excluded.first_seen,
			last_connection = excluded.last_connection,
			last_status_change = excluded.last_status_change,
			last_seen = excluded.last_seen,
			connection_count = excluded.connection_count,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		string(device.Status),
		device.FirstSeen.UTC().Format(time.RFC3339Nano),
		device.LastConnection.UTC().Format(time.RFC3339Nano),
		device.LastStatusChange.UTC().Format(time.RFC3339Nano),
		device.LastSeen.UTC().Format(time.RFC3339Nano),
		device.ConnectionCount,
		metadataJSON,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}

	return nil
}

// Delete removes a device by identity.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// queryDevices runs a multi-row device query and scans all results.
func (s *SQLiteStore) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor cleanup

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var (
		d                Device
		status           string
		firstSeen        string
		lastConnection   string
		lastStatusChange string
		lastSeen         string
		metadata         sql.NullString
		createdAt        string
		updatedAt        string
	)

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&status,
		&firstSeen,
		&lastConnection,
		&lastStatusChange,
		&lastSeen,
		&d.ConnectionCount,
		&metadata,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)

	if d.FirstSeen, err = parseTimestamp(firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if d.LastConnection, err = parseTimestamp(lastConnection); err != nil {
		return nil, fmt.Errorf("parsing last_connection: %w", err)
	}
	if d.LastStatusChange, err = parseTimestamp(lastStatusChange); err != nil {
		return nil, fmt.Errorf("parsing last_status_change: %w", err)
	}
	if d.LastSeen, err = parseTimestamp(lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}

	return &d, nil
}

// parseTimestamp parses a stored RFC3339 timestamp.
func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
