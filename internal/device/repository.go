package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Single-record mutations are atomic; the lookup pipeline relies on that
// when recording attempt outcomes.
type Repository interface {
	// GetByMAC retrieves a device by its canonical MAC address.
	// Returns ErrNotFound if the device does not exist.
	GetByMAC(ctx context.Context, mac string) (*Device, error)

	// List retrieves all devices ordered by last seen, newest first.
	List(ctx context.Context) ([]Device, error)

	// RecordSeen upserts a device from a DHCP lease event.
	//
	// For a new MAC it creates the record with first/last seen set to now
	// and the name taken from host (if any). For an existing MAC it bumps
	// last seen and fills in the name from host only when no name is stored
	// yet - a user-assigned name is never overwritten by the network.
	//
	// Returns the resulting device and whether it was newly created.
	RecordSeen(ctx context.Context, mac, host string) (*Device, bool, error)

	// UpdateSettings applies a partial update of name and/or notify,
	// creating the record if it does not exist. A nil field is left
	// unchanged; a name of empty/whitespace clears the stored name.
	UpdateSettings(ctx context.Context, mac string, name *string, notify *bool) (*Device, error)

	// SetLookupState upserts the manufacturer lookup fields for a MAC in a
	// single atomic write: label, status, and last-attempt timestamp.
	SetLookupState(ctx context.Context, mac string, manufacturer *string, status LookupStatus, attemptedAt time.Time) error

	// ResetLookup force-transitions one device back to pending with the
	// label and last-attempt timestamp cleared.
	// Returns ErrNotFound if the device does not exist.
	ResetLookup(ctx context.Context, mac string) error

	// ResetFailedLookups resets every device currently in error or unknown
	// status back to pending, clearing labels and attempt timestamps.
	// Returns the number of devices reset.
	ResetFailedLookups(ctx context.Context) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the devices
// table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `mac, name, notify, manufacturer, manufacturer_status,
		manufacturer_last_attempt, first_seen, last_seen`

// GetByMAC retrieves a device by its canonical MAC address.
func (r *SQLiteRepository) GetByMAC(ctx context.Context, mac string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE mac = ?`

	row := r.db.QueryRowContext(ctx, query, mac)
	dev, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by mac: %w", err)
	}
	return dev, nil
}

// List retrieves all devices ordered by last seen, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY last_seen DESC, mac`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *dev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// RecordSeen upserts a device from a DHCP lease event.
func (r *SQLiteRepository) RecordSeen(ctx context.Context, mac, host string) (*Device, bool, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	row := tx.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE mac = ?`, mac)
	existing, err := scanDevice(row)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		dev := &Device{
			MAC:                mac,
			Notify:             false,
			ManufacturerStatus: LookupPending,
			FirstSeen:          now,
			LastSeen:           now,
		}
		if host != "" {
			dev.Name = &host
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO devices (mac, name, notify, manufacturer_status, first_seen, last_seen)
			VALUES (?, ?, 0, ?, ?, ?)`,
			mac,
			nullableString(dev.Name),
			string(LookupPending),
			now.Format(time.RFC3339),
			now.Format(time.RFC3339),
		); err != nil {
			return nil, false, fmt.Errorf("inserting device: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("committing insert: %w", err)
		}
		return dev, true, nil

	case err != nil:
		return nil, false, fmt.Errorf("querying device: %w", err)
	}

	existing.LastSeen = now
	// Name fallback: the network-supplied hostname only fills an empty slot.
	if host != "" && (existing.Name == nil || *existing.Name == "") {
		existing.Name = &host
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE devices SET name = ?, last_seen = ? WHERE mac = ?`,
		nullableString(existing.Name),
		now.Format(time.RFC3339),
		mac,
	); err != nil {
		return nil, false, fmt.Errorf("updating device: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing update: %w", err)
	}
	return existing, false, nil
}

// UpdateSettings applies a partial update of name and/or notify,
// creating the record if it does not exist.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, mac string, name *string, notify *bool) (*Device, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	row := tx.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE mac = ?`, mac)
	dev, err := scanDevice(row)

	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		dev = &Device{
			MAC:                mac,
			ManufacturerStatus: LookupPending,
			FirstSeen:          now,
			LastSeen:           now,
		}
	case err != nil:
		return nil, fmt.Errorf("querying device: %w", err)
	}

	if name != nil {
		trimmed := trimName(*name)
		if trimmed == "" {
			dev.Name = nil
		} else {
			dev.Name = &trimmed
		}
	}
	if notify != nil {
		dev.Notify = *notify
	}

	if created {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO devices (mac, name, notify, manufacturer_status, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?)`,
			mac,
			nullableString(dev.Name),
			boolToInt(dev.Notify),
			string(LookupPending),
			now.Format(time.RFC3339),
			now.Format(time.RFC3339),
		); err != nil {
			return nil, fmt.Errorf("inserting device: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE devices SET name = ?, notify = ? WHERE mac = ?`,
			nullableString(dev.Name),
			boolToInt(dev.Notify),
			mac,
		); err != nil {
			return nil, fmt.Errorf("updating device: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing settings update: %w", err)
	}
	return dev, nil
}

// SetLookupState upserts the manufacturer lookup fields for a MAC in a
// single atomic write.
func (r *SQLiteRepository) SetLookupState(ctx context.Context, mac string, manufacturer *string, status LookupStatus, attemptedAt time.Time) error {
	now := time.Now().UTC()
	attempt := attemptedAt.UTC().Format(time.RFC3339)

	// Upsert so a lookup result survives even if the device row was created
	// by the pipeline rather than an ingest event.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (mac, notify, manufacturer, manufacturer_status, manufacturer_last_attempt, first_seen, last_seen)
		VALUES (?, 0, ?, ?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			manufacturer = excluded.manufacturer,
			manufacturer_status = excluded.manufacturer_status,
			manufacturer_last_attempt = excluded.manufacturer_last_attempt`,
		mac,
		nullableString(manufacturer),
		string(status),
		attempt,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("setting lookup state: %w", err)
	}
	return nil
}

// ResetLookup force-transitions one device back to pending.
func (r *SQLiteRepository) ResetLookup(ctx context.Context, mac string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			manufacturer = NULL,
			manufacturer_status = ?,
			manufacturer_last_attempt = NULL
		WHERE mac = ?`,
		string(LookupPending),
		mac,
	)
	if err != nil {
		return fmt.Errorf("resetting lookup: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetFailedLookups resets every error or unknown device back to pending.
func (r *SQLiteRepository) ResetFailedLookups(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			manufacturer = NULL,
			manufacturer_status = ?,
			manufacturer_last_attempt = NULL
		WHERE manufacturer_status IN (?, ?)`,
		string(LookupPending),
		string(LookupError),
		string(LookupUnknown),
	)
	if err != nil {
		return 0, fmt.Errorf("resetting failed lookups: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a devices row into a Device, validating the stored
// manufacturer status.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var name, manufacturer, lastAttempt sql.NullString
	var notify int
	var status, firstSeen, lastSeen string

	err := scanner.Scan(
		&d.MAC,
		&name,
		&notify,
		&manufacturer,
		&status,
		&lastAttempt,
		&firstSeen,
		&lastSeen,
	)
	if err != nil {
		return nil, err
	}

	d.Notify = notify != 0
	if name.Valid {
		d.Name = &name.String
	}
	if manufacturer.Valid {
		d.Manufacturer = &manufacturer.String
	}

	d.ManufacturerStatus, err = ParseLookupStatus(status)
	if err != nil {
		return nil, err
	}

	if lastAttempt.Valid {
		t, parseErr := time.Parse(time.RFC3339, lastAttempt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing manufacturer_last_attempt: %w", parseErr)
		}
		d.ManufacturerLastAttempt = &t
	}

	d.FirstSeen, err = time.Parse(time.RFC3339, firstSeen)
	if err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	d.LastSeen, err = time.Parse(time.RFC3339, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}

	return &d, nil
}

// maxNameLength caps user-supplied device names at the column width the
// original schema used.
const maxNameLength = 255

// trimName normalises a user-supplied device name.
// Whitespace-only names are treated as empty.
func trimName(s string) string {
	trimmed := strings.TrimSpace(s)
	if runes := []rune(trimmed); len(runes) > maxNameLength {
		trimmed = string(runes[:maxNameLength])
	}
	return trimmed
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
