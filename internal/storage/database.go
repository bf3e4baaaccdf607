package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection holding the device roster
// and state history. Nothing in the protocol core talks to this
// type; it exists for the collaborator that subscribes to the event
// bus and writes down what it sees.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the SQLite database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY,
		serial TEXT,
		firmware TEXT,
		name TEXT NOT NULL DEFAULT '',
		device_type INTEGER NOT NULL DEFAULT 0,
		paired INTEGER NOT NULL DEFAULT 0,
		first_seen DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		mode TEXT NOT NULL,
		desired_temperature REAL NOT NULL,
		measured_temperature REAL,
		valve_position INTEGER NOT NULL,
		signal_strength INTEGER NOT NULL,
		is_locked INTEGER NOT NULL DEFAULT 0,
		rf_error INTEGER NOT NULL DEFAULT 0,
		battery_low INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (device_id) REFERENCES devices(id)
	);
	CREATE INDEX IF NOT EXISTS idx_state_history_device ON state_history(device_id);
	CREATE INDEX IF NOT EXISTS idx_state_history_timestamp ON state_history(timestamp);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// UpsertDevice inserts a new roster entry or updates the mutable
// fields of an existing one, keyed by device id.
func (db *DB) UpsertDevice(d *Device) error {
	query := `
		INSERT INTO devices (id, serial, firmware, name, device_type, paired, first_seen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			serial = COALESCE(NULLIF(excluded.serial, ''), serial),
			firmware = COALESCE(NULLIF(excluded.firmware, ''), firmware),
			paired = excluded.paired,
			updated_at = excluded.updated_at
	`
	_, err := db.conn.Exec(query, d.ID, d.Serial, d.Firmware, d.Name, d.DeviceType,
		d.Paired, d.FirstSeen, time.Now())
	return err
}

// GetDevice retrieves a roster entry by device id.
func (db *DB) GetDevice(id uint32) (*Device, error) {
	query := `SELECT id, serial, firmware, name, device_type, paired, first_seen, updated_at
		FROM devices WHERE id = ?`

	d := &Device{}
	err := db.conn.QueryRow(query, id).Scan(&d.ID, &d.Serial, &d.Firmware, &d.Name,
		&d.DeviceType, &d.Paired, &d.FirstSeen, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetAllDevices retrieves the full roster.
func (db *DB) GetAllDevices() ([]*Device, error) {
	rows, err := db.conn.Query(`SELECT id, serial, firmware, name, device_type, paired, first_seen, updated_at FROM devices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d := &Device{}
		if err := rows.Scan(&d.ID, &d.Serial, &d.Firmware, &d.Name, &d.DeviceType,
			&d.Paired, &d.FirstSeen, &d.UpdatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// InsertStateRecord appends one row to the state history. History is
// append-only: the core never updates or deletes a prior record.
func (db *DB) InsertStateRecord(r *StateRecord) (int64, error) {
	query := `
		INSERT INTO state_history
			(device_id, timestamp, mode, desired_temperature, measured_temperature,
			 valve_position, signal_strength, is_locked, rf_error, battery_low)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.conn.Exec(query, r.DeviceID, r.Timestamp, r.Mode, r.DesiredTemperature,
		r.MeasuredTemperature, r.ValvePosition, r.SignalStrength, r.IsLocked, r.RFError, r.BatteryLow)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetStateHistory returns the most recent limit state records for a
// device, most recent first.
func (db *DB) GetStateHistory(deviceID uint32, limit int) ([]*StateRecord, error) {
	query := `
		SELECT id, device_id, timestamp, mode, desired_temperature, measured_temperature,
			valve_position, signal_strength, is_locked, rf_error, battery_low
		FROM state_history
		WHERE device_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := db.conn.Query(query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*StateRecord
	for rows.Next() {
		r := &StateRecord{}
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Timestamp, &r.Mode, &r.DesiredTemperature,
			&r.MeasuredTemperature, &r.ValvePosition, &r.SignalStrength, &r.IsLocked, &r.RFError, &r.BatteryLow); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
