// Package storage provides SQLite-backed persistence for the device
// roster and per-device state history. The protocol core never
// imports this package directly; it is a collaborator that consumes
// the engine's event bus and registry contract from the outside, the
// way the HTTP surface would.
package storage

import "time"

// Device is one entry in the paired-device roster.
type Device struct {
	ID         uint32    `json:"id"` // 24-bit MAX!/Moritz device address
	Serial     string    `json:"serial"`
	Firmware   string    `json:"firmware"`
	Name       string    `json:"name"`
	DeviceType uint8     `json:"device_type"`
	Paired     bool      `json:"paired"`
	FirstSeen  time.Time `json:"first_seen"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StateRecord is one append-only row in the state history: a single
// observed snapshot for a device at a point in time.
type StateRecord struct {
	ID                  int64     `json:"id"`
	DeviceID            uint32    `json:"device_id"`
	Timestamp           time.Time `json:"timestamp"`
	Mode                string    `json:"mode"`
	DesiredTemperature  float64   `json:"desired_temperature"`
	MeasuredTemperature *float64  `json:"measured_temperature,omitempty"`
	ValvePosition       uint8     `json:"valve_position"`
	SignalStrength      uint8     `json:"signal_strength"`
	IsLocked            bool      `json:"is_locked"`
	RFError             bool      `json:"rf_error"`
	BatteryLow          bool      `json:"battery_low"`
}
