// Package registry holds the in-memory map of the latest known state
// per MAX!/Moritz device. It is the only place in the protocol
// engine's domain that requires a mutex: every other worker owns its
// state exclusively.
package registry

import (
	"sync"
	"time"

	"github.com/moritzcube/cubed/internal/codec"
)

// DeviceSnapshot is the most recently observed state for one device.
// Fields are overwritten wholesale on each update that carries a
// given field; there is no history here, by design — a collaborator
// that wants history subscribes to the event bus and persists it
// itself.
type DeviceSnapshot struct {
	DeviceID uint32

	Mode               codec.Mode
	DSTSetting         bool
	LANGateway         bool
	IsLocked           bool
	RFError            bool
	BatteryLow         bool
	ValvePosition      uint8
	DesiredTemperature float64

	// MeasuredTemperature is nil until a ThermostatState or status-
	// bearing Ack has supplied one.
	MeasuredTemperature *float64

	LastUpdated    time.Time
	SignalStrength uint8
}

// Registry is a mutex-guarded map from 24-bit device id to its latest
// snapshot. The zero value is not usable; construct with New.
type Registry struct {
	mu      sync.Mutex
	devices map[uint32]DeviceSnapshot
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{devices: make(map[uint32]DeviceSnapshot)}
}

// MergeThermostatStatus folds a decoded status into the entry for
// deviceID, creating it if absent. Only the fields present in status
// are copied; MeasuredTemperature is left untouched when status
// carries none, so an Ack without a measured-temperature tail does
// not erase a previously observed reading.
func (r *Registry) MergeThermostatStatus(deviceID uint32, status codec.ThermostatStatus, signalStrength uint8, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.devices[deviceID]
	snap.DeviceID = deviceID
	snap.Mode = status.Mode
	snap.DSTSetting = status.DSTSetting
	snap.LANGateway = status.LANGateway
	snap.IsLocked = status.IsLocked
	snap.RFError = status.RFError
	snap.BatteryLow = status.BatteryLow
	snap.ValvePosition = status.ValvePosition
	snap.DesiredTemperature = status.DesiredTemperature
	if status.MeasuredTemperature != nil {
		measured := *status.MeasuredTemperature
		snap.MeasuredTemperature = &measured
	}
	snap.LastUpdated = now
	snap.SignalStrength = signalStrength

	r.devices[deviceID] = snap
}

// Snapshot returns a copy of one device's latest state. ok is false
// if the device has never been observed.
func (r *Registry) Snapshot(deviceID uint32) (DeviceSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.devices[deviceID]
	return snap, ok
}

// All returns a copy of the whole registry, safe for the caller to
// range over without holding any lock.
func (r *Registry) All() map[uint32]DeviceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uint32]DeviceSnapshot, len(r.devices))
	for id, snap := range r.devices {
		out[id] = snap
	}
	return out
}
