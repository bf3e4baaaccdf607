package registry

import (
	"testing"
	"time"

	"github.com/moritzcube/cubed/internal/codec"
)

func TestMergeThermostatStatusCreatesEntry(t *testing.T) {
	r := New()
	now := time.Now()
	measured := 20.2
	status := codec.ThermostatStatus{
		Mode:                codec.ModeManual,
		ValvePosition:       0,
		DesiredTemperature:  16.0,
		MeasuredTemperature: &measured,
	}

	r.MergeThermostatStatus(0x8FFE9, status, 200, now)

	snap, ok := r.Snapshot(0x8FFE9)
	if !ok {
		t.Fatal("expected snapshot to exist")
	}
	if snap.DesiredTemperature != 16.0 {
		t.Errorf("DesiredTemperature = %v, want 16.0", snap.DesiredTemperature)
	}
	if snap.MeasuredTemperature == nil || *snap.MeasuredTemperature != 20.2 {
		t.Errorf("MeasuredTemperature = %v, want 20.2", snap.MeasuredTemperature)
	}
	if !snap.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", snap.LastUpdated, now)
	}
}

func TestMergeThermostatStatusPreservesMeasuredWhenAbsent(t *testing.T) {
	r := New()
	measured := 21.5
	r.MergeThermostatStatus(1, codec.ThermostatStatus{DesiredTemperature: 20, MeasuredTemperature: &measured}, 100, time.Now())

	// A subsequent update without a measured reading (e.g. an Ack
	// whose tail has no temperature) must not erase the prior one.
	r.MergeThermostatStatus(1, codec.ThermostatStatus{DesiredTemperature: 19.5}, 100, time.Now())

	snap, _ := r.Snapshot(1)
	if snap.MeasuredTemperature == nil || *snap.MeasuredTemperature != 21.5 {
		t.Errorf("MeasuredTemperature = %v, want preserved 21.5", snap.MeasuredTemperature)
	}
	if snap.DesiredTemperature != 19.5 {
		t.Errorf("DesiredTemperature = %v, want updated to 19.5", snap.DesiredTemperature)
	}
}

func TestSnapshotMissingDevice(t *testing.T) {
	r := New()
	if _, ok := r.Snapshot(0xDEAD); ok {
		t.Error("expected ok=false for unknown device")
	}
}

func TestAllReturnsIndependentCopy(t *testing.T) {
	r := New()
	r.MergeThermostatStatus(1, codec.ThermostatStatus{}, 0, time.Now())

	snapshot := r.All()
	delete(snapshot, 1)

	if _, ok := r.Snapshot(1); !ok {
		t.Error("mutating the returned map must not affect the registry")
	}
}
