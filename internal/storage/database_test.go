package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cubed.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertDeviceInsertsThenUpdates(t *testing.T) {
	db := openTestDB(t)

	first := &Device{ID: 0x0B3554, Serial: "KEQ0992476", Firmware: "V1.0", Name: "", DeviceType: 1, Paired: true, FirstSeen: time.Now()}
	if err := db.UpsertDevice(first); err != nil {
		t.Fatalf("UpsertDevice insert: %v", err)
	}

	got, err := db.GetDevice(0x0B3554)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Serial != "KEQ0992476" || !got.Paired {
		t.Errorf("got = %+v", got)
	}

	second := &Device{ID: 0x0B3554, Paired: false, FirstSeen: time.Now()}
	if err := db.UpsertDevice(second); err != nil {
		t.Fatalf("UpsertDevice update: %v", err)
	}

	got, err = db.GetDevice(0x0B3554)
	if err != nil {
		t.Fatalf("GetDevice after update: %v", err)
	}
	if got.Serial != "KEQ0992476" {
		t.Errorf("Serial should survive an update with an empty value, got %q", got.Serial)
	}
	if got.Paired {
		t.Error("Paired should be overwritten to false")
	}
}

func TestGetAllDevices(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []uint32{1, 2, 3} {
		if err := db.UpsertDevice(&Device{ID: id, FirstSeen: time.Now()}); err != nil {
			t.Fatalf("UpsertDevice(%d): %v", id, err)
		}
	}

	devices, err := db.GetAllDevices()
	if err != nil {
		t.Fatalf("GetAllDevices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("len(devices) = %d, want 3", len(devices))
	}
}

func TestInsertAndGetStateHistory(t *testing.T) {
	db := openTestDB(t)

	measured := 20.2
	for i := 0; i < 3; i++ {
		r := &StateRecord{
			DeviceID:           0x8FFE9,
			Timestamp:          time.Now().Add(time.Duration(i) * time.Minute),
			Mode:               "manual",
			DesiredTemperature: 16.0,
			MeasuredTemperature: &measured,
			ValvePosition:      0,
			SignalStrength:     200,
		}
		if _, err := db.InsertStateRecord(r); err != nil {
			t.Fatalf("InsertStateRecord: %v", err)
		}
	}

	history, err := db.GetStateHistory(0x8FFE9, 2)
	if err != nil {
		t.Fatalf("GetStateHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2 (limit respected)", len(history))
	}
	if history[0].MeasuredTemperature == nil || *history[0].MeasuredTemperature != 20.2 {
		t.Errorf("MeasuredTemperature = %v, want 20.2", history[0].MeasuredTemperature)
	}
}
