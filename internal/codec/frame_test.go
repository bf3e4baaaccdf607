package codec

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeThermostatState(t *testing.T) {
	m, err := Decode("Z0F61046008FFE90000000019002000CA")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.MsgType != MsgThermostatState {
		t.Fatalf("MsgType = %v, want ThermostatState", m.MsgType)
	}
	if m.Counter != 0x61 || m.Flag != 0x04 {
		t.Fatalf("Counter/Flag = %#x/%#x", m.Counter, m.Flag)
	}
	if m.SenderID != 0x8FFE9 || m.ReceiverID != 0 || m.GroupID != 0 {
		t.Fatalf("sender/receiver/group = %#x/%#x/%#x", m.SenderID, m.ReceiverID, m.GroupID)
	}
	if !m.IsBroadcast() {
		t.Fatal("expected broadcast receiver")
	}

	payload, err := m.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload: %v", err)
	}
	status := payload.(ThermostatStatus)

	if status.Mode != ModeManual {
		t.Errorf("Mode = %v, want manual", status.Mode)
	}
	if status.DSTSetting || status.IsLocked || status.RFError || status.BatteryLow {
		t.Errorf("unexpected true flag in %+v", status)
	}
	if !status.LANGateway {
		t.Errorf("LANGateway = false, want true")
	}
	if status.DesiredTemperature != 16.0 {
		t.Errorf("DesiredTemperature = %v, want 16.0", status.DesiredTemperature)
	}
	if status.ValvePosition != 0 {
		t.Errorf("ValvePosition = %v, want 0", status.ValvePosition)
	}
	if status.MeasuredTemperature == nil || *status.MeasuredTemperature != 20.2 {
		t.Errorf("MeasuredTemperature = %v, want 20.2", status.MeasuredTemperature)
	}
}

func TestDecodeSetTemperature(t *testing.T) {
	m, err := Decode("Z0BB900401234560B3554004B")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.MsgType != MsgSetTemperature || m.Counter != 0xB9 {
		t.Fatalf("unexpected header: %+v", m.Header)
	}

	payload, err := m.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload: %v", err)
	}
	info := payload.(SetTemperatureInfo)
	if info.DesiredTemperature != 5.5 {
		t.Errorf("DesiredTemperature = %v, want 5.5", info.DesiredTemperature)
	}
	if info.Mode != ModeManual {
		t.Errorf("Mode = %v, want manual", info.Mode)
	}
}

func TestDecodeAckWithThermostatTail(t *testing.T) {
	m, err := Decode("Z0EB902020B3554123456000119000B")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.MsgType != MsgAck {
		t.Fatalf("MsgType = %v, want Ack", m.MsgType)
	}

	payload, err := m.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload: %v", err)
	}
	info := payload.(AckInfo)
	if info.State != "ok" {
		t.Errorf("State = %q, want ok", info.State)
	}
	if info.ThermostatStatus == nil {
		t.Fatal("expected thermostat status tail")
	}
	if info.ThermostatStatus.DesiredTemperature != 5.5 {
		t.Errorf("DesiredTemperature = %v, want 5.5", info.ThermostatStatus.DesiredTemperature)
	}
	if info.ThermostatStatus.ValvePosition != 0 {
		t.Errorf("ValvePosition = %v, want 0", info.ThermostatStatus.ValvePosition)
	}
	if info.ThermostatStatus.Mode != ModeManual {
		t.Errorf("Mode = %v, want manual", info.ThermostatStatus.Mode)
	}
}

func TestDecodePairPing(t *testing.T) {
	m, err := Decode("Z170004000E016C000000001001A04B455130393932343736")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.MsgType != MsgPairPing {
		t.Fatalf("MsgType = %v, want PairPing", m.MsgType)
	}

	payload, err := m.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload: %v", err)
	}
	info := payload.(PairPingInfo)
	if info.FirmwareVersion != "V1.0" {
		t.Errorf("FirmwareVersion = %q, want V1.0", info.FirmwareVersion)
	}
	if info.DeviceType != DeviceHeatingThermostat {
		t.Errorf("DeviceType = %v, want HeatingThermostat", info.DeviceType)
	}
	if info.SelfTestResult != 0xA0 {
		t.Errorf("SelfTestResult = %#x, want 0xA0", info.SelfTestResult)
	}
	if info.PairMode != "pair" {
		t.Errorf("PairMode = %q, want pair", info.PairMode)
	}
	if info.DeviceSerial != "KEQ0992476" {
		t.Errorf("DeviceSerial = %q, want KEQ0992476", info.DeviceSerial)
	}
}

func TestEncodeSetTemperature(t *testing.T) {
	m := NewMessage(0, 0x123456, 0x0B3554, 0)
	m.Counter = 0xB9

	desired := 5.5
	mode := ModeManual
	if err := EncodeSetTemperature(m, SetTemperatureParams{DesiredTemperature: &desired, Mode: &mode}); err != nil {
		t.Fatalf("EncodeSetTemperature: %v", err)
	}

	got := Encode(m)
	want := "Zs0BB900401234560B3554004B"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeTimeInformation(t *testing.T) {
	m := NewMessage(0, 0x123456, 0x0E016C, 0)
	m.Counter = 0x02

	when := time.Date(2014, time.December, 1, 2, 33, 23, 0, time.UTC)
	EncodeTimeInformation(m, &when)

	got := Encode(m)
	want := "Zs0F0204031234560E016C000E0102E117"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeWithoutPayload(t *testing.T) {
	m := NewMessage(0xF1, 0x123456, 0x0B3554, 0)
	m.Counter = 0xB9

	got := Encode(m)
	want := "Zs0AB900F11234560B355400"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeSetTemperatureMissingParameter(t *testing.T) {
	m := NewMessage(0, 0x123456, 0x0B3554, 0)
	mode := ModeManual
	err := EncodeSetTemperature(m, SetTemperatureParams{Mode: &mode})
	if !errors.Is(err, ErrMissingPayloadParameter) {
		t.Fatalf("err = %v, want ErrMissingPayloadParameter", err)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	lines := []string{
		"Z0F61046008FFE90000000019002000CA",
		"Z0BB900401234560B3554004B",
		"Z0EB902020B3554123456000119000B",
		"Z170004000E016C000000001001A04B455130393932343736",
	}
	for _, line := range lines {
		m, err := Decode(line)
		if err != nil {
			t.Fatalf("Decode(%q): %v", line, err)
		}
		again := "Zs" + line[1:]
		if got := Encode(m); got != again {
			t.Errorf("Encode(Decode(%q)) = %q, want %q", line, got, again)
		}
	}
}

func TestIsBroadcast(t *testing.T) {
	m := NewMessage(MsgPairPing, 0x123456, 0, 0)
	if !m.IsBroadcast() {
		t.Error("receiver_id 0 should be broadcast")
	}
	m.ReceiverID = 0x0B3554
	if m.IsBroadcast() {
		t.Error("nonzero receiver_id should not be broadcast")
	}
}

func TestUnknownMessageType(t *testing.T) {
	_, err := Decode("Z0A00009912345612345600")
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("err = %v, want ErrUnknownMessage", err)
	}
}

func TestLengthMismatch(t *testing.T) {
	_, err := Decode("Z0000")
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}
