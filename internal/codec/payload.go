package codec

import (
	"fmt"
	"time"
)

// ThermostatStatus is the decoded 3-byte status block shared by
// ThermostatState and ok-Acks that carry a status tail.
type ThermostatStatus struct {
	Mode       Mode
	DSTSetting bool
	LANGateway bool

	// IsLocked, RFError and BatteryLow mirror the source's bit
	// extraction: it right-shifts an 8-bit status_lo by 9, which is
	// always zero. These three fields therefore always decode false.
	// See the design notes on ThermostatStatus packing.
	IsLocked   bool
	RFError    bool
	BatteryLow bool

	ValvePosition      uint8
	DesiredTemperature float64

	// MeasuredTemperature is present only when a 2-byte tail followed
	// and Mode is not ModeTemporary.
	MeasuredTemperature *float64

	// ScheduleRaw holds a 3-byte tail verbatim; this implementation
	// does not interpret schedule-date tails.
	ScheduleRaw []byte
}

func decodeThermostatStatus(body, tail []byte) (ThermostatStatus, error) {
	if len(body) != 3 {
		return ThermostatStatus{}, fmt.Errorf("%w: thermostat status must be 3 bytes, got %d", ErrDecodeFormat, len(body))
	}

	statusLo := body[0]
	mode := Mode(statusLo & 0x03)
	dst := statusLo&0x04 != 0
	lan := statusLo&0x08 != 0

	hi := statusLo >> 9 // always 0 on an 8-bit value; preserved verbatim.
	isLocked := hi&0x01 != 0
	rferror := hi&0x02 != 0
	batteryLow := hi&0x04 != 0

	status := ThermostatStatus{
		Mode:               mode,
		DSTSetting:         dst,
		LANGateway:         lan,
		IsLocked:           isLocked,
		RFError:            rferror,
		BatteryLow:         batteryLow,
		ValvePosition:      body[1],
		DesiredTemperature: float64(body[2]&0x7F) / 2.0,
	}

	switch len(tail) {
	case 0:
	case 2:
		if mode != ModeTemporary {
			measured := (float64(tail[0]&0x01)*256 + float64(tail[1])) / 10.0
			status.MeasuredTemperature = &measured
		}
	case 3:
		status.ScheduleRaw = append([]byte(nil), tail...)
	default:
		return ThermostatStatus{}, fmt.Errorf("%w: unexpected status tail length %d", ErrDecodeFormat, len(tail))
	}

	return status, nil
}

// PairPingInfo is the decoded payload of a PairPing frame.
type PairPingInfo struct {
	FirmwareVersion string
	DeviceType      DeviceType
	SelfTestResult  uint8
	PairMode        string
	DeviceSerial    string
}

func decodePairPing(payload []byte, isBroadcast bool) (PairPingInfo, error) {
	if len(payload) < 3 {
		return PairPingInfo{}, fmt.Errorf("%w: pair ping payload too short", ErrDecodeFormat)
	}
	fw := payload[0]
	pairmode := "re-pair"
	if isBroadcast {
		pairmode = "pair"
	}
	return PairPingInfo{
		FirmwareVersion: fmt.Sprintf("V%d.%d", fw>>4, fw&0x0F),
		DeviceType:      DeviceType(payload[1]),
		SelfTestResult:  payload[2],
		PairMode:        pairmode,
		DeviceSerial:    string(payload[3:]),
	}, nil
}

// PairPongInfo is the decoded payload of a PairPong frame.
type PairPongInfo struct {
	DeviceType DeviceType
}

func decodePairPong(payload []byte) (PairPongInfo, error) {
	if len(payload) < 1 {
		return PairPongInfo{}, fmt.Errorf("%w: pair pong payload empty", ErrDecodeFormat)
	}
	return PairPongInfo{DeviceType: DeviceType(payload[0])}, nil
}

// EncodePairPong sets m up as a PairPong announcing deviceType.
func EncodePairPong(m *Message, deviceType DeviceType) {
	m.MsgType = MsgPairPong
	m.Payload = []byte{byte(deviceType)}
}

// AckInfo is the decoded payload of an Ack frame.
type AckInfo struct {
	State string

	// ThermostatStatus is set when the Ack carries the optional
	// 3-byte status tail (total payload length 4).
	ThermostatStatus *ThermostatStatus
}

func decodeAck(payload []byte) (AckInfo, error) {
	if len(payload) < 1 {
		return AckInfo{}, fmt.Errorf("%w: ack payload empty", ErrDecodeFormat)
	}

	var state string
	switch payload[0] {
	case 0x01:
		state = "ok"
	case 0x81:
		state = "invalid_command"
	default:
		state = fmt.Sprintf("unknown(0x%02X)", payload[0])
	}

	info := AckInfo{State: state}
	if len(payload) == 4 {
		status, err := decodeThermostatStatus(payload[1:4], nil)
		if err != nil {
			return AckInfo{}, err
		}
		info.ThermostatStatus = &status
	}
	return info, nil
}

// TimeInformationInfo is the decoded payload of a TimeInformation
// frame. IsRequest is true for the empty (query) form.
type TimeInformationInfo struct {
	IsRequest                          bool
	Year, Month, Day                   int
	Hour, Minute, Second               int
}

func decodeTimeInformation(payload []byte) (TimeInformationInfo, error) {
	if len(payload) == 0 {
		return TimeInformationInfo{IsRequest: true}, nil
	}
	dt, err := decodeTimePayload(payload)
	if err != nil {
		return TimeInformationInfo{}, err
	}
	return TimeInformationInfo{
		Year:   dt.Year,
		Month:  dt.Month,
		Day:    dt.Day,
		Hour:   dt.Hour,
		Minute: dt.Minute,
		Second: dt.Second,
	}, nil
}

// EncodeTimeInformation sets m up as a TimeInformation frame. A nil
// when emits the empty request form; a non-nil when emits the 5-byte
// reply carrying that time.
func EncodeTimeInformation(m *Message, when *time.Time) {
	m.MsgType = MsgTimeInformation
	if when == nil {
		m.Flag = 0x0A
		m.Payload = nil
		return
	}
	m.Flag = 0x04
	m.Payload = encodeTime(*when)
}

// SetTemperatureInfo is the decoded payload of a SetTemperature frame.
type SetTemperatureInfo struct {
	DesiredTemperature float64
	Mode               Mode
}

func decodeSetTemperature(payload []byte) (SetTemperatureInfo, error) {
	if len(payload) != 1 {
		return SetTemperatureInfo{}, fmt.Errorf("%w: set temperature payload must be 1 byte, got %d", ErrDecodeFormat, len(payload))
	}
	b := payload[0]
	return SetTemperatureInfo{
		DesiredTemperature: float64(b&0x3F) / 2.0,
		Mode:               Mode(b >> 6),
	}, nil
}

// SetTemperatureParams carries the fields SetTemperature needs to
// encode. Both fields are required; a nil field fails encoding with
// ErrMissingPayloadParameter, mirroring a dict-style caller that
// forgot a key.
type SetTemperatureParams struct {
	DesiredTemperature *float64
	Mode               *Mode
}

// EncodeSetTemperature sets m up as a SetTemperature frame carrying
// params. The setpoint is clamped to [MinSetpoint, MaxSetpoint] and
// rounded to the nearest half-degree before encoding.
func EncodeSetTemperature(m *Message, params SetTemperatureParams) error {
	if params.DesiredTemperature == nil || params.Mode == nil {
		return ErrMissingPayloadParameter
	}

	m.MsgType = MsgSetTemperature
	if m.GroupID != 0 {
		m.Flag = 0x04
	} else {
		m.Flag = 0x00
	}

	clamped := ClampSetpoint(*params.DesiredTemperature)
	b := (uint8(*params.Mode) << 6) | encodeHalfDegree(clamped)
	m.Payload = []byte{b}
	return nil
}

// decodeThermostatState decodes a ThermostatState frame's payload
// (status_lo, valve, desired, plus an optional 2- or 3-byte tail).
func decodeThermostatState(payload []byte) (ThermostatStatus, error) {
	if len(payload) < 3 {
		return ThermostatStatus{}, fmt.Errorf("%w: thermostat state payload too short", ErrDecodeFormat)
	}
	return decodeThermostatStatus(payload[0:3], payload[3:])
}

// DecodedPayload computes the typed, variant-specific view of m's raw
// payload. It is safe to call repeatedly; each call re-decodes. Opaque
// variants and unrecognized tags return ErrUnknownMessage.
func (m *Message) DecodedPayload() (any, error) {
	switch m.MsgType {
	case MsgPairPing:
		return decodePairPing(m.Payload, m.IsBroadcast())
	case MsgPairPong:
		return decodePairPong(m.Payload)
	case MsgAck:
		return decodeAck(m.Payload)
	case MsgTimeInformation:
		return decodeTimeInformation(m.Payload)
	case MsgSetTemperature:
		return decodeSetTemperature(m.Payload)
	case MsgThermostatState:
		return decodeThermostatState(m.Payload)
	default:
		return nil, fmt.Errorf("%w: no structured payload for %s", ErrUnknownMessage, m.MsgType)
	}
}
