package codec

import "fmt"

// MessageType is the 8-bit tag selecting a MAX!/Moritz frame variant.
type MessageType uint8

// Known message type tags. The structured variants have dedicated
// payload codecs; the opaque tags are recognized (so Decode does not
// reject them) but their payload is preserved verbatim.
const (
	MsgPairPing        MessageType = 0x00
	MsgPairPong        MessageType = 0x01
	MsgAck             MessageType = 0x02
	MsgTimeInformation MessageType = 0x03
	MsgSetTemperature  MessageType = 0x40
	MsgThermostatState MessageType = 0x60
)

// opaqueTypes are accepted on decode but carry no structured payload
// schema in this implementation.
var opaqueTypes = map[MessageType]string{
	0x10: "SetProtocolMode",
	0x11: "AddLinkPartner",
	0x12: "RemoveLinkPartner",
	0x20: "SetGroupID",
	0x21: "RemoveGroupID",
	0x22: "ShutterContactState",
	0x23: "SetTemperatureTemporary",
	0x30: "WallThermostatControl",
	0x42: "WallThermostatState",
	0x43: "SetDisplayActualTemperature",
	0x44: "WakeUp",
	0x50: "Reset",
	0x70: "SetComfortTemperature",
	0x82: "SetEcoTemperature",
	0xF0: "ConfigWeekProfile",
	0xF1: "ConfigTemperatures",
}

var structuredNames = map[MessageType]string{
	MsgPairPing:        "PairPing",
	MsgPairPong:        "PairPong",
	MsgAck:             "Ack",
	MsgTimeInformation: "TimeInformation",
	MsgSetTemperature:  "SetTemperature",
	MsgThermostatState: "ThermostatState",
}

// Name returns the human-readable variant name for a message type, or
// "" if the tag is not recognized at all.
func (t MessageType) Name() string {
	if name, ok := structuredNames[t]; ok {
		return name
	}
	if name, ok := opaqueTypes[t]; ok {
		return name
	}
	return ""
}

// IsKnown reports whether the tag has any variant, structured or
// opaque.
func (t MessageType) IsKnown() bool {
	return t.Name() != ""
}

// IsOpaque reports whether the tag is recognized but has no
// structured payload codec.
func (t MessageType) IsOpaque() bool {
	_, ok := opaqueTypes[t]
	return ok
}

func (t MessageType) String() string {
	if name := t.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("MessageType(0x%02X)", uint8(t))
}

// DeviceType is the wire byte identifying a MAX!/Moritz device class.
type DeviceType uint8

const (
	DeviceCube                  DeviceType = 0
	DeviceHeatingThermostat     DeviceType = 1
	DeviceHeatingThermostatPlus DeviceType = 2
	DeviceWallMountedThermostat DeviceType = 3
	DeviceShutterContact        DeviceType = 4
	DevicePushButton            DeviceType = 5
)

var deviceTypeNames = map[DeviceType]string{
	DeviceCube:                  "Cube",
	DeviceHeatingThermostat:     "HeatingThermostat",
	DeviceHeatingThermostatPlus: "HeatingThermostatPlus",
	DeviceWallMountedThermostat: "WallMountedThermostat",
	DeviceShutterContact:        "ShutterContact",
	DevicePushButton:            "PushButton",
}

func (d DeviceType) String() string {
	if name, ok := deviceTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DeviceType(%d)", uint8(d))
}

// Mode is the 2-bit thermostat operating mode.
type Mode uint8

const (
	ModeAuto Mode = iota
	ModeManual
	ModeTemporary
	ModeBoost
)

var modeNames = map[Mode]string{
	ModeAuto:      "auto",
	ModeManual:    "manual",
	ModeTemporary: "temporary",
	ModeBoost:     "boost",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

func modeFromString(s string) (Mode, bool) {
	for m, name := range modeNames {
		if name == s {
			return m, true
		}
	}
	return 0, false
}

// Header carries the fields common to every MAX!/Moritz frame.
type Header struct {
	Counter    uint8
	Flag       uint8
	MsgType    MessageType
	SenderID   uint32 // 24-bit device address
	ReceiverID uint32 // 24-bit device address; 0 means broadcast
	GroupID    uint8
}

// IsBroadcast reports whether the frame addresses every paired
// device rather than one in particular.
func (h Header) IsBroadcast() bool {
	return h.ReceiverID == 0
}

// Message is a decoded (or decode-pending) MAX!/Moritz frame.
// Payload holds the raw, not-yet-structurally-decoded payload bytes;
// DecodedPayload computes the typed view lazily so that callers which
// only need to route by MsgType never pay to decode a payload they
// will discard, and so opaque or malformed payloads never block
// header-level routing.
type Message struct {
	Header
	Payload []byte

	// SignalStrength is set only for frames received from the
	// transceiver; it is absent (nil) for outgoing messages.
	SignalStrength *uint8
}

// NewMessage constructs a header-only message ready for Encode.
func NewMessage(msgType MessageType, sender, receiver uint32, groupID uint8) *Message {
	return &Message{
		Header: Header{
			MsgType:    msgType,
			SenderID:   sender,
			ReceiverID: receiver,
			GroupID:    groupID,
		},
	}
}
