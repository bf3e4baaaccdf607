package codec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// headerFieldBytes is the byte count of counter+flag+type+sender+
// receiver+group, i.e. everything the length field covers besides
// the payload.
const headerFieldBytes = 1 + 1 + 1 + 3 + 3 + 1

// Decode parses a wire line into a Message. It accepts both the
// receive form ("Z...") and the send form ("Zs...") — they are
// otherwise identical and round-trip through this decoder the same
// way. The trailing RSSI byte the transceiver appends to received
// frames is not this function's concern; callers strip it first.
func Decode(line string) (*Message, error) {
	body, err := stripPrefix(line)
	if err != nil {
		return nil, err
	}

	if len(body) < 2 {
		return nil, fmt.Errorf("%w: line too short", ErrDecodeFormat)
	}

	declaredLen, err := parseHexByte(body[0:2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad length field: %v", ErrDecodeFormat, err)
	}

	rest := body[2:]
	if len(rest)%2 != 0 {
		return nil, fmt.Errorf("%w: odd hex digit count", ErrDecodeFormat)
	}

	actualLen := len(rest) / 2
	if actualLen != int(declaredLen) {
		return nil, fmt.Errorf("%w: declared %d, actual %d", ErrLengthMismatch, declaredLen, actualLen)
	}

	if len(rest) < headerFieldBytes*2 {
		return nil, fmt.Errorf("%w: header truncated", ErrDecodeFormat)
	}

	counter, err := parseHexByte(rest[0:2])
	if err != nil {
		return nil, fmt.Errorf("%w: counter: %v", ErrDecodeFormat, err)
	}
	flag, err := parseHexByte(rest[2:4])
	if err != nil {
		return nil, fmt.Errorf("%w: flag: %v", ErrDecodeFormat, err)
	}
	msgType, err := parseHexByte(rest[4:6])
	if err != nil {
		return nil, fmt.Errorf("%w: msg_type: %v", ErrDecodeFormat, err)
	}
	sender, err := parseHex24(rest[6:12])
	if err != nil {
		return nil, fmt.Errorf("%w: sender_id: %v", ErrDecodeFormat, err)
	}
	receiver, err := parseHex24(rest[12:18])
	if err != nil {
		return nil, fmt.Errorf("%w: receiver_id: %v", ErrDecodeFormat, err)
	}
	group, err := parseHexByte(rest[18:20])
	if err != nil {
		return nil, fmt.Errorf("%w: group_id: %v", ErrDecodeFormat, err)
	}

	payloadHex := rest[20:]
	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrDecodeFormat, err)
	}

	tag := MessageType(msgType)
	if !tag.IsKnown() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMessage, msgType)
	}

	return &Message{
		Header: Header{
			Counter:    counter,
			Flag:       flag,
			MsgType:    tag,
			SenderID:   sender,
			ReceiverID: receiver,
			GroupID:    group,
		},
		Payload: payload,
	}, nil
}

// Encode serializes a message to its "Zs..." wire form. The flag
// byte in m.Header is used as-is; variant-specific encoders that need
// to recompute it (TimeInformation, SetTemperature) do so before
// calling Encode.
func Encode(m *Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X", m.Counter)
	fmt.Fprintf(&b, "%02X", m.Flag)
	fmt.Fprintf(&b, "%02X", uint8(m.MsgType))
	fmt.Fprintf(&b, "%06X", m.SenderID)
	fmt.Fprintf(&b, "%06X", m.ReceiverID)
	fmt.Fprintf(&b, "%02X", m.GroupID)
	b.WriteString(strings.ToUpper(hex.EncodeToString(m.Payload)))

	body := b.String()
	length := len(body) / 2

	return fmt.Sprintf("Zs%02X%s", length, body)
}

func stripPrefix(line string) (string, error) {
	switch {
	case strings.HasPrefix(line, "Zs"):
		return line[2:], nil
	case strings.HasPrefix(line, "Z"):
		return line[1:], nil
	default:
		return "", fmt.Errorf("%w: missing Z/Zs prefix", ErrDecodeFormat)
	}
}

func parseHexByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func parseHex24(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
