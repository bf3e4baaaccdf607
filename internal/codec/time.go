package codec

import (
	"fmt"
	"time"
)

// encodeTime packs a wall-clock time into the 5-byte TimeInformation
// payload. Month is split across byte3[7:6] (high 2 bits) and
// byte4[7:6] (low 2 bits).
func encodeTime(t time.Time) []byte {
	year := uint8(t.Year() - 2000)
	day := uint8(t.Day())
	hour := uint8(t.Hour())
	month := uint8(t.Month())
	minute := uint8(t.Minute())
	second := uint8(t.Second())

	b3 := (month&0x0C)<<4 | (minute & 0x3F)
	b4 := (month&0x03)<<6 | (second & 0x3F)

	return []byte{year, day, hour, b3, b4}
}

// decodedTime holds the component fields decodeTimePayload unpacks
// from a 5-byte TimeInformation payload. The wire year is relative to
// 2000 (Year here is the full year) and no timezone is attached; this
// mirrors the wire format, which carries none either.
type decodedTime struct {
	Year, Month, Day, Hour, Minute, Second int
}

func decodeTimePayload(b []byte) (decodedTime, error) {
	if len(b) != 5 {
		return decodedTime{}, fmt.Errorf("%w: time payload must be 5 bytes, got %d", ErrDecodeFormat, len(b))
	}
	month := ((b[3] >> 4) & 0x0C) | ((b[4] >> 6) & 0x03)
	return decodedTime{
		Year:   2000 + int(b[0]),
		Day:    int(b[1]),
		Hour:   int(b[2]),
		Month:  int(month),
		Minute: int(b[3] & 0x3F),
		Second: int(b[4] & 0x3F),
	}, nil
}
