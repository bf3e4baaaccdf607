package codec

import "math"

// MinSetpoint and MaxSetpoint are the wire-representable setpoint
// bounds; 4.5 is interpreted as OFF and 30.5 as ON by real
// thermostats.
const (
	MinSetpoint = 4.5
	MaxSetpoint = 30.5
)

// ClampSetpoint clamps t to [MinSetpoint, MaxSetpoint] and rounds to
// the nearest 0.5 degree, matching what real hardware accepts.
func ClampSetpoint(t float64) float64 {
	if t < MinSetpoint {
		t = MinSetpoint
	}
	if t > MaxSetpoint {
		t = MaxSetpoint
	}
	return math.Round(t*2) / 2
}

// encodeHalfDegree packs a half-degree Celsius value into the low 6
// bits of a byte (0..63 maps to 0.0..31.5 degrees).
func encodeHalfDegree(t float64) uint8 {
	return uint8(math.Round(t*2)) & 0x3F
}

// decodeHalfDegree unpacks the low 6 bits of a byte into a half-degree
// Celsius value.
func decodeHalfDegree(b uint8) float64 {
	return float64(b&0x3F) / 2.0
}
