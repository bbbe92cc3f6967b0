package tts

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	// MinSpeed and MaxSpeed bound every playback multiplier.
	MinSpeed = 0.5
	MaxSpeed = 4.0

	// ffmpeg's atempo filter accepts 0.5 to 2.0 per instance.
	atempoMin = 0.5
	atempoMax = 2.0
)

// ClampSpeed forces speed into [lo, hi]. Non-positive bounds fall back to
// MinSpeed and MaxSpeed.
func ClampSpeed(speed, low, high float64) float64 {
	if low <= 0 {
		low = MinSpeed
	}
	if high <= 0 || high < low {
		high = MaxSpeed
	}
	if speed != speed { // NaN
		return 1.0
	}
	return lo.Clamp(speed, low, high)
}

// LengthScale converts a speed multiplier to Piper's --length-scale, which is
// inversely proportional to speed.
func LengthScale(speed float64) string {
	if speed <= 0 {
		speed = 1.0
	}
	return fmt.Sprintf("%.3f", 1.0/speed)
}

// AtempoFilter builds an ffmpeg audio filter for speed, chaining atempo
// stages for factors outside a single stage's range. Returns "" for 1.0.
func AtempoFilter(speed float64) string {
	if speed <= 0 || speed == 1.0 {
		return ""
	}

	var stages []string
	for speed > atempoMax {
		stages = append(stages, fmt.Sprintf("atempo=%.4g", atempoMax))
		speed /= atempoMax
	}
	for speed < atempoMin {
		stages = append(stages, fmt.Sprintf("atempo=%.4g", atempoMin))
		speed /= atempoMin
	}
	if speed != 1.0 {
		stages = append(stages, fmt.Sprintf("atempo=%.4g", speed))
	}
	return strings.Join(stages, ",")
}
