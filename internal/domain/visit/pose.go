package visit

import (
	"math"
	"strings"
)

type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// NewPose rounds every component to millimetre / milliradian precision so
// poses from the catalogue compare equal across refreshes.
func NewPose(x, y, yaw float64) Pose {
	return Pose{X: round3(x), Y: round3(y), Yaw: round3(yaw)}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

type LocationEntry struct {
	Name string `json:"name"`
	Pose Pose   `json:"pose"`
}

// NormalizeName is the lookup key for a location: trimmed and lower-cased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
