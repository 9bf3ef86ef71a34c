package image

import (
	"math"
	"strconv"
	"strings"
)

// Rotation is a clockwise angle in degrees, applied after an optional
// horizontal mirror.
type Rotation struct {
	Angle  float64
	Mirror bool
}

// ParseRotation reads "n" or "!n". An empty angle means 0 and no range
// check is made on the value.
func ParseRotation(input string) (Rotation, error) {
	return parseRotation(input, false)
}

func parseRotation(input string, strict bool) (Rotation, error) {
	r := Rotation{}
	value := input
	if strings.HasPrefix(value, "!") {
		r.Mirror = true
		value = value[1:]
	}
	if value == "" {
		return r, nil
	}

	angle, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(angle) || math.IsInf(angle, 0) {
		return Rotation{}, parseError("rotation", input, "")
	}
	if strict && (angle < 0 || angle > 360) {
		return Rotation{}, parseError("rotation", input, "angle out of [0, 360]")
	}
	r.Angle = angle
	return r, nil
}

// Normalized is the angle brought into [0, 360).
func (r Rotation) Normalized() float64 {
	a := math.Mod(r.Angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// IsRightAngle reports whether the rotation is a multiple of 90 degrees.
func (r Rotation) IsRightAngle() bool {
	return math.Mod(r.Normalized(), 90) == 0
}

// IsIdentity is true when the rotation leaves the image untouched.
func (r Rotation) IsIdentity() bool {
	return !r.Mirror && r.Normalized() == 0
}

func (r Rotation) Canonical() string {
	angle := strconv.FormatFloat(r.Normalized(), 'f', -1, 64)
	if r.Mirror {
		return "!" + angle
	}
	return angle
}
