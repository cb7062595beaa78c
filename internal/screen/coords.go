package screen

import "math"

// NormalizedMax is the upper bound of the model's coordinate space.
// The model addresses the screen with integers in [0, NormalizedMax] on
// both axes regardless of the physical resolution.
const NormalizedMax = 1000

// ToLogicalSafe maps normalized coordinates to physical pixels, clamping
// out-of-range inputs to the screen bounds first.
func ToLogicalSafe(nx, ny, width, height int) (int, int) {
	nx = clamp(nx, 0, NormalizedMax)
	ny = clamp(ny, 0, NormalizedMax)
	px := int(math.Round(float64(nx) / NormalizedMax * float64(width)))
	py := int(math.Round(float64(ny) / NormalizedMax * float64(height)))
	px = clamp(px, 0, width-1)
	py = clamp(py, 0, height-1)
	return px, py
}

// ToNormalized maps physical pixels back into the normalized space.
func ToNormalized(px, py, width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	nx := int(math.Round(float64(px) / float64(width) * NormalizedMax))
	ny := int(math.Round(float64(py) / float64(height) * NormalizedMax))
	return clamp(nx, 0, NormalizedMax), clamp(ny, 0, NormalizedMax)
}

// ToLogicalSafe maps model coordinates into this frame's pixel space.
func (f *Frame) ToLogicalSafe(nx, ny int) (int, int) {
	return ToLogicalSafe(nx, ny, f.Width, f.Height)
}

// ToNormalized maps frame pixels back into the model's coordinate space.
func (f *Frame) ToNormalized(px, py int) (int, int) {
	return ToNormalized(px, py, f.Width, f.Height)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
