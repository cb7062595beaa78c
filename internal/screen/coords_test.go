package screen

import "testing"

func TestToLogicalSafe(t *testing.T) {
	tests := []struct {
		name          string
		nx, ny        int
		width, height int
		wantX, wantY  int
	}{
		{"center", 500, 500, 1920, 1080, 960, 540},
		{"origin", 0, 0, 1920, 1080, 0, 0},
		{"max clamps to last pixel", 1000, 1000, 1920, 1080, 1919, 1079},
		{"negative clamps to zero", -50, -1, 1920, 1080, 0, 0},
		{"overflow clamps to max", 1200, 2000, 1920, 1080, 1919, 1079},
		{"rounding", 1, 1, 1920, 1080, 2, 1},
		{"identity space", 333, 667, 1000, 1000, 333, 667},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotX, gotY := ToLogicalSafe(tt.nx, tt.ny, tt.width, tt.height)
			if gotX != tt.wantX || gotY != tt.wantY {
				t.Errorf("ToLogicalSafe(%d,%d) = (%d,%d), want (%d,%d)",
					tt.nx, tt.ny, gotX, gotY, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestToNormalized(t *testing.T) {
	tests := []struct {
		name          string
		px, py        int
		width, height int
		wantX, wantY  int
	}{
		{"center", 960, 540, 1920, 1080, 500, 500},
		{"origin", 0, 0, 1920, 1080, 0, 0},
		{"last pixel", 1919, 1079, 1920, 1080, 999, 999},
		{"zero dimensions", 10, 10, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotX, gotY := ToNormalized(tt.px, tt.py, tt.width, tt.height)
			if gotX != tt.wantX || gotY != tt.wantY {
				t.Errorf("ToNormalized(%d,%d) = (%d,%d), want (%d,%d)",
					tt.px, tt.py, gotX, gotY, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestCoordRoundTrip(t *testing.T) {
	// Mapping back and forth must be stable to within one pixel.
	widths := []struct{ w, h int }{
		{1920, 1080},
		{1512, 982},
		{3840, 2160},
		{800, 600},
	}
	for _, dim := range widths {
		for nx := 0; nx <= NormalizedMax; nx += 7 {
			px, py := ToLogicalSafe(nx, nx, dim.w, dim.h)
			nx2, ny2 := ToNormalized(px, py, dim.w, dim.h)
			px2, py2 := ToLogicalSafe(nx2, ny2, dim.w, dim.h)
			if abs(px2-px) > 1 || abs(py2-py) > 1 {
				t.Fatalf("round trip drifted at n=%d on %dx%d: (%d,%d) -> (%d,%d)",
					nx, dim.w, dim.h, px, py, px2, py2)
			}
		}
	}
}

func TestFrameCoordHelpers(t *testing.T) {
	f := &Frame{Width: 1920, Height: 1080}

	px, py := f.ToLogicalSafe(500, 500)
	if px != 960 || py != 540 {
		t.Errorf("Frame.ToLogicalSafe = (%d,%d), want (960,540)", px, py)
	}

	nx, ny := f.ToNormalized(960, 540)
	if nx != 500 || ny != 500 {
		t.Errorf("Frame.ToNormalized = (%d,%d), want (500,500)", nx, ny)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
