package screen

import "testing"

func TestLastClick(t *testing.T) {
	c := New(Config{})

	if c.LastClick() != nil {
		t.Error("fresh capturer should have no click mark")
	}

	c.SetLastClick(100, 200, "click")
	mark := c.LastClick()
	if mark == nil {
		t.Fatal("expected a click mark")
	}
	if mark.X != 100 || mark.Y != 200 || mark.Label != "click" {
		t.Errorf("unexpected mark: %+v", mark)
	}

	// Returned mark is a copy.
	mark.X = 999
	if c.LastClick().X != 100 {
		t.Error("LastClick should return a copy")
	}

	c.ClearLastClick()
	if c.LastClick() != nil {
		t.Error("mark should be cleared")
	}
}

func TestParseMouseLocation(t *testing.T) {
	tests := []struct {
		name   string
		output string
		wantX  int
		wantY  int
		ok     bool
	}{
		{
			name:   "xdotool shell output",
			output: "X=123\nY=456\nSCREEN=0\nWINDOW=77594631\n",
			wantX:  123,
			wantY:  456,
			ok:     true,
		},
		{
			name:   "missing Y",
			output: "X=123\nSCREEN=0\n",
			ok:     false,
		},
		{
			name:   "garbage",
			output: "not a location",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, ok := parseMouseLocation(tt.output)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (pt.X != tt.wantX || pt.Y != tt.wantY) {
				t.Errorf("got (%d,%d), want (%d,%d)", pt.X, pt.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestParseCliclickPoint(t *testing.T) {
	tests := []struct {
		name   string
		output string
		wantX  int
		wantY  int
		ok     bool
	}{
		{"bare pair", "719,509\n", 719, 509, true},
		{"with prefix", "Current position: 719,509", 719, 509, true},
		{"no comma", "719 509", 0, 0, false},
		{"empty", "", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, ok := parseCliclickPoint(tt.output)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (pt.X != tt.wantX || pt.Y != tt.wantY) {
				t.Errorf("got (%d,%d), want (%d,%d)", pt.X, pt.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestFrameDataURL(t *testing.T) {
	f := &Frame{JPEGBase64: "abc123"}
	want := "data:image/jpeg;base64,abc123"
	if got := f.DataURL(); got != want {
		t.Errorf("DataURL = %q, want %q", got, want)
	}
}
