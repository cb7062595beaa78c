package screen

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func whiteCanvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	return img
}

func TestDrawCross(t *testing.T) {
	img := whiteCanvas(100, 100)
	drawCross(img, 50, 50, "")

	if got := img.RGBAAt(55, 50); got != crossColor {
		t.Errorf("horizontal arm not drawn at (55,50): %v", got)
	}
	if got := img.RGBAAt(50, 55); got != crossColor {
		t.Errorf("vertical arm not drawn at (50,55): %v", got)
	}
	if got := img.RGBAAt(90, 90); got == crossColor {
		t.Error("cross bled far outside its arms")
	}
}

func TestDrawCross_AtEdge(t *testing.T) {
	img := whiteCanvas(40, 40)
	// Must not panic when arms leave the canvas.
	drawCross(img, 0, 0, "(0,0)")
	drawCross(img, 39, 39, "(999,999)")

	if got := img.RGBAAt(0, 5); got != crossColor {
		t.Errorf("edge cross not drawn: %v", got)
	}
}

func TestDrawRing(t *testing.T) {
	img := whiteCanvas(100, 100)
	drawRing(img, 50, 50, "")

	if got := img.RGBAAt(50+ringRadius, 50); got != ringColor {
		t.Errorf("ring edge not drawn: %v", got)
	}
	if got := img.RGBAAt(50, 50); got == ringColor {
		t.Error("ring center should stay unfilled")
	}
}

func TestDrawLabel(t *testing.T) {
	img := whiteCanvas(120, 40)
	drawLabel(img, 10, 20, "click 1", crossColor)

	colored := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 120; x++ {
			if img.RGBAAt(x, y) == crossColor {
				colored++
			}
		}
	}
	if colored == 0 {
		t.Error("label drew no pixels")
	}
}

func TestEncodeJPEG_Downscale(t *testing.T) {
	img := whiteCanvas(200, 100)

	encoded, err := encodeJPEG(img, 100, 80)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("not valid base64: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("not a valid jpeg: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 50 {
		t.Errorf("expected 100x50 after downscale, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeJPEG_NoDownscaleNeeded(t *testing.T) {
	img := whiteCanvas(80, 60)

	encoded, err := encodeJPEG(img, 100, 80)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	data, _ := base64.StdEncoding.DecodeString(encoded)
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("not a valid jpeg: %v", err)
	}
	if decoded.Bounds().Dx() != 80 {
		t.Errorf("image should not be resized, got width %d", decoded.Bounds().Dx())
	}
}

func TestToRGBA(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if toRGBA(rgba) != rgba {
		t.Error("RGBA input should be returned as-is")
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	converted := toRGBA(nrgba)
	if converted.Bounds() != nrgba.Bounds() {
		t.Error("converted canvas has wrong bounds")
	}
}
