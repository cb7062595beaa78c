package screen

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay geometry in physical pixels.
const (
	crossArm      = 14
	crossStroke   = 2
	ringRadius    = 16
	ringThickness = 3
	labelOffset   = 8
)

var (
	crossColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	ringColor  = color.RGBA{R: 40, G: 200, B: 80, A: 255}
)

// toRGBA returns img as a mutable RGBA canvas, copying if necessary.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// drawCross renders the cursor marker: a red cross with the normalized
// coordinate printed next to it.
func drawCross(img *image.RGBA, x, y int, label string) {
	for d := -crossArm; d <= crossArm; d++ {
		for s := 0; s < crossStroke; s++ {
			setIfInside(img, x+d, y+s, crossColor)
			setIfInside(img, x+s, y+d, crossColor)
		}
	}
	drawLabel(img, x+labelOffset, y-labelOffset, label, crossColor)
}

// drawRing renders the last-click marker: a green circle with a label.
func drawRing(img *image.RGBA, x, y int, label string) {
	outer := ringRadius * ringRadius
	inner := (ringRadius - ringThickness) * (ringRadius - ringThickness)
	for dy := -ringRadius; dy <= ringRadius; dy++ {
		for dx := -ringRadius; dx <= ringRadius; dx++ {
			dist := dx*dx + dy*dy
			if dist <= outer && dist >= inner {
				setIfInside(img, x+dx, y+dy, ringColor)
			}
		}
	}
	drawLabel(img, x+ringRadius+labelOffset, y-labelOffset, label, ringColor)
}

func drawLabel(img *image.RGBA, x, y int, text string, col color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func setIfInside(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

// encodeJPEG downscales frames wider than maxWidth and encodes to base64.
func encodeJPEG(img image.Image, maxWidth, quality int) (string, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if maxWidth > 0 && width > maxWidth {
		newHeight := int(float64(height) * float64(maxWidth) / float64(width))
		if newHeight < 1 {
			newHeight = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
