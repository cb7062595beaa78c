// Package screen captures the desktop and prepares frames for the vision
// model: overlays for the coordinate feedback loop, downscaling, JPEG
// encoding, and the normalized-coordinate mapping.
package screen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // screenshot tools write PNG
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pilot/pkg/logger"
)

// ErrScreenUnavailable indicates the screen could not be captured.
// The decision loop treats this as recoverable.
var ErrScreenUnavailable = errors.New("screen: capture unavailable")

const captureTimeout = 15 * time.Second

// Config controls frame preparation.
type Config struct {
	// MaxWidth bounds the encoded image width; 0 disables downscaling.
	MaxWidth int
	// JPEGQuality in 1-100.
	JPEGQuality int
}

// Default frame preparation values.
const (
	DefaultMaxWidth    = 1512
	DefaultJPEGQuality = 80
)

// Frame is one prepared observation of the screen.
type Frame struct {
	// JPEGBase64 is the encoded image with overlays rendered.
	JPEGBase64 string
	// Width and Height are the PHYSICAL pixel dimensions of the captured
	// screen. The normalized mapping targets these, not the (possibly
	// downscaled) encoded image.
	Width      int
	Height     int
	CapturedAt time.Time
}

// DataURL returns the frame as a data URL suitable for vision providers.
func (f *Frame) DataURL() string {
	return "data:image/jpeg;base64," + f.JPEGBase64
}

// ClickMark records where the last click landed, for the next frame's ring.
type ClickMark struct {
	X     int
	Y     int
	Label string
}

// Capturer grabs frames and keeps the last-click marker between rounds.
type Capturer struct {
	cfg Config

	mu        sync.Mutex
	lastClick *ClickMark
}

// New creates a Capturer, filling zero config fields with defaults.
func New(cfg Config) *Capturer {
	if cfg.MaxWidth < 0 {
		cfg.MaxWidth = 0
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return &Capturer{cfg: cfg}
}

// Capture grabs the screen, renders the cursor cross and last-click ring,
// and returns the encoded frame. Overlay failures are not capture failures;
// only the grab itself can return an error.
func (c *Capturer) Capture(ctx context.Context) (*Frame, error) {
	img, err := grab(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScreenUnavailable, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	canvas := toRGBA(img)

	if mark := c.LastClick(); mark != nil {
		label := mark.Label
		if label == "" {
			label = "last click"
		}
		drawRing(canvas, mark.X, mark.Y, label)
	}

	if pos, ok := cursorPosition(ctx); ok {
		nx, ny := ToNormalized(pos.X, pos.Y, width, height)
		drawCross(canvas, pos.X, pos.Y, fmt.Sprintf("(%d,%d)", nx, ny))
	} else {
		logger.Debug().Msg("cursor position unavailable, skipping cross overlay")
	}

	encoded, err := encodeJPEG(canvas, c.cfg.MaxWidth, c.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrScreenUnavailable, err)
	}

	return &Frame{
		JPEGBase64: encoded,
		Width:      width,
		Height:     height,
		CapturedAt: time.Now(),
	}, nil
}

// SetLastClick records a click position for the next frame's green ring.
func (c *Capturer) SetLastClick(x, y int, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastClick = &ClickMark{X: x, Y: y, Label: label}
}

// LastClick returns a copy of the recorded click mark, or nil.
func (c *Capturer) LastClick() *ClickMark {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastClick == nil {
		return nil
	}
	mark := *c.lastClick
	return &mark
}

// ClearLastClick drops the recorded click mark.
func (c *Capturer) ClearLastClick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastClick = nil
}

// grab shells out to the platform screenshot tool and decodes the result.
func grab(ctx context.Context) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("pilot_screen_%s.png", uuid.NewString()[:8]))
	defer os.Remove(tmpFile)

	cmd, err := captureCommand(ctx, tmpFile)
	if err != nil {
		return nil, err
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %v: %s", cmd.Args[0], err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// captureCommand picks the screenshot tool for the current platform.
func captureCommand(ctx context.Context, outPath string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		// -x: no shutter sound
		return exec.CommandContext(ctx, "screencapture", "-x", outPath), nil
	case "linux":
		if _, err := exec.LookPath("scrot"); err == nil {
			return exec.CommandContext(ctx, "scrot", "-o", outPath), nil
		}
		if _, err := exec.LookPath("gnome-screenshot"); err == nil {
			return exec.CommandContext(ctx, "gnome-screenshot", "-f", outPath), nil
		}
		if _, err := exec.LookPath("import"); err == nil {
			return exec.CommandContext(ctx, "import", "-window", "root", outPath), nil
		}
		return nil, errors.New("no screenshot tool found (install scrot, gnome-screenshot, or imagemagick)")
	default:
		return nil, fmt.Errorf("screen capture not supported on %s", runtime.GOOS)
	}
}

// cursorPosition asks the platform pointer tool where the mouse is.
// Returns ok=false when the position cannot be determined.
func cursorPosition(ctx context.Context) (image.Point, bool) {
	switch runtime.GOOS {
	case "darwin":
		output, err := exec.CommandContext(ctx, "cliclick", "p").Output()
		if err != nil {
			return image.Point{}, false
		}
		return parseCliclickPoint(string(output))
	case "linux":
		output, err := exec.CommandContext(ctx, "xdotool", "getmouselocation", "--shell").Output()
		if err != nil {
			return image.Point{}, false
		}
		return parseMouseLocation(string(output))
	default:
		return image.Point{}, false
	}
}

// parseMouseLocation parses xdotool --shell output (X=…\nY=…\n…).
func parseMouseLocation(output string) (image.Point, bool) {
	var pt image.Point
	var haveX, haveY bool
	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		switch key {
		case "X":
			pt.X, haveX = n, true
		case "Y":
			pt.Y, haveY = n, true
		}
	}
	return pt, haveX && haveY
}

// parseCliclickPoint parses cliclick p output, tolerating a text prefix
// ("Current position: 123,456" or plain "123,456").
func parseCliclickPoint(output string) (image.Point, bool) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) == 0 {
		return image.Point{}, false
	}
	xs, ys, found := strings.Cut(fields[len(fields)-1], ",")
	if !found {
		return image.Point{}, false
	}
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errX != nil || errY != nil {
		return image.Point{}, false
	}
	return image.Point{X: x, Y: y}, true
}
