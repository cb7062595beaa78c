// Package input injects mouse and keyboard events through the platform
// input tool (xdotool on Linux, cliclick on macOS). All coordinates are
// physical pixels; normalized-space translation happens in the executor.
package input

import (
	"context"
	"time"
)

// Post-action pauses. Each primitive blocks for its pause after the OS
// accepted the event, giving the GUI time to start reacting. The pauses
// are interruptible; an interrupt between actions surfaces as ctx.Err().
const (
	PauseClick  = 300 * time.Millisecond
	PauseType   = 50 * time.Millisecond
	PauseKey    = 100 * time.Millisecond
	PauseScroll = 200 * time.Millisecond
	PauseOther  = 100 * time.Millisecond
)

// Driver is the OS input surface used by the executor.
type Driver interface {
	ClickAt(ctx context.Context, x, y int) error
	DoubleClickAt(ctx context.Context, x, y int) error
	RightClickAt(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKeys(ctx context.Context, key string) error
	// Scroll moves the wheel; negative amounts scroll up.
	Scroll(ctx context.Context, amount int) error
	Drag(ctx context.Context, fromX, fromY, toX, toY int) error
	Wait(ctx context.Context, duration time.Duration) error
}

// pause blocks for d or until the context is cancelled.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
