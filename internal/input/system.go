package input

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"pilot/pkg/logger"
)

// cliclick cannot drive the scroll wheel; page keys stand in, one page
// per three wheel notches.
const macScrollNotchesPerPage = 3

// SystemDriver implements Driver by shelling out to the platform tool.
type SystemDriver struct {
	timeout time.Duration

	// run is swappable for tests.
	run func(ctx context.Context, name string, args ...string) error
}

// NewSystemDriver creates a driver. timeout bounds each tool invocation;
// zero means no per-action bound beyond the caller's context.
func NewSystemDriver(timeout time.Duration) *SystemDriver {
	d := &SystemDriver{timeout: timeout}
	d.run = d.runCommand
	return d
}

// Check verifies the platform input tool is installed.
func (d *SystemDriver) Check() error {
	switch runtime.GOOS {
	case "linux":
		if _, err := exec.LookPath("xdotool"); err != nil {
			return fmt.Errorf("input driver requires xdotool (apt install xdotool)")
		}
		return nil
	case "darwin":
		if _, err := exec.LookPath("cliclick"); err != nil {
			return fmt.Errorf("input driver requires cliclick (brew install cliclick)")
		}
		return nil
	default:
		return fmt.Errorf("input driver not supported on %s", runtime.GOOS)
	}
}

func (d *SystemDriver) ClickAt(ctx context.Context, x, y int) error {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = d.run(ctx, "xdotool", "mousemove", itoa(x), itoa(y), "click", "1")
	case "darwin":
		err = d.run(ctx, "cliclick", fmt.Sprintf("c:%d,%d", x, y))
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseClick)
}

func (d *SystemDriver) DoubleClickAt(ctx context.Context, x, y int) error {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = d.run(ctx, "xdotool", "mousemove", itoa(x), itoa(y), "click", "--repeat", "2", "1")
	case "darwin":
		err = d.run(ctx, "cliclick", fmt.Sprintf("dc:%d,%d", x, y))
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseClick)
}

func (d *SystemDriver) RightClickAt(ctx context.Context, x, y int) error {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = d.run(ctx, "xdotool", "mousemove", itoa(x), itoa(y), "click", "3")
	case "darwin":
		err = d.run(ctx, "cliclick", fmt.Sprintf("rc:%d,%d", x, y))
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseClick)
}

func (d *SystemDriver) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return pause(ctx, PauseType)
	}
	var err error
	switch runtime.GOOS {
	case "linux":
		err = d.run(ctx, "xdotool", "type", "--delay", "10", text)
	case "darwin":
		err = d.run(ctx, "cliclick", "t:"+text)
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseType)
}

func (d *SystemDriver) PressKeys(ctx context.Context, key string) error {
	var err error
	switch runtime.GOOS {
	case "linux":
		var spec string
		spec, err = x11Key(key)
		if err == nil {
			err = d.run(ctx, "xdotool", "key", spec)
		}
	case "darwin":
		var args []string
		args, err = macKeyArgs(key)
		if err == nil {
			err = d.run(ctx, "cliclick", args...)
		}
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseKey)
}

func (d *SystemDriver) Scroll(ctx context.Context, amount int) error {
	if amount == 0 {
		return pause(ctx, PauseScroll)
	}
	var err error
	switch runtime.GOOS {
	case "linux":
		// Wheel up is button 4, down is button 5.
		button := "5"
		if amount < 0 {
			button = "4"
		}
		err = d.run(ctx, "xdotool", "click", "--repeat", itoa(absInt(amount)), button)
	case "darwin":
		key := "kp:page-down"
		if amount < 0 {
			key = "kp:page-up"
		}
		pages := (absInt(amount) + macScrollNotchesPerPage - 1) / macScrollNotchesPerPage
		for i := 0; i < pages && err == nil; i++ {
			err = d.run(ctx, "cliclick", key)
		}
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseScroll)
}

func (d *SystemDriver) Drag(ctx context.Context, fromX, fromY, toX, toY int) error {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = d.run(ctx, "xdotool",
			"mousemove", itoa(fromX), itoa(fromY),
			"mousedown", "1",
			"mousemove", itoa(toX), itoa(toY),
			"mouseup", "1")
	case "darwin":
		err = d.run(ctx, "cliclick",
			fmt.Sprintf("dd:%d,%d", fromX, fromY),
			fmt.Sprintf("dm:%d,%d", toX, toY),
			fmt.Sprintf("du:%d,%d", toX, toY))
	default:
		err = unsupported()
	}
	if err != nil {
		return err
	}
	return pause(ctx, PauseOther)
}

func (d *SystemDriver) Wait(ctx context.Context, duration time.Duration) error {
	if duration > 0 {
		if err := pause(ctx, duration); err != nil {
			return err
		}
	}
	return pause(ctx, PauseOther)
}

// runCommand executes the tool and waits for it to accept the event.
func (d *SystemDriver) runCommand(ctx context.Context, name string, args ...string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Debug().Str("cmd", name).Strs("args", args).Err(err).Msg("input command failed")
		return fmt.Errorf("%s failed: %v: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func unsupported() error {
	return fmt.Errorf("input driver not supported on %s", runtime.GOOS)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
