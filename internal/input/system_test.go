package input

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

type recordedCall struct {
	name string
	args []string
}

func recordingDriver() (*SystemDriver, *[]recordedCall) {
	d := NewSystemDriver(0)
	calls := &[]recordedCall{}
	d.run = func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, recordedCall{name: name, args: args})
		return nil
	}
	return d, calls
}

func requireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("command assertions target linux, running on %s", runtime.GOOS)
	}
}

func TestClickAt_Command(t *testing.T) {
	requireLinux(t)
	d, calls := recordingDriver()

	if err := d.ClickAt(context.Background(), 960, 540); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.name != "xdotool" {
		t.Errorf("expected xdotool, got %s", got.name)
	}
	want := []string{"mousemove", "960", "540", "click", "1"}
	if len(got.args) != len(want) {
		t.Fatalf("args = %v, want %v", got.args, want)
	}
	for i := range want {
		if got.args[i] != want[i] {
			t.Fatalf("args = %v, want %v", got.args, want)
		}
	}
}

func TestPressKeys_Command(t *testing.T) {
	requireLinux(t)
	d, calls := recordingDriver()

	if err := d.PressKeys(context.Background(), "ctrl+c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := (*calls)[0]
	if got.args[0] != "key" || got.args[1] != "ctrl+c" {
		t.Errorf("unexpected args: %v", got.args)
	}
}

func TestPressKeys_InvalidKey(t *testing.T) {
	d, calls := recordingDriver()

	err := d.PressKeys(context.Background(), "not_a_key")
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
	if len(*calls) != 0 {
		t.Error("no command should run for an invalid key")
	}
}

func TestScroll_Direction(t *testing.T) {
	requireLinux(t)

	t.Run("down", func(t *testing.T) {
		d, calls := recordingDriver()
		if err := d.Scroll(context.Background(), 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := (*calls)[0]
		want := []string{"click", "--repeat", "3", "5"}
		for i := range want {
			if got.args[i] != want[i] {
				t.Fatalf("args = %v, want %v", got.args, want)
			}
		}
	})

	t.Run("up", func(t *testing.T) {
		d, calls := recordingDriver()
		if err := d.Scroll(context.Background(), -2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := (*calls)[0]
		want := []string{"click", "--repeat", "2", "4"}
		for i := range want {
			if got.args[i] != want[i] {
				t.Fatalf("args = %v, want %v", got.args, want)
			}
		}
	})
}

func TestScroll_ZeroRunsNothing(t *testing.T) {
	d, calls := recordingDriver()
	if err := d.Scroll(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("expected no commands, got %v", *calls)
	}
}

func TestTypeText_EmptyRunsNothing(t *testing.T) {
	d, calls := recordingDriver()
	if err := d.TypeText(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("expected no commands, got %v", *calls)
	}
}

func TestDrag_Command(t *testing.T) {
	requireLinux(t)
	d, calls := recordingDriver()

	if err := d.Drag(context.Background(), 10, 20, 30, 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := (*calls)[0]
	want := []string{"mousemove", "10", "20", "mousedown", "1", "mousemove", "30", "40", "mouseup", "1"}
	if len(got.args) != len(want) {
		t.Fatalf("args = %v, want %v", got.args, want)
	}
	for i := range want {
		if got.args[i] != want[i] {
			t.Fatalf("args = %v, want %v", got.args, want)
		}
	}
}

func TestCommandErrorSkipsPause(t *testing.T) {
	d := NewSystemDriver(0)
	wantErr := errors.New("tool exploded")
	d.run = func(ctx context.Context, name string, args ...string) error {
		return wantErr
	}

	start := time.Now()
	err := d.ClickAt(context.Background(), 1, 1)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected run error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed >= PauseClick {
		t.Errorf("pause should be skipped on error, took %v", elapsed)
	}
}

func TestPauseInterruptible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, _ := recordingDriver()
	if err := d.Wait(ctx, 5*time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitSleepsAtLeastDuration(t *testing.T) {
	d, _ := recordingDriver()

	start := time.Now()
	if err := d.Wait(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("wait returned after %v, want >= 50ms", elapsed)
	}
}
