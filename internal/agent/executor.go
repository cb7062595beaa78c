package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pilot/internal/input"
	"pilot/internal/screen"
)

// ClickRecorder receives the positions of executed clicks so the next
// frame can mark them. *screen.Capturer satisfies it.
type ClickRecorder interface {
	SetLastClick(x, y int, label string)
}

// Executor 将一个动作批次展开为底层输入事件，遇到边界动作即停
type Executor struct {
	driver input.Driver
	marks  ClickRecorder
}

// NewExecutor creates an executor over the given driver. marks may be nil.
func NewExecutor(driver input.Driver, marks ClickRecorder) *Executor {
	return &Executor{driver: driver, marks: marks}
}

// ExecuteBatch runs the batch's actions in order against the frame's
// coordinate space. Validation failures and driver errors are recorded
// per action without aborting the batch; a boundary action that is not
// last stops execution and discards the rest, forcing a re-observation.
// A context error stops the batch immediately.
func (e *Executor) ExecuteBatch(ctx context.Context, en *ExecuteNow, frame *screen.Frame) (*BatchResult, error) {
	result := &BatchResult{Intent: en.Intent, AllSuccess: true}
	if len(en.Actions) == 0 {
		return result, nil
	}

	for i, action := range en.Actions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ar := e.executeOne(ctx, action, frame)
		result.Results = append(result.Results, ar)
		result.ExecutedCount++
		if !ar.Success {
			result.AllSuccess = false
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if action.IsBoundary() {
			result.HitBoundary = true
			if i < len(en.Actions)-1 {
				slog.Debug("boundary action, discarding rest of batch",
					"action", action.Describe(),
					"discarded", len(en.Actions)-i-1)
				break
			}
		}
	}

	return result, nil
}

func (e *Executor) executeOne(ctx context.Context, a Action, frame *screen.Frame) ActionResult {
	start := time.Now()
	err := e.dispatch(ctx, a, frame)

	ar := ActionResult{Action: a, Success: err == nil}
	if err != nil {
		ar.Message = err.Error()
		slog.Warn("action failed", "action", a.Describe(), "error", err)
	} else {
		slog.Debug("action executed", "action", a.Describe(),
			"duration", time.Since(start).Round(time.Millisecond))
	}
	return ar
}

func (e *Executor) dispatch(ctx context.Context, a Action, frame *screen.Frame) error {
	switch a.Type {
	case ActionClick, ActionDoubleClick, ActionRightClick:
		if coordsInvalid(a.Coords) {
			return fmt.Errorf("invalid coords %v", a.Coords)
		}
		px, py := frame.ToLogicalSafe(a.Coords[0], a.Coords[1])
		var err error
		switch a.Type {
		case ActionDoubleClick:
			err = e.driver.DoubleClickAt(ctx, px, py)
		case ActionRightClick:
			err = e.driver.RightClickAt(ctx, px, py)
		default:
			err = e.driver.ClickAt(ctx, px, py)
		}
		if err == nil && e.marks != nil {
			e.marks.SetLastClick(px, py, a.Type)
		}
		return err

	case ActionType:
		if a.Text == "" {
			return fmt.Errorf("type action has no text")
		}
		return e.driver.TypeText(ctx, a.Text)

	case ActionKey:
		if a.Key == "" || !input.IsValidKey(a.Key) {
			return fmt.Errorf("invalid key %q", a.Key)
		}
		return e.driver.PressKeys(ctx, a.Key)

	case ActionScroll:
		if a.Amount == nil {
			return fmt.Errorf("scroll action has no amount")
		}
		return e.driver.Scroll(ctx, *a.Amount)

	case ActionDrag:
		if coordsInvalid(a.Coords) || coordsInvalid(a.ToCoords) {
			return fmt.Errorf("invalid drag coords %v -> %v", a.Coords, a.ToCoords)
		}
		fx, fy := frame.ToLogicalSafe(a.Coords[0], a.Coords[1])
		tx, ty := frame.ToLogicalSafe(a.ToCoords[0], a.ToCoords[1])
		err := e.driver.Drag(ctx, fx, fy, tx, ty)
		if err == nil && e.marks != nil {
			e.marks.SetLastClick(tx, ty, ActionDrag)
		}
		return err

	case ActionWait:
		return e.driver.Wait(ctx, time.Duration(a.Duration)*time.Millisecond)

	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}
