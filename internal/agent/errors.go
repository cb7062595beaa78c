package agent

import "errors"

// ErrAlreadyRunning is returned when ExecuteGoal is called while a
// goal is in flight. One goal per process at a time. Budget exhaustion
// and interruption are not errors; they classify the Result instead.
var ErrAlreadyRunning = errors.New("agent: a goal is already running")
