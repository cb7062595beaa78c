// Package events carries the typed event stream emitted while a goal runs.
// Subscribers get their own buffered channel; delivery never blocks the loop.
package events

import (
	"encoding/json"
	"time"
)

// Type 事件类型，值即对外的 wire 名称
type Type string

const (
	GoalStarted      Type = "goal_started"
	IterationStarted Type = "iteration_started"
	RoundStarted     Type = "round_started"
	ActionExecuted   Type = "action_executed"
	ActionFailed     Type = "action_failed"
	RoundFinished    Type = "round_finished"
	GoalCompleted    Type = "goal_completed"
	GoalFailed       Type = "goal_failed"
	GoalInterrupted  Type = "goal_interrupted"

	// 语音合成事件由外部协作进程产生，这里只做转发
	TTSAudio Type = "tts_audio"
	TTSSkip  Type = "tts_skip"
	TTSError Type = "tts_error"
)

// Event 统一信封，Timestamp 为 unix 毫秒
type Event struct {
	Type      Type  `json:"type"`
	Data      any   `json:"data,omitempty"`
	Timestamp int64 `json:"timestamp"`
}

// New 构造带当前时间戳的事件
func New(t Type, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().UnixMilli()}
}

// GoalStartedData 新目标开始执行
type GoalStartedData struct {
	Goal       string `json:"goal"`
	SessionKey string `json:"session_key,omitempty"`
}

// IterationStartedData 感知-决策-执行循环进入新一轮
type IterationStartedData struct {
	Iteration     int `json:"iteration"`
	MaxIterations int `json:"max_iterations"`
}

// RoundStartedData 模型给出了本轮决策
type RoundStartedData struct {
	Iteration   int    `json:"iteration"`
	Thought     string `json:"thought"`
	Intent      string `json:"intent,omitempty"`
	ActionCount int    `json:"action_count"`
}

// ActionExecutedData 单个动作执行成功
type ActionExecutedData struct {
	Iteration  int    `json:"iteration"`
	Index      int    `json:"index"`
	Action     string `json:"action"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ActionFailedData 单个动作执行失败
type ActionFailedData struct {
	Iteration int    `json:"iteration"`
	Index     int    `json:"index"`
	Action    string `json:"action"`
	Error     string `json:"error"`
}

// RoundFinishedData 本轮动作批次执行完毕
type RoundFinishedData struct {
	Iteration   int  `json:"iteration"`
	Executed    int  `json:"executed"`
	Total       int  `json:"total"`
	AllSuccess  bool `json:"all_success"`
	HitBoundary bool `json:"hit_boundary"`
}

// GoalCompletedData 目标完成
type GoalCompletedData struct {
	Summary           string `json:"summary"`
	Iterations        int    `json:"iterations"`
	SuccessfulActions int    `json:"successful_actions"`
	FailedActions     int    `json:"failed_actions"`
}

// GoalFailedData 目标失败
type GoalFailedData struct {
	Reason     string `json:"reason"`
	Iterations int    `json:"iterations"`
}

// GoalInterruptedData 目标被用户中断
type GoalInterruptedData struct {
	Iterations int `json:"iterations"`
}

// RelayData 外部协作进程事件的透传载荷
type RelayData = json.RawMessage
