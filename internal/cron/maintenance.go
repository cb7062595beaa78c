// Package cron runs the daemon's periodic housekeeping: session retention,
// screenshot pruning and a heap snapshot in the log.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pilot/internal/storage"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultRetention  = 30 * 24 * time.Hour
	DefaultKeepImages = 10

	// hourlySpec 每小时整点触发（六段式，含秒）
	hourlySpec = "0 0 * * * *"
)

// Config wires the maintenance scheduler.
type Config struct {
	Store *storage.Store

	// Retention is how long idle sessions are kept.
	Retention time.Duration

	// KeepImages is how many screenshot messages the current session keeps.
	KeepImages int

	// Spec overrides the schedule, in robfig six-field syntax.
	Spec string

	Location *time.Location
	Logger   *slog.Logger
}

// Maintenance owns the housekeeping schedule. One instance per daemon.
type Maintenance struct {
	cron   *cron.Cron
	store  *storage.Store
	logger *slog.Logger

	retention  time.Duration
	keepImages int
	spec       string

	mu      sync.Mutex
	running bool
}

// SpecForInterval renders a configured interval as a cron spec. The
// default interval keeps the on-the-hour schedule; anything else runs on
// a rolling @every timer.
func SpecForInterval(interval time.Duration) string {
	if interval <= 0 || interval == time.Hour {
		return hourlySpec
	}
	return "@every " + interval.String()
}

// New creates the maintenance scheduler.
func New(cfg Config) *Maintenance {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.KeepImages <= 0 {
		cfg.KeepImages = DefaultKeepImages
	}
	if cfg.Spec == "" {
		cfg.Spec = hourlySpec
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cron.PrintfLogger(slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelDebug))),
	)

	return &Maintenance{
		cron:       c,
		store:      cfg.Store,
		logger:     cfg.Logger,
		retention:  cfg.Retention,
		keepImages: cfg.KeepImages,
		spec:       cfg.Spec,
	}
}

// Start registers the housekeeping entry and starts the schedule.
func (m *Maintenance) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("maintenance already running")
	}

	if _, err := m.cron.AddFunc(m.spec, m.runScheduled); err != nil {
		return err
	}

	m.cron.Start()
	m.running = true
	m.logger.Info("maintenance scheduler started",
		"spec", m.spec,
		"retention", m.retention,
		"keep_images", m.keepImages)
	return nil
}

// Stop stops the schedule. The returned context is done once a run in
// flight has finished.
func (m *Maintenance) Stop() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	m.running = false
	return m.cron.Stop()
}

func (m *Maintenance) runScheduled() {
	if _, err := m.RunNow(); err != nil {
		m.logger.Error("maintenance run failed", "error", err)
	}
}

// Result summarizes one housekeeping run.
type Result struct {
	SessionsDeleted int64 `json:"sessions_deleted"`
	ExpiredKVKeys   int64 `json:"expired_kv_keys"`
	ImagesPruned    int64 `json:"images_pruned"`
}

// RunNow executes one housekeeping pass immediately: expired sessions and
// KV keys first, then the current session's screenshot backlog, then a
// heap snapshot in the log.
func (m *Maintenance) RunNow() (*Result, error) {
	start := time.Now()

	mr, err := m.store.Maintenance(m.retention)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SessionsDeleted: mr.SessionsDeleted,
		ExpiredKVKeys:   mr.ExpiredKVKeys,
	}

	sess, err := m.store.Current()
	if err != nil {
		return nil, err
	}
	pruned, err := m.store.DB().CleanupOldImages(sess.ID, m.keepImages)
	if err != nil {
		return nil, err
	}
	result.ImagesPruned = pruned

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.logger.Info("maintenance run finished",
		"sessions_deleted", result.SessionsDeleted,
		"expired_kv_keys", result.ExpiredKVKeys,
		"images_pruned", result.ImagesPruned,
		"heap_alloc_mb", ms.HeapAlloc/1024/1024,
		"goroutines", runtime.NumGoroutine(),
		"duration", time.Since(start).Round(time.Millisecond))

	return result, nil
}
