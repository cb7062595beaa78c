package cron

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pilot/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewStore(db)
}

func TestRunNowPrunesImageBacklog(t *testing.T) {
	store := newTestStore(t)
	m := New(Config{Store: store, KeepImages: 3})

	sess, err := store.Current()
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := store.SaveMessage(storage.MessageTypeUser,
			fmt.Sprintf("frame %d", i), true, 10); err != nil {
			t.Fatalf("save message: %v", err)
		}
	}
	if _, err := store.SaveMessage(storage.MessageTypeAssistant, "text only", false, 5); err != nil {
		t.Fatalf("save message: %v", err)
	}

	result, err := m.RunNow()
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}

	if result.ImagesPruned != 2 {
		t.Errorf("images pruned = %d, want 2", result.ImagesPruned)
	}
	images, err := store.DB().CountImageMessages(sess.ID)
	if err != nil {
		t.Fatalf("count images: %v", err)
	}
	if images != 3 {
		t.Errorf("remaining images = %d, want 3", images)
	}
	total, err := store.DB().CountMessages(sess.ID)
	if err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if total != 4 {
		t.Errorf("remaining messages = %d, want text message untouched", total)
	}
}

func TestRunNowKeepsCurrentSession(t *testing.T) {
	store := newTestStore(t)
	m := New(Config{Store: store, Retention: time.Nanosecond})

	sess, err := store.Current()
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.RunNow(); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}

	if _, err := store.DB().GetSession(sess.SessionKey); err != nil {
		t.Errorf("current session was deleted by its own retention run: %v", err)
	}
}

func TestRunNowCleansExpiredKV(t *testing.T) {
	store := newTestStore(t)
	m := New(Config{Store: store})

	if err := store.DB().KVSet("ephemeral", "x", time.Nanosecond); err != nil {
		t.Fatalf("kv set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	result, err := m.RunNow()
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if result.ExpiredKVKeys != 1 {
		t.Errorf("expired kv keys = %d, want 1", result.ExpiredKVKeys)
	}
}

func TestStartRejectsDoubleStart(t *testing.T) {
	store := newTestStore(t)
	m := New(Config{Store: store})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	if err := m.Start(); err == nil {
		t.Error("second Start() must fail")
	}
}

func TestStopWithoutStart(t *testing.T) {
	m := New(Config{Store: newTestStore(t)})
	ctx := m.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop() context never done")
	}
}

func TestSpecForInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     string
	}{
		{"zero keeps hourly", 0, hourlySpec},
		{"default hour keeps hourly", time.Hour, hourlySpec},
		{"custom interval", 10 * time.Minute, "@every 10m0s"},
		{"sub-minute interval", 30 * time.Second, "@every 30s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpecForInterval(tt.interval); got != tt.want {
				t.Errorf("SpecForInterval(%v) = %q, want %q", tt.interval, got, tt.want)
			}
		})
	}
}

func TestStartAcceptsEverySpec(t *testing.T) {
	m := New(Config{Store: newTestStore(t), Spec: SpecForInterval(10 * time.Minute)})
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.Stop()
}

func TestBadSpecRejected(t *testing.T) {
	m := New(Config{Store: newTestStore(t), Spec: "not a schedule"})
	if err := m.Start(); err == nil {
		m.Stop()
		t.Fatal("Start() accepted an invalid schedule")
	}
}
