package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 验证默认值
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("log.format = %q, want console", cfg.Log.Format)
	}
	if cfg.Memory.KeepImages != 10 {
		t.Errorf("memory.keep.images = %d, want 10", cfg.Memory.KeepImages)
	}
	if cfg.Memory.TokenThreshold != 100000 {
		t.Errorf("memory.token.threshold = %d, want 100000", cfg.Memory.TokenThreshold)
	}
	if cfg.Memory.KeepRecentMessages != 10 {
		t.Errorf("memory.keep.recent.messages = %d, want 10", cfg.Memory.KeepRecentMessages)
	}
	if cfg.Memory.SessionRetentionDays != 30 {
		t.Errorf("memory.session.retention.days = %d, want 30", cfg.Memory.SessionRetentionDays)
	}
	if cfg.Memory.CleanupIntervalMS != 3600000 {
		t.Errorf("memory.cleanup.interval.ms = %d, want 3600000", cfg.Memory.CleanupIntervalMS)
	}
	if cfg.Executor.MaxCorrections != 5 {
		t.Errorf("executor.max.corrections = %d, want 5", cfg.Executor.MaxCorrections)
	}
	if cfg.Executor.ActionTimeoutSeconds != 30 {
		t.Errorf("executor.action.timeout.seconds = %d, want 30", cfg.Executor.ActionTimeoutSeconds)
	}
	if cfg.Executor.ToolWaitMS != 500 {
		t.Errorf("executor.tool.wait.ms = %d, want 500", cfg.Executor.ToolWaitMS)
	}
	if cfg.Loop.MaxIterations != 50 {
		t.Errorf("loop.max.iterations = %d, want 50", cfg.Loop.MaxIterations)
	}
	if cfg.Loop.MaxConsecutiveFailures != 5 {
		t.Errorf("loop.max.consecutive.failures = %d, want 5", cfg.Loop.MaxConsecutiveFailures)
	}
	if cfg.Gateway.Port != 8791 {
		t.Errorf("gateway.port = %d, want 8791", cfg.Gateway.Port)
	}
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Errorf("gateway.host = %q, want 127.0.0.1", cfg.Gateway.Host)
	}
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	// 创建配置文件
	content := `
log:
  level: debug
  format: json
loop:
  max:
    iterations: 25
memory:
  keep:
    images: 4
provider:
  name: ollama
  model: qwen2.5vl
`
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 验证文件中的值覆盖了默认值
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Loop.MaxIterations != 25 {
		t.Errorf("loop.max.iterations = %d, want 25", cfg.Loop.MaxIterations)
	}
	if cfg.Memory.KeepImages != 4 {
		t.Errorf("memory.keep.images = %d, want 4", cfg.Memory.KeepImages)
	}
	if cfg.Provider.Name != "ollama" {
		t.Errorf("provider.name = %q, want ollama", cfg.Provider.Name)
	}

	// 验证未在文件中指定的值使用默认值
	if cfg.Loop.MaxConsecutiveFailures != 5 {
		t.Error("loop.max.consecutive.failures should use default value 5")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	// 设置环境变量
	t.Setenv("PILOT_LOOP_MAX_ITERATIONS", "12")
	t.Setenv("PILOT_LOG_LEVEL", "warn")
	t.Setenv("PILOT_MEMORY_TOKEN_THRESHOLD", "50000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 验证环境变量覆盖了默认值
	if cfg.Loop.MaxIterations != 12 {
		t.Errorf("loop.max.iterations = %d, want 12", cfg.Loop.MaxIterations)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Memory.TokenThreshold != 50000 {
		t.Errorf("memory.token.threshold = %d, want 50000", cfg.Memory.TokenThreshold)
	}
}

func TestLoad_Priority(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
loop:
  max:
    iterations: 25
`
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// 环境变量优先级高于配置文件
	t.Setenv("PILOT_LOOP_MAX_ITERATIONS", "7")

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Loop.MaxIterations != 7 {
		t.Errorf("ENV should override file: loop.max.iterations = %d, want 7", cfg.Loop.MaxIterations)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should not fail: %v", err)
	}
	if cfg.Loop.MaxIterations != 50 {
		t.Errorf("loop.max.iterations = %d, want default 50", cfg.Loop.MaxIterations)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("log: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("expected parse error for malformed config")
	}
}

func TestSetAndSave(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")

	// 先加载以设置配置路径
	if _, err := Load(configFile); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := Set("provider.model", "gpt-4o-mini"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Set 应当同步全局配置并写入文件
	if got := GetConfig().Provider.Model; got != "gpt-4o-mini" {
		t.Errorf("provider.model = %q, want gpt-4o-mini", got)
	}
	if GetString("provider.model") != "gpt-4o-mini" {
		t.Errorf("GetString = %q, want gpt-4o-mini", GetString("provider.model"))
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("config file is empty")
	}
}

func TestDurationHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"cleanup default", MemoryConfig{}.CleanupInterval(), time.Hour},
		{"cleanup explicit", MemoryConfig{CleanupIntervalMS: 1000}.CleanupInterval(), time.Second},
		{"action timeout default", ExecutorConfig{}.ActionTimeout(), 30 * time.Second},
		{"tool wait explicit", ExecutorConfig{ToolWaitMS: 250}.ToolWait(), 250 * time.Millisecond},
		{"deadline disabled", LoopConfig{}.Deadline(), 0},
		{"provider timeout default", ProviderConfig{}.Timeout(), 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
