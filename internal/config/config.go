package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 是应用配置的根结构体
type Config struct {
	Version  string         `yaml:"version"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Memory   MemoryConfig   `yaml:"memory"`
	Executor ExecutorConfig `yaml:"executor"`
	Loop     LoopConfig     `yaml:"loop"`
	Skills   SkillsConfig   `yaml:"skills"`
	Screen   ScreenConfig   `yaml:"screen"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	IPC      IPCConfig      `yaml:"ipc"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig 模型 Provider 配置
type ProviderConfig struct {
	Name           string `yaml:"name"`     // openai | ollama
	Model          string `yaml:"model"`    // 视觉模型名称
	APIKey         string `yaml:"api_key"`  // 云端 Provider 的 API Key
	Endpoint       string `yaml:"endpoint"` // 空值使用 Provider 默认地址
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout 返回 Provider 请求超时
func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MemoryConfig 会话记忆配置
type MemoryConfig struct {
	KeepImages           int `yaml:"keep_images"`            // memory.keep.images
	TokenThreshold       int `yaml:"token_threshold"`        // memory.token.threshold
	KeepRecentMessages   int `yaml:"keep_recent_messages"`   // memory.keep.recent.messages
	SessionRetentionDays int `yaml:"session_retention_days"` // memory.session.retention.days
	CleanupIntervalMS    int `yaml:"cleanup_interval_ms"`    // memory.cleanup.interval.ms
}

// CleanupInterval 返回维护任务执行间隔
func (c MemoryConfig) CleanupInterval() time.Duration {
	if c.CleanupIntervalMS <= 0 {
		return time.Hour
	}
	return time.Duration(c.CleanupIntervalMS) * time.Millisecond
}

// ExecutorConfig 执行器配置
type ExecutorConfig struct {
	MaxCorrections       int `yaml:"max_corrections"`        // executor.max.corrections
	ActionTimeoutSeconds int `yaml:"action_timeout_seconds"` // executor.action.timeout.seconds
	ToolWaitMS           int `yaml:"tool_wait_ms"`           // executor.tool.wait.ms
}

// ActionTimeout 返回单个动作的超时
func (c ExecutorConfig) ActionTimeout() time.Duration {
	if c.ActionTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ActionTimeoutSeconds) * time.Second
}

// ToolWait 返回工具调用后的等待时间
func (c ExecutorConfig) ToolWait() time.Duration {
	if c.ToolWaitMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ToolWaitMS) * time.Millisecond
}

// LoopConfig 决策循环配置
type LoopConfig struct {
	MaxIterations          int `yaml:"max_iterations"`           // loop.max.iterations
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"` // loop.max.consecutive.failures
	DeadlineSeconds        int `yaml:"deadline_seconds"`         // loop.deadline.seconds, 0 表示不限
}

// Deadline 返回单个目标的最长执行时间，0 表示不限制
func (c LoopConfig) Deadline() time.Duration {
	if c.DeadlineSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// SkillsConfig 技能目录配置
type SkillsConfig struct {
	Dir string `yaml:"dir"`
}

// ScreenConfig 截屏配置
type ScreenConfig struct {
	MaxWidth    int `yaml:"max_width"`    // 编码前的最大宽度，0 表示不缩放
	JPEGQuality int `yaml:"jpeg_quality"` // JPEG 质量 1-100
}

// GatewayConfig 网关配置
type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IPCConfig 控制通道配置
type IPCConfig struct {
	Socket string `yaml:"socket"` // 空值使用平台默认路径
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load 加载配置
// 优先级: ENV > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("PILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			// 文件不存在时使用默认值，解析错误则返回
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, err
			}
			if !os.IsNotExist(err) {
				var pathErr *os.PathError
				if !errors.As(err, &pathErr) {
					return nil, err
				}
			}
		}
	}

	cfg := fromViper()
	globalConfig = cfg
	return cfg, nil
}

// fromViper 从 viper 读出类型化配置
// 规范键名均为点分隔小写（如 memory.keep.images），见 defaults.go
func fromViper() *Config {
	return &Config{
		Version: viper.GetString("version"),
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			File:   viper.GetString("log.file"),
		},
		Storage: StorageConfig{
			Path: viper.GetString("storage.path"),
		},
		Provider: ProviderConfig{
			Name:           viper.GetString("provider.name"),
			Model:          viper.GetString("provider.model"),
			APIKey:         viper.GetString("provider.api.key"),
			Endpoint:       viper.GetString("provider.endpoint"),
			MaxTokens:      viper.GetInt("provider.max.tokens"),
			TimeoutSeconds: viper.GetInt("provider.timeout.seconds"),
		},
		Memory: MemoryConfig{
			KeepImages:           viper.GetInt("memory.keep.images"),
			TokenThreshold:       viper.GetInt("memory.token.threshold"),
			KeepRecentMessages:   viper.GetInt("memory.keep.recent.messages"),
			SessionRetentionDays: viper.GetInt("memory.session.retention.days"),
			CleanupIntervalMS:    viper.GetInt("memory.cleanup.interval.ms"),
		},
		Executor: ExecutorConfig{
			MaxCorrections:       viper.GetInt("executor.max.corrections"),
			ActionTimeoutSeconds: viper.GetInt("executor.action.timeout.seconds"),
			ToolWaitMS:           viper.GetInt("executor.tool.wait.ms"),
		},
		Loop: LoopConfig{
			MaxIterations:          viper.GetInt("loop.max.iterations"),
			MaxConsecutiveFailures: viper.GetInt("loop.max.consecutive.failures"),
			DeadlineSeconds:        viper.GetInt("loop.deadline.seconds"),
		},
		Skills: SkillsConfig{
			Dir: viper.GetString("skills.dir"),
		},
		Screen: ScreenConfig{
			MaxWidth:    viper.GetInt("screen.max.width"),
			JPEGQuality: viper.GetInt("screen.jpeg.quality"),
		},
		Gateway: GatewayConfig{
			Host: viper.GetString("gateway.host"),
			Port: viper.GetInt("gateway.port"),
		},
		IPC: IPCConfig{
			Socket: viper.GetString("ipc.socket"),
		},
	}
}

// GetConfig 获取当前配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Get 获取任意配置键值
func Get(key string) any {
	return viper.Get(key)
}

// GetString 获取字符串配置值
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt 获取整数配置值
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool 获取布尔配置值
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Set 设置配置值并持久化
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)
	globalConfig = fromViper()

	if configPath != "" {
		return save()
	}
	return nil
}

// Save 保存配置到文件
func Save() error {
	mu.Lock()
	defer mu.Unlock()
	return save()
}

// save 内部保存函数，调用者需要持有锁
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	// 配置可能包含 API Key，使用 0600
	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o600)
}

// Reset 重置配置（主要用于测试）
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
