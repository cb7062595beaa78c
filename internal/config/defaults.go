package config

import (
	"github.com/spf13/viper"
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults() {
	// Log 配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	// Storage 配置，空值使用 ~/.pilot/data.db
	viper.SetDefault("storage.path", "")

	// Provider 配置
	viper.SetDefault("provider.name", "openai")
	viper.SetDefault("provider.model", "gpt-4o")
	viper.SetDefault("provider.api.key", "")
	viper.SetDefault("provider.endpoint", "")
	viper.SetDefault("provider.max.tokens", 4096)
	viper.SetDefault("provider.timeout.seconds", 300)

	// Memory 配置
	viper.SetDefault("memory.keep.images", 10)
	viper.SetDefault("memory.token.threshold", 100000)
	viper.SetDefault("memory.keep.recent.messages", 10)
	viper.SetDefault("memory.session.retention.days", 30)
	viper.SetDefault("memory.cleanup.interval.ms", 3600000)

	// Executor 配置
	viper.SetDefault("executor.max.corrections", 5)
	viper.SetDefault("executor.action.timeout.seconds", 30)
	viper.SetDefault("executor.tool.wait.ms", 500)

	// Loop 配置
	viper.SetDefault("loop.max.iterations", 50)
	viper.SetDefault("loop.max.consecutive.failures", 5)
	viper.SetDefault("loop.deadline.seconds", 0)

	// Skills 配置，空值使用 ~/.pilot/skills
	viper.SetDefault("skills.dir", "")

	// Screen 配置
	viper.SetDefault("screen.max.width", 1512)
	viper.SetDefault("screen.jpeg.quality", 80)

	// Gateway 配置
	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.port", 8791)

	// IPC 配置，空值使用平台默认路径
	viper.SetDefault("ipc.socket", "")
}
