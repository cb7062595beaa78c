package cli

import (
	"sync"

	"pilot/internal/config"
	"pilot/internal/storage"
	"pilot/pkg/logger"

	"github.com/rs/zerolog"
)

// CLIContext CLI 上下文
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	StoragePath string
	Verbose     bool
	Quiet       bool

	storageOnce sync.Once
	db          *storage.DB
}

// NewCLIContext 创建 CLI 上下文
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		StoragePath: storagePath,
		Verbose:     verbose,
		Quiet:       quiet,
	}
}

// OpenDB 获取存储连接（懒加载）
func (c *CLIContext) OpenDB() (*storage.DB, error) {
	var err error
	c.storageOnce.Do(func() {
		c.db, err = storage.Open(c.StoragePath)
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// Close 关闭资源
func (c *CLIContext) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Log 获取 Logger
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
