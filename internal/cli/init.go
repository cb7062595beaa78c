package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pilot/internal/cli/defaults"
	"pilot/internal/config"
	"pilot/internal/storage"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// InitOptions init 命令选项
type InitOptions struct {
	Force bool
}

// NewInitCmd 创建 init 命令
func NewInitCmd() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize pilot configuration",
		Long:  "Initialize pilot configuration directory, database and starter skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunInit(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// RunInit 执行初始化
func RunInit(opts *InitOptions) error {
	// 获取配置目录
	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return fmt.Errorf("get config dir: %w", err)
	}

	// 检查是否已存在
	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	// 创建目录结构
	dirs := []string{
		configDir,
		filepath.Join(configDir, "logs"),
		filepath.Join(configDir, "skills"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	// 生成默认配置
	defaultConfig := map[string]any{
		"gateway": map[string]any{
			"host": "127.0.0.1",
			"port": 8791,
		},
		"provider": map[string]any{
			"name":  "openai", // 可选 "ollama"
			"model": "gpt-4o",
		},
		"log": map[string]any{
			"level":  "info",
			"format": "console",
		},
		"loop": map[string]any{
			"max": map[string]any{
				"iterations": 50,
			},
		},
		"screen": map[string]any{
			"max": map[string]any{
				"width": 1512,
			},
		},
	}

	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// 配置后续可能写入 API Key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// 初始化数据库
	dataPath, err := config.DefaultDataPath()
	if err != nil {
		return fmt.Errorf("get data path: %w", err)
	}

	db, err := storage.Open(dataPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	db.Close()

	// Copy starter skills
	if err := copyDefaultSkills(configDir, opts.Force); err != nil {
		fmt.Printf("Warning: failed to copy starter skills: %v\n", err)
	}

	fmt.Printf("Initialized pilot at %s\n", configDir)
	fmt.Printf("  Config: %s\n", configPath)
	fmt.Printf("  Database: %s\n", dataPath)
	fmt.Printf("  Skills: %s\n", filepath.Join(configDir, "skills"))
	fmt.Println()
	fmt.Println("Next: pilot auth login, then pilot serve")

	return nil
}

// copyDefaultSkills copies embedded starter skills to the user's skills directory.
func copyDefaultSkills(configDir string, force bool) error {
	skillsDir := filepath.Join(configDir, "skills")
	defaultsFS := defaults.GetDefaultsFS()

	return fs.WalkDir(defaultsFS, "skills", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == "skills" {
			return nil
		}

		relPath, err := filepath.Rel("skills", path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(skillsDir, relPath)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		// Skip if file already exists and not forcing
		if _, err := os.Stat(destPath); err == nil && !force {
			return nil
		}

		data, err := defaultsFS.ReadFile(path)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}

		return os.WriteFile(destPath, data, 0644)
	})
}
