package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pilot/internal/config"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose system health",
		Long: `Run diagnostic checks on your Pilot installation.

This command checks:
- Configuration file validity
- Provider API key status
- Screen capture and input tooling
- Database accessibility
- Daemon status`,
		RunE: runDoctor,
	}

	return cmd
}

type checkResult struct {
	name    string
	status  string // ok, warning, error
	message string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Pilot Doctor")
	fmt.Println("============")
	fmt.Println()

	var results []checkResult

	results = append(results, checkSystemInfo())
	results = append(results, checkConfigFile())
	results = append(results, checkProvider())
	results = append(results, checkCaptureTooling())
	results = append(results, checkInputTooling())
	results = append(results, checkDataDirectory())
	results = append(results, checkDaemon())

	fmt.Println()
	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		icon := "✓"
		if r.status == "warning" {
			icon = "⚠️"
			hasWarnings = true
		} else if r.status == "error" {
			icon = "✗"
			hasErrors = true
		}

		fmt.Printf("%s %s: %s\n", icon, r.name, r.message)
	}

	fmt.Println()
	if hasErrors {
		fmt.Println("❌ Some checks failed. Please address the issues above.")
	} else if hasWarnings {
		fmt.Println("⚠️  Some warnings detected. Your setup should work but may have issues.")
	} else {
		fmt.Println("✅ All checks passed! Pilot is ready to use.")
	}

	return nil
}

func checkSystemInfo() checkResult {
	return checkResult{
		name:   "System",
		status: "ok",
		message: fmt.Sprintf("Go %s on %s/%s",
			runtime.Version(),
			runtime.GOOS,
			runtime.GOARCH,
		),
	}
}

func checkConfigFile() checkResult {
	configPath, err := config.DefaultConfigPath()
	if err != nil {
		return checkResult{
			name:    "Config File",
			status:  "error",
			message: fmt.Sprintf("Cannot determine config path: %v", err),
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return checkResult{
			name:    "Config File",
			status:  "warning",
			message: fmt.Sprintf("Not found: %s (using defaults, run: pilot init)", configPath),
		}
	}

	if _, err := config.Load(configPath); err != nil {
		return checkResult{
			name:    "Config File",
			status:  "error",
			message: fmt.Sprintf("Invalid config: %v", err),
		}
	}

	return checkResult{
		name:    "Config File",
		status:  "ok",
		message: fmt.Sprintf("Found: %s", configPath),
	}
}

func checkProvider() checkResult {
	cfg := config.GetConfig()
	if cfg == nil {
		configPath, _ := config.DefaultConfigPath()
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return checkResult{
				name:    "Provider",
				status:  "error",
				message: "Cannot load config to check provider",
			}
		}
	}

	switch cfg.Provider.Name {
	case "ollama":
		return checkResult{
			name:    "Provider",
			status:  "ok",
			message: fmt.Sprintf("ollama (%s), no API key needed", cfg.Provider.Model),
		}
	case "openai":
		if cfg.Provider.APIKey == "" {
			return checkResult{
				name:    "Provider",
				status:  "error",
				message: "No API key configured. Run: pilot auth login",
			}
		}
		return checkResult{
			name:    "Provider",
			status:  "ok",
			message: fmt.Sprintf("openai (%s), key %s", cfg.Provider.Model, maskKey(cfg.Provider.APIKey)),
		}
	default:
		return checkResult{
			name:    "Provider",
			status:  "error",
			message: fmt.Sprintf("Unknown provider: %s", cfg.Provider.Name),
		}
	}
}

func checkCaptureTooling() checkResult {
	if runtime.GOOS != "darwin" {
		return checkResult{
			name:    "Screen Capture",
			status:  "warning",
			message: fmt.Sprintf("Unsupported platform %s (capture requires macOS)", runtime.GOOS),
		}
	}

	if _, err := exec.LookPath("screencapture"); err != nil {
		return checkResult{
			name:    "Screen Capture",
			status:  "error",
			message: "screencapture not found in PATH",
		}
	}

	return checkResult{
		name:    "Screen Capture",
		status:  "ok",
		message: "screencapture available (grant Screen Recording permission on first run)",
	}
}

func checkInputTooling() checkResult {
	if runtime.GOOS != "darwin" {
		return checkResult{
			name:    "Input Driver",
			status:  "warning",
			message: fmt.Sprintf("Unsupported platform %s (input requires macOS)", runtime.GOOS),
		}
	}

	var missing []string
	for _, bin := range []string{"cliclick", "osascript"} {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}

	if len(missing) > 0 {
		return checkResult{
			name:    "Input Driver",
			status:  "error",
			message: fmt.Sprintf("Missing: %s (install cliclick with: brew install cliclick)", strings.Join(missing, ", ")),
		}
	}

	return checkResult{
		name:    "Input Driver",
		status:  "ok",
		message: "cliclick and osascript available (grant Accessibility permission on first run)",
	}
}

func checkDataDirectory() checkResult {
	dataPath, err := config.DefaultDataPath()
	if err != nil {
		return checkResult{
			name:    "Data Directory",
			status:  "error",
			message: fmt.Sprintf("Cannot determine data path: %v", err),
		}
	}

	dir := filepath.Dir(dataPath)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return checkResult{
			name:    "Data Directory",
			status:  "warning",
			message: fmt.Sprintf("Will be created: %s", dir),
		}
	}

	testFile := filepath.Join(dir, ".pilot-test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		return checkResult{
			name:    "Data Directory",
			status:  "error",
			message: fmt.Sprintf("Cannot write to: %s", dir),
		}
	}
	os.Remove(testFile)

	if info, err := os.Stat(dataPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		return checkResult{
			name:    "Data Directory",
			status:  "ok",
			message: fmt.Sprintf("Found: %s (database: %.2f MB)", dir, sizeMB),
		}
	}

	return checkResult{
		name:    "Data Directory",
		status:  "ok",
		message: fmt.Sprintf("Ready: %s (database will be created on first run)", dir),
	}
}

func checkDaemon() checkResult {
	client := &http.Client{Timeout: 5 * time.Second}

	port := 8791
	if cfg := config.GetConfig(); cfg != nil && cfg.Gateway.Port > 0 {
		port = cfg.Gateway.Port
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	resp, err := client.Get(url)
	if err != nil {
		return checkResult{
			name:    "Daemon",
			status:  "warning",
			message: "Not running. Start with: pilot serve",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var health map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&health); err == nil {
			status, _ := health["status"].(string)
			version, _ := health["version"].(string)
			return checkResult{
				name:    "Daemon",
				status:  "ok",
				message: fmt.Sprintf("Running on port %d (status: %s, version: %s)", port, status, version),
			}
		}
		return checkResult{
			name:    "Daemon",
			status:  "ok",
			message: fmt.Sprintf("Running on port %d", port),
		}
	}

	return checkResult{
		name:    "Daemon",
		status:  "warning",
		message: fmt.Sprintf("Unexpected health status %d on port %d", resp.StatusCode, port),
	}
}
