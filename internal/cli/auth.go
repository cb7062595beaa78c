package cli

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pilot/internal/config"
)

// NewAuthCmd creates the auth command.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the model provider API key",
		Long:  `Store, inspect or remove the API key used by the model provider.`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Configure the provider API key",
		Long: `Configure the API key for the configured model provider.

The key is stored in the Pilot configuration file with 0600 permissions.
Local providers such as ollama do not need a key.`,
		Example: `  # Interactive login (hidden input)
  pilot auth login

  # Provide the key directly
  pilot auth login --key sk-xxxxx`,
		RunE: runAuthLogin,
	}

	cmd.Flags().StringP("key", "k", "", "API key (if not provided, will prompt)")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		RunE:  runAuthLogout,
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the authentication status",
		RunE:  runAuthStatus,
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	log := cliCtx.Logger

	key, _ := cmd.Flags().GetString("key")

	if key == "" {
		fmt.Printf("Provider: %s\n", cliCtx.Config.Provider.Name)
		fmt.Print("Enter API key: ")

		// 隐藏输入
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key = strings.TrimSpace(string(keyBytes))
		fmt.Println()
	}

	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := config.Set("provider.api.key", key); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("✓ API key saved")
	fmt.Printf("Configuration: %s\n", cliCtx.ConfigPath)

	log.Info().Msg("Provider API key configured")
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	if cliCtx.Config.Provider.APIKey == "" {
		fmt.Println("No API key configured.")
		return nil
	}

	if err := config.Set("provider.api.key", ""); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("✓ API key removed")
	cliCtx.Log().Info().Msg("Provider API key cleared")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config

	fmt.Printf("Provider: %s\n", cfg.Provider.Name)
	fmt.Printf("Model:    %s\n", cfg.Provider.Model)

	if cfg.Provider.APIKey == "" {
		if cfg.Provider.Name == "ollama" {
			fmt.Println("Status:   ✓ No key needed (local provider)")
			return nil
		}
		fmt.Println("Status:   ✗ No API key configured")
		fmt.Println("\nRun 'pilot auth login' to configure one.")
		return nil
	}

	fmt.Printf("Status:   ✓ Key configured (%s)\n", maskKey(cfg.Provider.APIKey))
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
