package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://127.0.0.1:8791"

// NewSessionCmd creates the session command.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect conversation sessions",
		Long:  `List sessions, view their messages and reset the current one.`,
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionResetCmd())

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(serverURL, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Pilot daemon URL")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var (
		serverURL     string
		includeImages bool
	)

	cmd := &cobra.Command{
		Use:   "show <session-key>",
		Short: "Show a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(serverURL, args[0], includeImages)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Pilot daemon URL")
	cmd.Flags().BoolVar(&includeImages, "images", false, "include screenshot payloads")

	return cmd
}

func newSessionResetCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Abandon the current session and start fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionReset(serverURL)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Pilot daemon URL")

	return cmd
}

type sessionJSON struct {
	ID           int64     `json:"id"`
	SessionKey   string    `json:"session_key"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int       `json:"message_count"`
	TotalTokens  int       `json:"total_tokens"`
}

type messageJSON struct {
	Type       string    `json:"message_type"`
	Content    string    `json:"content"`
	HasImage   bool      `json:"has_image"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func runSessionList(serverURL string, limit int, jsonOutput bool) error {
	client := &http.Client{Timeout: 30 * time.Second}

	url := fmt.Sprintf("%s/api/v1/sessions?limit=%d", serverURL, limit)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w\nIs it running? Start it with: pilot serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, string(body))
	}

	var list struct {
		Sessions []sessionJSON `json:"sessions"`
		Count    int           `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list.Sessions)
	}

	if len(list.Sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCREATED\tLAST ACTIVE\tMESSAGES\tTOKENS")
	fmt.Fprintln(w, "---\t-------\t-----------\t--------\t------")

	for _, s := range list.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			s.SessionKey,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.LastActiveAt.Format("2006-01-02 15:04"),
			s.MessageCount,
			s.TotalTokens,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d sessions\n", list.Count)

	return nil
}

func runSessionShow(serverURL, sessionKey string, includeImages bool) error {
	client := &http.Client{Timeout: 30 * time.Second}

	url := fmt.Sprintf("%s/api/v1/sessions/%s/messages", serverURL, sessionKey)
	if includeImages {
		url += "?include_images=true"
	}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session not found: %s", sessionKey)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, string(body))
	}

	var list struct {
		SessionKey string        `json:"session_key"`
		Messages   []messageJSON `json:"messages"`
		Count      int           `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Session: %s\n", list.SessionKey)
	fmt.Printf("Messages: %d\n", list.Count)
	fmt.Println()

	for _, msg := range list.Messages {
		content := msg.Content
		if !includeImages && len(content) > 200 {
			content = content[:200] + "..."
		}

		fmt.Printf("[%s] %s (%d tokens)\n", msg.Type, msg.CreatedAt.Format("15:04:05"), msg.TokenCount)
		fmt.Println(content)
		fmt.Println()
	}

	return nil
}

func runSessionReset(serverURL string) error {
	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Post(serverURL+"/api/v1/sessions/reset", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, string(body))
	}

	var sess sessionJSON
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("✓ New session: %s\n", sess.SessionKey)
	return nil
}
