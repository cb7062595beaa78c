package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pilot/internal/ipc"
)

// NewCtlCmd creates the ctl command group.
func NewCtlCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running daemon",
		Long: `Talk to a running Pilot daemon over its control socket.

The daemon must have been started with: pilot serve`,
	}

	cmd.PersistentFlags().StringVar(&socketPath, "socket", "", "control socket path (default: platform path)")

	cmd.AddCommand(newCtlGoalCmd(&socketPath))
	cmd.AddCommand(newCtlInterruptCmd(&socketPath))
	cmd.AddCommand(newCtlStatusCmd(&socketPath))
	cmd.AddCommand(newCtlPingCmd(&socketPath))

	return cmd
}

func ctlClient(socketPath string) *ipc.Client {
	opts := []ipc.ClientOption{ipc.WithTimeout(10 * time.Second)}
	if socketPath != "" {
		opts = append(opts, ipc.WithSocketPath(socketPath))
	}
	return ipc.NewClient(opts...)
}

func newCtlGoalCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "goal <text>",
		Short: "Submit a goal to the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")

			client := ctlClient(*socketPath)
			reply, err := client.Request(cmd.Context(),
				ipc.NewMessage(ipc.MsgSubmitGoal).
					WithPayload(&ipc.SubmitGoalPayload{Goal: goal}))
			if err != nil {
				return err
			}

			var p ipc.ResultPayload
			if err := reply.ParsePayload(&p); err != nil {
				return fmt.Errorf("unreadable reply: %w", err)
			}

			fmt.Printf("✓ Goal %s: %s\n", p.Status, goal)
			fmt.Println("Follow progress with: pilot ctl status")
			return nil
		},
	}
}

func newCtlInterruptCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt",
		Short: "Interrupt the running goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctlClient(*socketPath)
			if _, err := client.Request(cmd.Context(), ipc.NewMessage(ipc.MsgInterrupt)); err != nil {
				return err
			}

			fmt.Println("✓ Interrupt requested")
			return nil
		},
	}
}

func newCtlStatusCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's goal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctlClient(*socketPath)
			reply, err := client.Request(cmd.Context(), ipc.NewMessage(ipc.MsgStatus))
			if err != nil {
				return err
			}

			var p ipc.StatusPayload
			if err := reply.ParsePayload(&p); err != nil {
				return fmt.Errorf("unreadable reply: %w", err)
			}

			fmt.Printf("State: %s\n", p.State)
			if p.Goal != "" {
				fmt.Printf("Goal:  %s\n", p.Goal)
			}
			return nil
		},
	}
}

func newCtlPingCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctlClient(*socketPath)

			start := time.Now()
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("daemon not reachable: %w\nStart it with: pilot serve", err)
			}

			fmt.Printf("✓ Daemon is up (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
