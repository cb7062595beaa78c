package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	v1 "pilot/api/v1"
	"pilot/internal/agent"
	"pilot/internal/compaction"
	"pilot/internal/config"
	"pilot/internal/cron"
	"pilot/internal/events"
	"pilot/internal/gateway"
	"pilot/internal/input"
	"pilot/internal/ipc"
	"pilot/internal/jsvm"
	"pilot/internal/provider"
	"pilot/internal/provider/ollama"
	"pilot/internal/provider/openai"
	"pilot/internal/screen"
	"pilot/internal/skills"
	"pilot/internal/storage"
	"pilot/internal/tools/builtin"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Pilot daemon",
		Long: `Start the Pilot daemon.

The daemon runs the decision loop and exposes:
- A REST API and WebSocket event stream on the loopback gateway
- A local control socket for the ctl command
- Hourly session maintenance

The gateway listens on the configured host and port (default: 127.0.0.1:8791).`,
		Example: `  # Start the daemon with default configuration
  pilot serve

  # Start with a custom port
  pilot serve --port 8080

  # Start with verbose logging
  pilot serve --verbose`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Logger

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Gateway.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Gateway.Host = host
	}

	log.Info().Msg("Starting Pilot daemon...")

	// Storage
	db, err := storage.Open(cliCtx.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer db.Close()
	store := storage.NewStore(db)

	// Event bus
	bus := events.NewBus()
	defer bus.Close()

	// Model provider
	prov, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	// Perception and input
	capturer := screen.New(screen.Config{
		MaxWidth:    cfg.Screen.MaxWidth,
		JPEGQuality: cfg.Screen.JPEGQuality,
	})
	driver := input.NewSystemDriver(cfg.Executor.ActionTimeout())
	if err := driver.Check(); err != nil {
		log.Warn().Err(err).Msg("Input driver check failed, actions may not work")
	}

	// Tools and skills
	registry := builtin.NewRegistryWithBuiltins()

	skillsDir := cfg.Skills.Dir
	if skillsDir == "" {
		skillsDir, err = config.DefaultSkillsDir()
		if err != nil {
			return fmt.Errorf("failed to determine skills dir: %w", err)
		}
	}
	skillsMgr := skills.NewManager(skillsDir)
	if err := skillsMgr.LoadAll(); err != nil {
		log.Warn().Err(err).Str("dir", skillsDir).Msg("Failed to load skills")
	}

	watcherCtx, stopWatcher := context.WithCancel(cmd.Context())
	defer stopWatcher()
	if watcher, err := skills.NewWatcher(skillsMgr); err != nil {
		log.Warn().Err(err).Msg("Skills hot-reload disabled")
	} else {
		watcher.Start(watcherCtx)
		defer watcher.Close()
	}

	jsRuntime := jsvm.NewRuntime(jsvm.DefaultRuntimeConfig())
	defer jsRuntime.Close()

	// History compression
	compactCfg := compaction.DefaultConfig()
	if cfg.Memory.TokenThreshold > 0 {
		compactCfg.TokenThreshold = cfg.Memory.TokenThreshold
	}
	if cfg.Memory.KeepRecentMessages > 0 {
		compactCfg.KeepRecentCount = cfg.Memory.KeepRecentMessages
	}
	compactor := compaction.NewCompactor(compactCfg, prov)

	// Decision loop
	orch := agent.New(agent.Config{
		Provider:               prov,
		Model:                  cfg.Provider.Model,
		Capturer:               capturer,
		Driver:                 driver,
		Tools:                  registry,
		Skills:                 skillsMgr,
		JSRuntime:              jsRuntime,
		Store:                  store,
		Bus:                    bus,
		Compactor:              compactor,
		MaxIterations:          cfg.Loop.MaxIterations,
		MaxConsecutiveFailures: cfg.Loop.MaxConsecutiveFailures,
		MaxCorrections:         cfg.Executor.MaxCorrections,
		Deadline:               cfg.Loop.Deadline(),
		ToolTimeout:            cfg.Executor.ActionTimeout(),
		ToolWait:               cfg.Executor.ToolWait(),
	})

	// Hourly maintenance
	maint := cron.New(cron.Config{
		Store:      store,
		Retention:  time.Duration(cfg.Memory.SessionRetentionDays) * 24 * time.Hour,
		KeepImages: cfg.Memory.KeepImages,
		Spec:       cron.SpecForInterval(cfg.Memory.CleanupInterval()),
	})
	if err := maint.Start(); err != nil {
		return fmt.Errorf("failed to start maintenance: %w", err)
	}
	defer maint.Stop()

	// HTTP gateway
	gw := gateway.NewServer(cfg, bus, &v1.RouterDeps{
		Orchestrator: orch,
		Store:        store,
		Skills:       skillsMgr,
		Bus:          bus,
		Version:      Version,
	})

	gwErr := make(chan error, 1)
	go func() {
		gwErr <- gw.Start()
	}()

	// Control socket
	ipcSrv, err := startControlServer(cfg, orch)
	if err != nil {
		return err
	}
	defer ipcSrv.Stop()

	log.Info().
		Str("address", fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)).
		Str("socket", ipcSrv.SocketPath()).
		Msg("Daemon started")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down daemon...")
	case err := <-gwErr:
		if err != nil {
			log.Error().Err(err).Msg("Gateway error")
			return err
		}
	}

	orch.Interrupt()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Daemon stopped")
	return nil
}

// buildProvider registers the known providers and returns the configured one.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	openai.Register()
	ollama.Register()

	prov, ok := provider.Get(cfg.Provider.Name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", cfg.Provider.Name, provider.List())
	}
	provider.SetDefault(cfg.Provider.Name)
	return prov, nil
}

// startControlServer wires the orchestrator into the IPC request set.
func startControlServer(cfg *config.Config, orch *agent.Orchestrator) (*ipc.Server, error) {
	var opts []ipc.ServerOption
	if cfg.IPC.Socket != "" {
		opts = append(opts, ipc.WithListenPath(cfg.IPC.Socket))
	}
	srv := ipc.NewServer(opts...)

	srv.RegisterHandler(ipc.MsgSubmitGoal, func(msg *ipc.Message) *ipc.Message {
		var p ipc.SubmitGoalPayload
		if err := msg.ParsePayload(&p); err != nil || p.Goal == "" {
			return ipc.ErrorReply(msg, "BAD_REQUEST", "goal is required")
		}
		if orch.State() == agent.StateRunning {
			return ipc.ErrorReply(msg, "ALREADY_RUNNING", "a goal is already running")
		}
		go func() {
			_, _ = orch.ExecuteGoal(context.Background(), p.Goal)
		}()
		return ipc.NewMessage(ipc.MsgResult).
			WithReplyTo(msg.ID).
			WithPayload(&ipc.ResultPayload{Status: "accepted", Message: p.Goal})
	})

	srv.RegisterHandler(ipc.MsgInterrupt, func(msg *ipc.Message) *ipc.Message {
		if orch.State() != agent.StateRunning {
			return ipc.ErrorReply(msg, "NOT_RUNNING", "no goal is running")
		}
		orch.Interrupt()
		return ipc.NewMessage(ipc.MsgResult).
			WithReplyTo(msg.ID).
			WithPayload(&ipc.ResultPayload{Status: "interrupting"})
	})

	srv.RegisterHandler(ipc.MsgStatus, func(msg *ipc.Message) *ipc.Message {
		return ipc.NewMessage(ipc.MsgResult).
			WithReplyTo(msg.ID).
			WithPayload(&ipc.StatusPayload{
				State: string(orch.State()),
				Goal:  orch.CurrentGoal(),
			})
	})

	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("failed to start control socket: %w", err)
	}
	return srv, nil
}
