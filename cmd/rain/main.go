package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rainagent/rain/internal/agent"
	"github.com/rainagent/rain/internal/config"
	"github.com/rainagent/rain/internal/daemon"
	"github.com/rainagent/rain/internal/knowledge"
	"github.com/rainagent/rain/internal/logging"
	"github.com/rainagent/rain/internal/search"
	"github.com/rainagent/rain/internal/telemetry"
	"github.com/rainagent/rain/internal/tools"
	"github.com/rainagent/rain/internal/web"
)

// Set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	search.SetVersion(version)

	root := &cobra.Command{
		Use:           "rain",
		Short:         "RAIN: an AI agent that searches the web, sends email, and saves notes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCmd(), askCmd(), configCmd(), serviceCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.Path(), err)
	}
	return cfg, nil
}

func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logging.Setup(os.Stderr, level, cfg.Logging.Format)
}

// ── serve command ──

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web console",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "Web console port (default: auto from web.port)")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	release, err := daemon.AcquireLock()
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing.OTLPEndpoint, version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", "err", err)
		}
	}()

	port := cfg.Web.Port
	pinned := false
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		port, pinned = p, true
	}

	srv := web.New(web.Options{
		Host:       cfg.Web.Host,
		Port:       port,
		SessionTTL: cfg.SessionTTL(),
		Factory:    agentFactory(cfg),
		Logger:     logger,
		Version:    version,
	})
	actualPort, err := srv.Start(pinned)
	if err != nil {
		return err
	}

	fmt.Printf("RAIN %s\n", version)
	fmt.Printf("Model: %s (%s)\n", cfg.LLM.Model, cfg.LLM.Provider)
	fmt.Printf("Console: http://%s:%d\n", cfg.Web.Host, actualPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Sessions().Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("web console shutdown", "err", err)
		}
		return nil
	})
	return g.Wait()
}

// agentFactory builds a fresh executor each time a browser submits credentials.
func agentFactory(cfg *config.Config) web.AgentFactory {
	return func(creds agent.Credentials) (web.Invoker, error) {
		ex, err := agent.New(cfg, creds)
		if err != nil {
			return nil, err
		}
		return ex, nil
	}
}

// ── ask command ──

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt...>",
		Short: "Send one request to the agent using credentials from the environment",
		Long: "Send one request to the agent and print the answer.\n\n" +
			"Credentials are read from the environment (a .env file is loaded if present):\n" +
			"  " + strings.Join(credentialEnvVars, "\n  "),
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print the agent's thought process and debug logs")
	cmd.Flags().String("env-file", ".env", "Environment file to load")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogger(cmd, cfg)
	verbose, _ := cmd.Flags().GetBool("verbose")

	envFile, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	creds, missing := credentialsFromEnv(os.Getenv)
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: set %s", strings.Join(missing, ", "))
	}

	ex, err := agent.New(cfg, creds)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observer tools.Observer
	if verbose {
		observer = printStep(os.Stderr)
	}
	fmt.Fprintln(os.Stderr, knowledge.UI().Thinking)

	resp, err := ex.Invoke(ctx, strings.Join(args, " "), observer)
	if err != nil {
		return errors.New(knowledge.UI().ErrorPrefix + err.Error())
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "\n%s\n%s\n\n", knowledge.UI().ThoughtsLabel, resp.Thoughts)
	}
	fmt.Println(resp.Output)
	return nil
}

func printStep(w io.Writer) tools.Observer {
	return func(s tools.Step) {
		switch s.Kind {
		case tools.StepInvoke:
			fmt.Fprintf(w, "[%d] -> %s %s\n", s.Round, s.Tool, s.Args)
		case tools.StepObservation:
			fmt.Fprintf(w, "[%d] <- %s\n", s.Round, oneLine(s.Content, 120))
		}
	}
}

// ── config command ──

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE:  runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
	cmd.AddCommand(
		initCmd,
		&cobra.Command{
			Use:   "show",
			Short: "Show current config (API keys redacted)",
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print config file path",
			Run: func(_ *cobra.Command, _ []string) {
				fmt.Println(config.Path())
			},
		},
	)
	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(config.Path()); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", config.Path())
	}
	if err := config.DefaultConfig().Save(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", config.Path())
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return toml.NewEncoder(os.Stdout).Encode(cfg.Redact())
}

// ── service commands ──

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run the web console as a background service",
	}
	install := &cobra.Command{
		Use:   "install",
		Short: "Install and start the background service",
		RunE:  runServiceInstall,
	}
	install.Flags().IntP("port", "p", 0, "Pin the console to this port")
	cmd.AddCommand(
		install,
		serviceAction("uninstall", "Stop and remove the background service", daemon.Manager.Uninstall, "Service removed."),
		serviceAction("start", "Start the background service", daemon.Manager.Start, "Service started."),
		serviceAction("stop", "Stop the background service", daemon.Manager.Stop, "Service stopped."),
		serviceAction("restart", "Restart the background service", daemon.Manager.Restart, "Service restarted."),
		&cobra.Command{
			Use:   "status",
			Short: "Show background service status",
			RunE:  runServiceStatus,
		},
	)
	return cmd
}

func serviceAction(use, short string, fn func(daemon.Manager) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := daemon.New()
			if err != nil {
				return err
			}
			if err := fn(m); err != nil {
				return err
			}
			fmt.Println(done)
			return nil
		},
	}
}

func runServiceInstall(cmd *cobra.Command, _ []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	m, err := daemon.New()
	if err != nil {
		return err
	}
	var extra []string
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		extra = append(extra, "--port", fmt.Sprint(p))
	}
	if err := m.Install(extra); err != nil {
		return err
	}
	fmt.Println("Service installed and started.")
	fmt.Printf("Logs: %s\n", daemon.LogPath())
	return nil
}

func runServiceStatus(_ *cobra.Command, _ []string) error {
	m, err := daemon.New()
	if err != nil {
		return err
	}
	st, err := m.Status()
	if err != nil {
		return err
	}
	fmt.Printf("Installed: %v\n", st.Installed)
	if st.Running {
		fmt.Printf("Running:   yes (PID %d)\n", st.PID)
	} else {
		fmt.Println("Running:   no")
	}
	fmt.Printf("Logs:      %s\n", st.LogPath)
	return nil
}

// ── version command ──

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("rain %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
