package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/config"
	"github.com/metaoverlayfs/panel/internal/daemon/collector"
	"github.com/metaoverlayfs/panel/internal/daemon/engine"
	"github.com/metaoverlayfs/panel/internal/daemon/pidfile"
	"github.com/metaoverlayfs/panel/internal/daemon/server"
	"github.com/metaoverlayfs/panel/internal/daemon/store"
	"github.com/metaoverlayfs/panel/logging"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/paths"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/state"
)

// NewServeCmd returns the serve command with subcommands.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Panel daemon",
		Long: `The daemon keeps one panel state current in the background and serves it
to the CLI over a unix socket and, when server.listen is set, to the
browser panel over HTTP.`,
	}

	cmd.AddCommand(newServeStartCmd())
	cmd.AddCommand(newServeStopCmd())
	cmd.AddCommand(newServeStatusCmd())

	return cmd
}

func newServeStartCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := cli.LoadConfig(cmd)
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg, cfgPath)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "TCP address for the browser panel (overrides server.listen; empty disables)")
	return cmd
}

// runDaemon serves until ctx is canceled.
func runDaemon(ctx context.Context, cfg *config.Config, cfgPath string) error {
	logger := logging.NewLogger("daemon")
	pidPath := paths.PidFilePath()

	// 1. Acquire lock
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	// 2. Panel and first load
	p, err := panel.NewFromConfig(cfg, state.DefaultFile(), logging.NewLogger("panel"))
	if err != nil {
		return err
	}
	for _, surface := range []refresh.Surface{refresh.Modules, refresh.Dashboard} {
		if err := p.Refresh(ctx, surface); err != nil {
			logger.WithError(err).WithField("surface", surface).Warn("Initial refresh failed")
		}
	}

	// 3. Store and engine
	st := store.New(p.Snapshot())
	eng := engine.New(st, logging.NewLogger("engine"))
	registerCollectors(eng, p, cfg, cfgPath)

	// 4. Server
	srv := server.New(p, st, logging.NewLogger("server"))
	srv.SetRunningConfig(&daemon.RunningConfig{
		Config:     cfg,
		ConfigFile: cfgPath,
		Collectors: eng.Collectors(),
		StartedAt:  time.Now(),
	})

	logger.WithFields(logrus.Fields{
		"pid":        os.Getpid(),
		"collectors": eng.Collectors(),
	}).Info("Starting daemon")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		eng.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(cfg.Server.Socket, cfg.Server.Listen); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received stop signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
		return nil
	})
	return g.Wait()
}

func registerCollectors(eng *engine.Engine, p *panel.Panel, cfg *config.Config, cfgPath string) {
	log := logging.NewLogger("collector")

	eng.Register(collector.NewEventCollector(p, log))
	eng.Register(collector.NewRefreshCollector(p.Scheduler(), refresh.Dashboard, log))
	eng.Register(collector.NewRefreshCollector(p.Scheduler(), refresh.Modules, log))

	// Writes by other tools, such as the module's WebUI, show up without
	// waiting for the next tick.
	eng.Register(collector.NewFileWatcher("live-file", []string{cfg.Device.LiveFile},
		func(ctx context.Context, _ string) error {
			return p.Refresh(ctx, refresh.Modules)
		}, 0, log))

	if cfgPath != "" {
		eng.Register(collector.NewFileWatcher("config-file", []string{cfgPath},
			func(_ context.Context, file string) error {
				if _, err := config.Load(file); err != nil {
					return err
				}
				log.WithField("path", file).Info("Configuration changed; restart the daemon to apply it")
				return nil
			}, 0, log))
	}
}

func newServeStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				printer(cmd).Info("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			printer(cmd).Success("Sent SIGTERM to process %d", pid)
			return nil
		},
	}
}

func newServeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			status := struct {
				Running   bool   `json:"running"`
				PID       int    `json:"pid,omitempty"`
				Socket    string `json:"socket"`
				Reachable bool   `json:"reachable"`
			}{running, pid, cfg.Server.Socket, daemon.Reachable(cfg.Server.Socket)}

			if jsonOutput(cmd) {
				if err := cli.PrintJSON(cmd.OutOrStdout(), status); err != nil {
					return err
				}
			} else if running {
				p := printer(cmd)
				p.Success("Running (PID: %d)", pid)
				p.Field("Socket", status.Socket)
				if !status.Reachable {
					p.Warn("Socket is not accepting connections")
				}
			} else {
				printer(cmd).Info("Stopped")
			}

			if !running {
				// Non-zero for scripts.
				os.Exit(1)
			}
			return nil
		},
	}
}
