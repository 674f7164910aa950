package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/drivenotify/internal/live"
	"github.com/ziadkadry99/drivenotify/internal/notifications"
	"github.com/ziadkadry99/drivenotify/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the webhook and admin HTTP server",
	Long: `Starts the HTTP server that receives Drive events, the background delivery
worker and the retention janitor. On SIGINT or SIGTERM the server stops
accepting requests and queued deliveries are drained for up to
server.shutdown_timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		checkConnection(ctx, a)

		hub := live.NewHub(logger)
		worker := a.worker(hub)
		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
			APIKey:   cfg.Server.APIKey,
			Version:  Version,
		}, server.Deps{
			DB:        a.db,
			Channel:   a.channel,
			Store:     a.store,
			Formatter: a.formatter,
			Pipeline:  a.pipeline(worker),
			Live:      hub,
		}, logger)
		janitor := notifications.NewJanitor(a.store, cfg.Retention.Days, cfg.Retention.Interval, logger)

		logger.Info().
			Str("version", Version).
			Int("port", cfg.Server.Port).
			Str("channel", a.channel.Name()).
			Str("database", a.db.Path()).
			Str("policy", string(cfg.Recipients.Policy)).
			Msg("drivenotify starting")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(srv.Start)
		g.Go(func() error { return janitor.Run(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			logger.Info().Msg("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("http shutdown")
			}
			if err := worker.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("delivery queue not fully drained")
			}
			hub.Close()
			return nil
		})

		return g.Wait()
	},
}

// checkConnection logs whether the configured channel is reachable. Failures
// are not fatal: events are still accepted and logged.
func checkConnection(ctx context.Context, a *app) {
	if !a.cfg.HasCredentials() {
		a.logger.Warn().Str("channel", a.channel.Name()).Msg("channel credentials are incomplete; sends will fail")
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.channel.Ping(pingCtx); err != nil {
		a.logger.Warn().Err(err).Str("channel", a.channel.Name()).Msg("channel connection test failed")
		return
	}
	a.logger.Info().Str("channel", a.channel.Name()).Msg("channel connection test passed")
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8000, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
