package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Duet/internal/adapters/http"
	sig "github.com/dkeye/Duet/internal/adapters/signal"
	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/config"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "duet",
	Short: "Two-person room relay over WebSocket",
	RunE:  runServer,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("env", "dev", "config environment, reads config/config.<env>.yaml")
	flags.Int("port", 3000, "HTTP listen port")
	_ = v.BindPFlag("env", flags.Lookup("env"))
	_ = v.BindPFlag("port", flags.Lookup("port"))
}

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("duet exited")
	}
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func runServer(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	hub := sig.NewHub()
	o := orch.New(app.PolicyFromConfig(cfg), hub, nil)
	ctrl := sig.NewSignalWSController(o, hub, sig.OptionsFromConfig(cfg))

	r := router.SetupRouter(ctx, cfg, o, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Duet server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Int("sessions", o.Stats().Sessions).Msg("Server exited gracefully")
	return nil
}
