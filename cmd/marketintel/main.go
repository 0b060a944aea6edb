// marketintel serves normalized market data and derived quality
// metrics for a DEX aggregator with an unstable upstream API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantglass/marketintel/internal/cache"
	"github.com/quantglass/marketintel/internal/callmetrics"
	"github.com/quantglass/marketintel/internal/config"
	"github.com/quantglass/marketintel/internal/engine"
	"github.com/quantglass/marketintel/internal/httpapi"
	"github.com/quantglass/marketintel/internal/rank"
	"github.com/quantglass/marketintel/internal/ratelimit"
	"github.com/quantglass/marketintel/internal/telemetry"
	"github.com/quantglass/marketintel/internal/upstream"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "marketintel",
		Short: "Market data acquisition and quality metrics service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (defaults apply when empty)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(serveCmd(), rankCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging configures zerolog: human-readable console output on a
// TTY, JSON otherwise.
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// buildClient constructs the upstream client and its collaborators
// from loaded config.
func buildClient(cfg *config.Config, metrics *telemetry.Metrics) *upstream.Client {
	responseCache := cache.NewTTLCache(time.Duration(cfg.Cache.DefaultTTLSec)*time.Second, cfg.Cache.MaxEntries)
	limiter := ratelimit.NewLimiter(cfg.RateLimit.DefaultPerMinute, cfg.RateLimit.PerEndpoint)
	recorder := callmetrics.NewRecorder(cfg.Calls.MaxEntries)

	return upstream.New(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		RequestTimeout:    cfg.Upstream.RequestTimeout(),
		UserAgent:         cfg.Upstream.UserAgent,
		MarketsVariants:   cfg.Upstream.MarketsVariants,
		OrderBookVariants: cfg.Upstream.BookVariants,
		TradesVariants:    cfg.Upstream.TradesVariants,
		MarketsTTL:        time.Duration(cfg.Cache.MarketsTTLSec) * time.Second,
		OrderBookTTL:      time.Duration(cfg.Cache.OrderBookTTLSec) * time.Second,
		TradesTTL:         time.Duration(cfg.Cache.TradesTTLSec) * time.Second,
		SmoothRPS:         cfg.Upstream.SmoothRPS,
		BreakerEnabled:    cfg.Upstream.BreakerEnabled,
		BreakerFailures:   uint32(cfg.Upstream.BreakerFailures),
		BreakerCooldown:   time.Duration(cfg.Upstream.BreakerCooldownSec) * time.Second,
	}, upstream.Deps{
		Cache:    responseCache,
		Limiter:  limiter,
		Recorder: recorder,
		Metrics:  metrics,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			metrics := telemetry.NewMetrics()
			client := buildClient(cfg, metrics)
			api := httpapi.New(client, engine.DefaultConfig(), cfg.Calls.SummaryWindow(), metrics.Handler())

			server := &http.Server{
				Addr:         cfg.Server.ListenAddr,
				Handler:      api.Router(),
				ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.ListenAddr).Msg("listening")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func rankCmd() *cobra.Command {
	var tradeLimit int

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank all markets by recent activity and print JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			client := buildClient(cfg, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			results, err := rank.ByActivity(ctx, client, tradeLimit, engine.DefaultConfig())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().IntVar(&tradeLimit, "trades", 100, "trades fetched per market for scoring")
	return cmd
}
