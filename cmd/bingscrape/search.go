package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FranksOps/bingscrape/internal/config"
	"github.com/FranksOps/bingscrape/internal/fingerprint"
	"github.com/FranksOps/bingscrape/internal/metrics"
	"github.com/FranksOps/bingscrape/internal/pipeline"
	"github.com/FranksOps/bingscrape/internal/scraper"
	"github.com/FranksOps/bingscrape/internal/serp"
	"github.com/FranksOps/bingscrape/pkg/proxy"
	"github.com/FranksOps/bingscrape/pkg/ratelimit"
	"github.com/FranksOps/bingscrape/pkg/useragent"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"limit":         "limit",
	"format":        "format",
	"max-retries":   "max_retries",
	"delay":         "delay",
	"jitter":        "jitter",
	"timeout":       "timeout",
	"endpoint":      "endpoint",
	"fingerprint":   "fingerprint",
	"proxy":         "proxies",
	"proxy-file":    "proxy_file",
	"user-agent":    "user_agents",
	"max-body-size": "max_body_size",
	"metrics-port":  "metrics_port",
	"verbose":       "verbose",
}

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search Bing and print the organic results",
		Long: `Search fetches one Bing results page for the query and prints up to
--limit organic results. Multiple arguments are joined with spaces.

Examples:
  # Top ten results as text
  bingscrape search golang generics

  # Five results as JSON, two seconds between requests
  bingscrape search --limit 5 --delay 2s --format json "rust async"

  # Rotate through SOCKS5 proxies with a Firefox TLS fingerprint
  bingscrape search --proxy socks5://127.0.0.1:1080 --proxy socks5://127.0.0.1:1081 \
    --fingerprint firefox kubernetes

Every flag can also be set in the config file or as a BINGSCRAPE_* environment
variable, e.g. BINGSCRAPE_MAX_RETRIES=5.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearchCmd,
	}

	cmd.Flags().IntP("limit", "n", d.Limit, "Maximum number of results to return")
	cmd.Flags().StringP("format", "f", d.Format,
		fmt.Sprintf("Output format (%s)", strings.Join(config.Formats, ", ")))

	cmd.Flags().Int("max-retries", d.MaxRetries, "Attempt ceiling for HTTP error statuses")
	cmd.Flags().Duration("delay", d.Delay, "Minimum spacing between requests and backoff base")
	cmd.Flags().Float64("jitter", d.Jitter, "Random extra spacing as a fraction of --delay (0-1)")
	cmd.Flags().DurationP("timeout", "t", d.Timeout, "Per-request timeout")

	cmd.Flags().String("endpoint", d.Endpoint, "Results page URL")
	cmd.Flags().String("fingerprint", d.Fingerprint,
		fmt.Sprintf("TLS fingerprint profile (%s)", joinProfiles()))
	cmd.Flags().StringSlice("proxy", nil, "Proxy URL to rotate through (http, https or socks5; repeatable)")
	cmd.Flags().String("proxy-file", d.ProxyFile, "File with one proxy URL per line")
	cmd.Flags().StringSlice("user-agent", nil, "User-Agent to rotate through (repeatable, replaces the built-in pool)")
	cmd.Flags().Int64("max-body-size", d.MaxBodySize, "Maximum response body size in bytes (0 selects the 5 MiB default)")
	cmd.Flags().Int("metrics-port", d.MetricsPort, "Expose Prometheus metrics on this port (0 disables)")

	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsPort > 0 {
		srv := metrics.Start(cfg.MetricsPort, logger)
		defer srv.Stop(context.Background())
		logger.Info("metrics server listening", "port", cfg.MetricsPort)
	}

	provider, fetcher, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	p := pipeline.Pipeline{
		Provider: provider,
		Out:      cmd.OutOrStdout(),
		Format:   cfg.Format,
		Logger:   logger,
	}
	_, err = p.Run(ctx, strings.Join(args, " "), cfg.Limit)
	return err
}

// newViper layers flags over BINGSCRAPE_* env over the config file over
// defaults.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	v, err := config.NewViper(configFile)
	if err != nil {
		return nil, err
	}
	for flagName, key := range flagKeys {
		f := cmd.Flags().Lookup(flagName)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
		}
	}
	return v, nil
}

// newProvider wires the fetcher, limiter and Bing provider from cfg. The
// fetcher is returned so the caller can release its connections.
func newProvider(cfg config.Config, logger *slog.Logger) (*serp.Bing, *scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	fetchCfg := scraper.FetchConfig{
		Timeout:      cfg.Timeout,
		UseCookieJar: true,
		MaxBodySize:  cfg.MaxBodySize,
		Fingerprint:  profile,
		UAPool:       useragent.NewPool(cfg.UserAgents),
	}

	proxies, err := cfg.ProxyList()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	if len(proxies) > 0 {
		pool, err := proxy.NewPool(proxy.Config{}, proxies...)
		if err != nil {
			return nil, nil, fmt.Errorf("configuration error: %w", err)
		}
		fetchCfg.ProxyPool = pool
		logger.Debug("proxy rotation enabled", "proxies", pool.Len())
	}

	fetcher, err := scraper.NewFetcher(fetchCfg)
	if err != nil {
		return nil, nil, err
	}

	bing, err := serp.NewBing(serp.BingConfig{
		Endpoint:   cfg.Endpoint,
		MaxRetries: cfg.MaxRetries,
		Delay:      cfg.Delay,
		Fetcher:    fetcher,
		Limiter:    ratelimit.NewLimiter(cfg.Delay, cfg.Jitter),
		Logger:     logger,
	})
	if err != nil {
		fetcher.Close()
		return nil, nil, err
	}
	return bing, fetcher, nil
}

// setupLogger writes text logs to w at warn level, or debug when verbose.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func joinProfiles() string {
	names := make([]string, len(fingerprint.Profiles))
	for i, p := range fingerprint.Profiles {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
