package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/FranksOps/bingscrape/internal/serp"
	"github.com/spf13/cobra"
)

// Exit codes for failed searches. Anything else exits with 1.
const (
	exitInvalidInput = 2
	exitConnection   = 3
	exitParsing      = 4
)

// NewRootCmd creates the root command for bingscrape.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bingscrape",
		Short: "Scrape organic results from Bing",
		Long: `bingscrape issues a query against the Bing results page and prints the
organic results (title, URL and snippet) with tracking parameters removed.

Requests carry a rotating browser User-Agent and a browser TLS fingerprint,
are spaced by a configurable delay, and are retried with linear backoff on
HTTP error statuses.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (yaml, json or toml)")

	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, serp.ErrInvalidInput):
		return exitInvalidInput
	case errors.Is(err, serp.ErrConnection):
		return exitConnection
	case errors.Is(err, serp.ErrParsing):
		return exitParsing
	default:
		return 1
	}
}
