// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf2md CLI. The root command
// converts every PDF in a folder to a sibling Markdown file with a vision
// model, staying under a daily request ceiling.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/logging"
	"github.com/pdiddy/pdf2md/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if set, otherwise the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets[key]
}

// rootCmd converts a folder of PDFs.
var rootCmd = &cobra.Command{
	Use:   "pdf2md <folder>",
	Short: "Convert a folder of PDFs to Markdown with a vision model",
	Long: `pdf2md sends every PDF in a folder to a vision-capable language model and
writes the transcription next to it as Markdown. PDFs that already have a
Markdown file are skipped, so an interrupted run can simply be restarted.

Requests are counted against a daily ceiling over a sliding 24-hour window.
When the ceiling is reached pdf2md waits for the window to slide, asking
first when running interactively. Quota errors from the provider are
retried with exponential backoff.`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: setup,
	RunE:              runConvert,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pdf2md.yaml or ~/.config/pdf2md/pdf2md.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
	pf.String("backend", "vertex", "vision backend: vertex or openai")
	pf.String("model", "", "vision model name")
	pf.Int("daily-limit", 0, "maximum requests in any 24-hour window")
	pf.Bool("interactive", true, "ask before waiting for the daily quota to reset")

	f := rootCmd.Flags()
	f.String("mode", "", "page mode: document, image or split")
	f.String("isolation", "", "per-call isolation: process or inline")
	f.Duration("timeout", 0, "hard deadline for one model call")
	f.String("profile", "", "image preprocessing profile: none, light or aggressive")
	f.String("language", "", "language of the source documents")
	f.Bool("frontmatter", false, "prepend YAML frontmatter to written Markdown")

	mustBind("log.level", pf.Lookup("log-level"))
	mustBind("log.format", pf.Lookup("log-format"))
	mustBind("vision.backend", pf.Lookup("backend"))
	mustBind("vision.model", pf.Lookup("model"))
	mustBind("quota.daily_limit", pf.Lookup("daily-limit"))
	mustBind("quota.interactive", pf.Lookup("interactive"))
	mustBind("pages.mode", f.Lookup("mode"))
	mustBind("pages.isolation", f.Lookup("isolation"))
	mustBind("pages.timeout", f.Lookup("timeout"))
	mustBind("pages.profile", f.Lookup("profile"))
	mustBind("prompt.language", f.Lookup("language"))
	mustBind("output.frontmatter", f.Lookup("frontmatter"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf2md")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf2md"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("PDF2MD")
	viper.SetEnvKeyReplacer(replacer())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup runs before every command: it loads .env and .secrets/, configures
// logging and starts the metrics endpoint when requested.
func setup(cmd *cobra.Command, args []string) error {
	if err := secrets.LoadEnvFile(".env"); err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  viper.GetString("log.level"),
		Format: logging.Format(viper.GetString("log.format")),
	})

	s, err := secrets.Load(".secrets/", logger)
	if err != nil {
		return err
	}
	loadedSecrets = s
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logger.Debug().Strs("keys", keys).Msg("loaded secrets")
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		serveMetrics(cmd.Context(), addr)
	}
	return nil
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
}

// replacer maps nested keys to environment names: quota.daily_limit is
// read from PDF2MD_QUOTA_DAILY_LIMIT.
func replacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
