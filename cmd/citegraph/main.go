// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the citegraph CLI.
//
// Stages run in order: lookup (optional), harvest, build, partition, index.
// Each stage reads the artifacts of the previous one from the data directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citegraph/internal/logging"
	"github.com/pdiddy/citegraph/internal/secrets"
	"github.com/pdiddy/citegraph/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// logger is configured in the root PersistentPreRunE.
	logger = zerolog.Nop()

	// loadedSecrets holds credentials read from .secrets/ at startup.
	loadedSecrets secrets.Secrets
)

var rootCmd = &cobra.Command{
	Use:   "citegraph",
	Short: "Harvest citation timelines and build yearly citation networks",
	Long: `citegraph harvests per-work citation timelines from the OpenAlex API for a
cleaned bibliographic corpus, assembles the corpus into a citation graph, and
slices that graph into per-year node and edge tables.

Stages are subcommands: lookup, harvest, build, partition, and index. Output
paths are resolved against the data directory (--data-dir, default
$XDG_DATA_HOME/citegraph) unless absolute.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(types.LoggingConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			Output: viper.GetString("log.output"),
		})

		s, err := secrets.Load(secrets.DefaultDir, logger)
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
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("path", used).Msg("using config file")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./citegraph.yaml or ~/.config/citegraph/citegraph.yaml)")
	pf.String("data-dir", "", "base directory for artifacts (default $XDG_DATA_HOME/citegraph)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")

	viper.BindPFlag("data_dir", pf.Lookup("data-dir"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.SetDefault("log.output", logging.Defaults().Output)
}

func initConfig() {
	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("citegraph")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "citegraph"))
	}

	viper.SetEnvPrefix("CITEGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "warning: reading config %s: %v\n", cfgFile, err)
	}
}

// dataDir returns the configured artifact root.
func dataDir() string {
	if d := viper.GetString("data_dir"); d != "" {
		return d
	}
	return filepath.Join(xdg.DataHome, "citegraph")
}

// dataPath resolves p against the data directory unless it is absolute.
func dataPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir(), p)
}

// bindFlags maps viper keys to the named flags of cmd. Flags are bound when
// the command runs because several commands share keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// addHTTPFlags registers the shared request settings on cmd.
func addHTTPFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("base-url", types.DefaultBaseURL, "API base URL")
	f.String("email", "", "contact address for the polite pool (default: .secrets/openalex-email)")
	f.Duration("delay", types.DefaultDelay, "minimum spacing between requests")
	f.Int("max-retries", types.DefaultMaxRetries, "attempts per endpoint")
	f.Duration("timeout", types.DefaultTimeout, "per-request timeout")
}

// httpConfig reads the shared request settings after binding cmd's flags.
func httpConfig(cmd *cobra.Command) types.HTTPConfig {
	bindFlags(cmd, map[string]string{
		"http.base_url":    "base-url",
		"http.email":       "email",
		"http.delay":       "delay",
		"http.max_retries": "max-retries",
		"http.timeout":     "timeout",
	})
	// UnmarshalKey does not see flag-bound nested keys, so read them one by one.
	cfg := types.HTTPConfig{
		BaseURL:           viper.GetString("http.base_url"),
		Email:             viper.GetString("http.email"),
		UserAgent:         viper.GetString("http.user_agent"),
		Delay:             viper.GetDuration("http.delay"),
		MaxRetries:        viper.GetInt("http.max_retries"),
		Timeout:           viper.GetDuration("http.timeout"),
		BackoffBase:       viper.GetDuration("http.backoff_base"),
		RateLimitCooldown: viper.GetDuration("http.rate_limit_cooldown"),
	}
	if cfg.Email == "" {
		cfg.Email = loadedSecrets.Get(secrets.OpenAlexEmail)
	}
	return cfg.WithDefaults()
}

// addCorpusFlags registers the corpus location and column names on cmd.
func addCorpusFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("corpus", "", "cleaned corpus CSV")
	f.String("id-column", "", "identifier column (default oa_openalex_id)")
	f.String("year-column", "", "publication year column (default year)")
	f.String("refs-column", "", "reference list column (default oa_referenced_works_parsed)")
	f.String("title-column", "", "title column (default title)")
}

func corpusConfig(cmd *cobra.Command) (types.CorpusConfig, error) {
	bindFlags(cmd, map[string]string{
		"corpus.path":         "corpus",
		"corpus.id_column":    "id-column",
		"corpus.year_column":  "year-column",
		"corpus.refs_column":  "refs-column",
		"corpus.title_column": "title-column",
	})
	cfg := types.CorpusConfig{
		Path:        viper.GetString("corpus.path"),
		IDColumn:    viper.GetString("corpus.id_column"),
		YearColumn:  viper.GetString("corpus.year_column"),
		RefsColumn:  viper.GetString("corpus.refs_column"),
		TitleColumn: viper.GetString("corpus.title_column"),
	}
	if cfg.Path == "" {
		return cfg, errors.New("no corpus given: use --corpus or corpus.path in the config file")
	}
	return cfg.WithDefaults(), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
