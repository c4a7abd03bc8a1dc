// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the diligence-engine CLI.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/diligence-engine/internal/logging"
	"github.com/pdiddy/diligence-engine/internal/secrets"
	"github.com/pdiddy/diligence-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is the effective configuration, loaded before any subcommand runs.
var cfg = types.DefaultConfig()

// envKeys are the scalar settings that may be overridden from the environment,
// e.g. DILIGENCE_ENGINE_CACHE_BACKEND=redis.
var envKeys = []string{
	"log.level", "log.format",
	"cache.backend", "cache.redis_url", "cache.sqlite_path",
	"server.addr",
	"correlation.alias_file",
}

// rootCmd is the base command for the diligence-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "diligence-engine",
	Short: "Search government disclosures and correlate activity across jurisdictions",
	Long: `diligence-engine searches federal, state, and municipal lobbying and
contract disclosures for a company, validates every hit against the queried
name, and correlates activity across jurisdictions.

Use search for a single merged result set, correlate for a company profile
spanning several years, and serve to expose both over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("decoding configuration: %w", err)
		}
		if err := cfg.Correlation.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Log.Level = lvl
		}
		logger := logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		if applied := secrets.Apply(cfg.Search.Sources, s); len(applied) > 0 {
			logger.Debug("loaded secrets", "sources", applied)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./diligence-engine.yaml or ~/.config/diligence-engine/diligence-engine.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("diligence-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "diligence-engine"))
		}
	}

	viper.SetEnvPrefix("DILIGENCE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, k := range envKeys {
		_ = viper.BindEnv(k)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			slog.Warn("could not read config file", "error", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
