package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the configuration shared by all subcommands.
type app struct {
	v *viper.Viper
}

// NewRootCmd creates the root embeddb command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "embeddb",
		Short:         "embeddb: a small embedded vector database",
		Long:          "embeddb manages collections of embedded documents and runs similarity queries against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().String("backend", "", "storage backend (local, s3, minio, badger, sqlite)")
	root.PersistentFlags().String("embedding", "", "embedding provider (hash, openai)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newCollectionsCmd(a),
		newIngestCmd(a),
		newQueryCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newCompactCmd(a),
		newConfigCmd(a),
	)

	return root
}

var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"backend":   "storage.backend",
	"embedding": "embedding.provider",
	"log-level": "log_level",
}

// initViper applies defaults, EMBEDDB_* variables, the config file and
// flags so the precedence is flag > env > file > defaults.
func (a *app) initViper(cmd *cobra.Command) error {
	v := a.v

	setDefaults(v)
	setupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("embeddb")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/embeddb")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding %s flag: %w", flag, err)
		}
	}

	return nil
}

// config decodes and validates the effective configuration.
func (a *app) config() (*Config, error) {
	return loadConfig(a.v)
}

// open loads the configuration and opens a session for cmd.
func (a *app) open(cmd *cobra.Command) (*session, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return openSession(cmd.Context(), cfg, cmd.ErrOrStderr())
}
