package main

// file: cmd/authsession/root.go

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkoosis/authsession/internal/config"
	"github.com/dkoosis/authsession/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "authsession",
		Short: "Client-side authentication session controller",
		Long: `authsession keeps one authentication session alive and exposes its
sign-in, sign-up, password and sign-out operations from the terminal.`,
		Version:      Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate(`{{printf "authsession version %s\n" .Version}}`)
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (default "+defaultConfigPath()+" when present).")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level.")

	cmd.AddCommand(
		newShellCmd(opts),
		newDevTokenCmd(opts),
		newDiagnoseStorageCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and sets up logging from it.
func (o *rootOptions) load() (*config.Config, logging.Logger, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath()); err == nil {
			path = defaultConfigPath()
		}
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if strings.EqualFold(cfg.Logging.Format, "json") {
		logging.InitLogging(level, os.Stderr)
	} else {
		logging.InitTextLogging(level, os.Stderr)
	}
	return cfg, logging.GetLogger("cli"), nil
}

func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("configs", "authsession.yaml")
	}
	return filepath.Join(homeDir, ".config", "authsession", "authsession.yaml")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of authsession",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authsession version %s (commit %s, built %s)\n", Version, commitHash, buildDate)
		},
	}
}
