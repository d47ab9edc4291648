package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/tracing"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalFlags struct {
	configDir string
	env       string
}

func main() {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "pokernet-server",
		Short:         "Hosts a poker table",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configDir, "config", "./configs", "directory holding the yaml config files")
	rootCmd.PersistentFlags().StringVar(&flags.env, "env", "development", "config environment subdirectory")

	rootCmd.AddCommand(
		serveCmd(flags),
		historyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// setupConfig points the process-wide manager at the config directory and
// installs the logger and tracer it describes.
func setupConfig(flags *globalFlags) (config.ConfigManager, error) {
	cm := config.GetInstance()
	cm.SetBasePath(flags.configDir)
	cm.SetEnvironment(flags.env)

	if err := log.InitializeWithConfigManager(cm); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("logger config: %w", err)
	}
	if err := tracing.InitTracing(cm); err != nil {
		return nil, fmt.Errorf("tracing config: %w", err)
	}
	return cm, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}
