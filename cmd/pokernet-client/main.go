package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lcx/pokernet/client"
	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/tracing"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type flags struct {
	configDir string
	env       string
	addr      string
	port      uint16
	family    string
	name      string
	password  string
	computer  bool
}

func main() {
	f := &flags{}
	rootCmd := &cobra.Command{
		Use:           "pokernet-client",
		Short:         "Joins a poker table and prints what happens at it",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, cmd.Flags())
		},
	}
	pf := rootCmd.Flags()
	pf.StringVar(&f.configDir, "config", "./configs", "directory holding the yaml config files")
	pf.StringVar(&f.env, "env", "development", "config environment subdirectory")
	pf.StringVarP(&f.addr, "addr", "a", "", "server host name or address")
	pf.Uint16VarP(&f.port, "port", "p", 7234, "server port")
	pf.StringVar(&f.family, "family", "ipv4", "address family, ipv4 or ipv6")
	pf.StringVarP(&f.name, "name", "n", "", "player name")
	pf.StringVar(&f.password, "password", "", "table password")
	pf.BoolVar(&f.computer, "computer", false, "join as a computer player")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// loadCfg reads the "client" section when one exists and lets explicitly set
// flags override it.
func loadCfg(cm config.ConfigManager, f *flags, set *pflag.FlagSet) (*client.Cfg, error) {
	cfg := client.DefaultCfg()
	if err := cm.LoadConfig("client", cfg); err != nil && !isNotFound(err) {
		return nil, err
	}
	if set.Changed("addr") {
		cfg.ServerAddr = f.addr
	}
	if set.Changed("port") {
		cfg.ServerPort = f.port
	}
	if set.Changed("family") {
		cfg.AddrFamily = f.family
	}
	if set.Changed("name") {
		cfg.PlayerName = f.name
	}
	if set.Changed("password") {
		cfg.Password = f.password
	}
	if set.Changed("computer") {
		cfg.Computer = f.computer
	}
	return cfg, nil
}

func run(ctx context.Context, f *flags, set *pflag.FlagSet) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cm := config.GetInstance()
	cm.SetBasePath(f.configDir)
	cm.SetEnvironment(f.env)
	defer cm.Close()
	if err := log.InitializeWithConfigManager(cm); err != nil && !isNotFound(err) {
		return fmt.Errorf("logger config: %w", err)
	}
	if err := tracing.InitTracing(cm); err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}

	cfg, err := loadCfg(cm, f, set)
	if err != nil {
		return err
	}
	c, err := client.New(cfg, newPrinter())
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	err = c.Wait()
	if errors.Is(err, client.ErrStopped) {
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}
