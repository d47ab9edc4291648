package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/discovery"
	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/plugin"
	"github.com/lcx/pokernet/server"
)

const announceInterval = 5 * time.Second

type serveFlags struct {
	metricsAddr string
	console     bool
}

func serveCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept players and run the table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), global, flags)
		},
	}
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics", ":9102", "address of the prometheus endpoint, empty to disable")
	cmd.Flags().BoolVar(&flags.console, "console", true, "read table commands from stdin")
	return cmd
}

func loadServer(cm config.ConfigManager, gui server.Callback) (*server.Server, error) {
	opts := []server.Option{server.WithRecorder(pluginRecorder{})}
	srv, err := server.NewWithConfigManager(cm, nil, gui, opts...)
	if err != nil && isNotFound(err) {
		log.Warn().Msg("no server config, using defaults")
		return server.New(server.DefaultCfg(), nil, gui, opts...)
	}
	return srv, err
}

func serve(ctx context.Context, global *globalFlags, flags *serveFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cm, err := setupConfig(global)
	if err != nil {
		return err
	}
	defer cm.Close()

	if err := plugin.InitPlugins(cm); err != nil {
		return fmt.Errorf("plugins: %w", err)
	}
	defer plugin.DestroyPlugins()

	srv, err := loadServer(cm, newConsole())
	if err != nil {
		return err
	}

	ln := net.NewListener(srv.Cfg().ListenerCfg(), srv)
	if err := ln.Start(ctx); err != nil {
		return err
	}
	defer ln.Stop()
	ln.Follow(cm, "server")
	printBanner(ln.Addr(), srv.Cfg())

	if flags.metricsAddr != "" {
		stopMetrics := serveMetrics(flags.metricsAddr)
		defer stopMetrics()
	}
	if flags.console {
		go readCommands(ctx, os.Stdin, srv)
	}
	go announce(ctx, srv, ln.Addr())

	err = srv.Run(ctx)
	// sockets accepted from here on are closed by AddConnection
	if stopErr := ln.Stop(); stopErr != nil {
		log.Warn().Err(stopErr).Msg("stop listener")
	}
	log.Info().Msg("server stopped")
	return err
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics endpoint failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}

// announce keeps the discovery plugin, when configured, in step with the table.
func announce(ctx context.Context, srv *server.Server, addr netip.AddrPort) {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()
	for {
		p, _ := plugin.GetDefaultPlugin(plugin.Discovery, "consul")
		if reg, ok := p.(*discovery.Registrar); ok {
			status := discovery.TableStatus{
				Players:     srv.NumberOfPlayers(),
				MaxPlayers:  int(srv.Cfg().MaxNumberOfPlayers),
				GameRunning: srv.GameRunning(),
			}
			if err := reg.Sync(addr, status); err != nil {
				log.Warn().Err(err).Msg("discovery sync failed")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
