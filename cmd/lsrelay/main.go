package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaspardpetit/lsrelay/internal/config"
	"github.com/gaspardpetit/lsrelay/internal/logx"
	"github.com/gaspardpetit/lsrelay/internal/metrics"
	"github.com/gaspardpetit/lsrelay/internal/proc"
	"github.com/gaspardpetit/lsrelay/internal/relay"
	"github.com/gaspardpetit/lsrelay/internal/status"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.RelayConfig
	cfg.BindFlags()
	flag.Parse()
	if *showVersion {
		fmt.Printf("lsrelay version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	// The server command line after the flags wins over the config
	// file, e.g. `lsrelay -- pyright-langserver --stdio`.
	if args := flag.Args(); len(args) > 0 {
		cfg.Server.Command = args[0]
		cfg.Server.Args = args[1:]
	}
	logx.Configure(cfg.LogLevel, cfg.LogFile)
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}

	metrics.Register(prometheus.DefaultRegisterer)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logx.Log.Info().
		Str("host_root", cfg.HostRoot).
		Str("container_root", cfg.ContainerRoot).
		Msg("path mapping initialized")

	server, err := proc.Start(cfg.Server.Command, cfg.Server.Args, cfg.Server.Env)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("start language server")
	}
	logx.Log.Info().Int("pid", server.PID()).Str("command", cfg.Server.Command).Strs("args", cfg.Server.Args).Msg("language server started")
	go server.ForwardStderr(os.Stderr)

	eng := relay.New(relay.Options{
		Mapping:   cfg.Mapping(),
		Server:    server,
		EditorIn:  os.Stdin,
		EditorOut: os.Stdout,
		Grace:     cfg.GracePeriod,
	})

	if cfg.StatusAddr != "" {
		addr, err := status.Start(ctx, cfg.StatusAddr, status.Sources{
			Stats:   eng.Stats,
			PID:     server.PID,
			Version: status.VersionInfo{Version: version, BuildSHA: buildSHA, BuildDate: buildDate},
		})
		if err != nil {
			_ = server.Shutdown(cfg.GracePeriod)
			logx.Log.Fatal().Err(err).Msg("start status server")
		}
		logx.Log.Info().Str("addr", addr).Msg("status server started")
	}

	if err := eng.Run(ctx); err != nil {
		logx.Log.Fatal().Err(err).Msg("relay stopped")
	}
	logx.Log.Info().Msg("relay shutdown complete")
}
