package main

//go:generate go run github.com/swaggo/swag/cmd/swag@v1.16.6 init -g main.go -d ./,../../internal -o ../../api/swagger --outputTypes go

//	@title			HydroSim API
//	@version		0.1.0
//	@description	Hydroponic lettuce leaf-count forecasting and growth quality classification.
//	@BasePath		/api/v1

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/HerbHall/hydrosim/api/swagger"
	"github.com/HerbHall/hydrosim/internal/config"
	"github.com/HerbHall/hydrosim/internal/event"
	"github.com/HerbHall/hydrosim/internal/insight"
	"github.com/HerbHall/hydrosim/internal/quality"
	"github.com/HerbHall/hydrosim/internal/registry"
	"github.com/HerbHall/hydrosim/internal/server"
	"github.com/HerbHall/hydrosim/internal/version"
	"github.com/HerbHall/hydrosim/internal/ws"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		case "train":
			os.Exit(runTrain(os.Args[2:]))
		case "fit":
			os.Exit(runFit(os.Args[2:]))
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("HydroSim server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	srvCfg := server.DefaultConfig()
	if err := cfg.Sub("server").Unmarshal(&srvCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}

	bus := event.NewBus(logger.Named("event"))
	logger.Info("event bus created", zap.String("component", "event"))

	reg := registry.New(logger.Named("registry"))

	// Register all plugins (compile-time composition)
	insightMod := insight.New()
	modules := []plugin.Plugin{
		insightMod,
		quality.New(),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
		name := m.Info().Name
		if !viperCfg.GetBool("plugins." + name + ".enabled") {
			if err := reg.Disable(name, "disabled by configuration"); err != nil {
				logger.Fatal("cannot disable plugin", zap.String("name", name), zap.Error(err))
			}
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config: cfg.Sub("plugins." + name),
			Logger: logger.Named(name),
			Bus:    bus,
		}
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	// Progress stream for forecast runs.
	wsHandler := ws.NewHandler(insightMod, bus, srvCfg.AllowedOrigins, logger.Named("ws"))
	logger.Info("websocket handler initialized", zap.String("component", "ws"))

	// Ready once the required forecaster plugin is running.
	readyCheck := server.ReadinessChecker(func(_ context.Context) error {
		if reg.IsDisabled("insight") {
			return fmt.Errorf("insight plugin is disabled")
		}
		return nil
	})
	srv := server.New(srvCfg, reg, logger, readyCheck, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("HydroSim server ready", zap.String("addr", srvCfg.Addr()))
	fmt.Fprintf(os.Stderr, "\n  HydroSim %s is ready!\n  API at http://localhost:%d/api/v1\n\n", version.Short(), srvCfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("HydroSim server stopped")
}
