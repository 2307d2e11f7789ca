package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/rs/zerolog/log"

	"spicam-server/internal/api"
	"spicam-server/internal/api/healthgrpc"
	"spicam-server/internal/clock"
	"spicam-server/internal/config"
	"spicam-server/internal/logging"
	"spicam-server/internal/services"
)

// @title sPiCam API
// @version 1.0.0
// @description Camera, motion detection and notification backend for a Raspberry Pi security camera.
// @BasePath /

type Args struct {
	EnvFile  string `arg:"-e,--env-file" help:"dotenv file with configuration and persisted motion settings"`
	Port     int    `arg:"-p,--port" help:"HTTP port, overrides PORT"`
	LogLevel string `arg:"--log-level" help:"log level, overrides LOG_LEVEL"`
}

func (Args) Description() string {
	return "sPiCam camera server"
}

func procArgs() Args {
	var args Args
	args.EnvFile = config.DefaultEnvFile
	arg.MustParse(&args)
	return args
}

func main() {
	args := procArgs()

	// Load configuration
	cfg := config.Load(args.EnvFile)
	if args.Port > 0 {
		cfg.Port = args.Port
	}
	if args.LogLevel != "" {
		cfg.LogLevel = args.LogLevel
	}

	// Setup structured logging
	logging.Configure(cfg)

	log.Info().
		Str("device_id", cfg.DeviceID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("media_dir", cfg.MediaDir).
		Msg("Starting sPiCam")

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container.Start(ctx)

	server := api.NewServer(cfg, api.Deps{
		Arbiter:    container.Arbiter,
		Detector:   container.Detector,
		Media:      container.Media,
		Dispatcher: container.Dispatcher,
		Tokens:     container.Tokens,
	})
	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup API server")
	}

	addr, err := server.Listen()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to bind API server")
	}
	log.Debug().Str("addr", addr.String()).Msg("API listener bound")

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	var health *healthgrpc.Server
	if cfg.GRPCHealthEnabled {
		health, err = startHealth(ctx, cfg, container)
		if err != nil {
			log.Error().Err(err).Msg("gRPC health server not started")
		}
	}

	notifySystemd("READY=1")
	go runWatchdog(ctx)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	// Graceful shutdown
	notifySystemd("STOPPING=1")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if health != nil {
		health.Stop()
	}
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Services did not shut down cleanly")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

func startHealth(ctx context.Context, cfg *config.Config, container *services.ServiceContainer) (*healthgrpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, err
	}
	hs := healthgrpc.NewServer(container.Arbiter, clock.Real{}, logging.NewServiceLogger(cfg, "grpc-health"))
	go func() {
		if err := hs.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC health server failed")
		}
	}()
	go hs.Watch(ctx)
	return hs, nil
}
