package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/onecho/banchod/internal/bancho/admin"
	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/login"
	"github.com/onecho/banchod/internal/bancho/store"
	"github.com/onecho/banchod/internal/bancho/transport"
	"github.com/onecho/banchod/pkg/bootstrap"
	"github.com/onecho/banchod/pkg/config"
	"github.com/onecho/banchod/pkg/database"
	"github.com/onecho/banchod/pkg/encryption"
	"github.com/onecho/banchod/pkg/logging"
	"github.com/onecho/banchod/pkg/metrics"
	"github.com/onecho/banchod/pkg/ttyrec"
)

var (
	version   string = "dev"
	buildTime string = "unknown"
	gitCommit string = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/banchod.yaml", "Path to configuration file")
		debug       = flag.Bool("debug", false, "Force debug-level logging regardless of configuration")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("banchod %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if v := os.Getenv("MAIN_DOMAIN"); v != "" {
		cfg.Server.MainDomain = v
	}
	if v := os.Getenv("HTTP_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v, err := strconv.Atoi(os.Getenv("HTTP_PORT")); err == nil {
		cfg.Server.Port = v
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	logger := logging.NewServiceLogger("banchod", "core", toLoggingConfig(cfg.Logging))

	metricsRegistry := metrics.NewRegistry("banchod", version, buildTime, gitCommit, logger)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metricsRegistry.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	conn, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Error("failed to open database connection", "error", err)
		os.Exit(1)
	}

	crypt, err := encryption.New(cfg.Encryption)
	if err != nil {
		logger.Error("failed to configure password hashing", "error", err)
		os.Exit(1)
	}

	recorder, err := ttyrec.NewRecorder(cfg.TTYRec)
	if err != nil {
		logger.Error("failed to configure spectator recording", "error", err)
		os.Exit(1)
	}

	dataStore := store.New(conn)
	ctx := context.Background()
	if err := dataStore.Init(ctx); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	state := app.New(cfg, logger, metricsRegistry, dataStore, recorder)
	if err := state.Bootstrap(ctx); err != nil {
		logger.Error("failed to bootstrap application state", "error", err)
		os.Exit(1)
	}

	geoip := login.NewGeoIP(cfg.GeoIP, logger)
	limiter := login.NewRateLimiter(cfg.Security.LoginRateLimit)
	lockout := login.NewLockout(cfg.Security.MaxFailedAttempts, time.Duration(cfg.Security.LockoutDurationSec)*time.Second)
	loginSvc := login.NewService(state, crypt, geoip, limiter, lockout)

	httpServer := transport.NewServer(&transport.ServerConfig{Host: cfg.Server.Host, Port: cfg.Server.Port}, state, loginSvc, logger)
	if err := httpServer.Start(ctx); err != nil {
		logger.Error("failed to start bancho HTTP server", "error", err)
		os.Exit(1)
	}

	grpcServer := admin.NewGRPCServer(cfg.Server.Host, cfg.Server.GRPCPort, logger)
	if err := grpcServer.Start(ctx); err != nil {
		logger.Error("failed to start admin gRPC server", "error", err)
		os.Exit(1)
	}
	grpcServer.SetServing(true)

	tokens := admin.NewTokenIssuer(cfg.Admin.JWTSecret, cfg.Admin.Issuer)
	adminHTTP := admin.NewHTTPServer(cfg.Server.Host, cfg.Admin.HTTPPort, state, tokens)
	if err := adminHTTP.Start(ctx); err != nil {
		logger.Error("failed to start admin HTTP server", "error", err)
		os.Exit(1)
	}

	bootstrap.PrintBanner(version, gitCommit, map[string]string{
		"bancho http": fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"admin grpc":  fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort),
		"admin http":  fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Admin.HTTPPort),
		"domain":      cfg.Server.MainDomain,
	})
	logger.Info("banchod started",
		"bancho_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"main_domain", cfg.Server.MainDomain,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down gracefully")

	grpcServer.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping bancho HTTP server", "error", err)
	}
	if err := adminHTTP.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping admin HTTP server", "error", err)
	}
	if err := grpcServer.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping admin gRPC server", "error", err)
	}
	if cfg.Metrics.Enabled {
		if err := metricsRegistry.StopMetricsServer(shutdownCtx); err != nil {
			logger.Error("error stopping metrics server", "error", err)
		}
	}
	if err := conn.Close(); err != nil {
		logger.Error("error closing database connection", "error", err)
	}

	logger.Info("banchod stopped")
}

// toLoggingConfig adapts config.LoggingConfig's YAML field names to
// pkg/logging's Config shape.
func toLoggingConfig(c *config.LoggingConfig) logging.Config {
	out := logging.Config{Level: c.Level, Format: c.Format, Output: c.Output}
	if c.File != nil {
		out.File = &logging.LogFile{
			Directory: c.File.Directory,
			Filename:  c.File.Filename,
			MaxSize:   fmt.Sprintf("%dMB", c.File.MaxSizeMB),
			MaxFiles:  c.File.MaxBackup,
			MaxAge:    fmt.Sprintf("%dd", c.File.MaxAgeDay),
			Compress:  c.File.Compress,
		}
	}
	return out
}
