//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/KaraokeScore/internal/config"
	"github.com/himanishpuri/KaraokeScore/internal/observe"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke"
	"github.com/himanishpuri/KaraokeScore/pkg/logger"
)

var (
	configPath     string
	listen         string
	dbPath         string
	tempDir        string
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&listen, "listen", "", "HTTP listen address (default from config, :8080)")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite session database (env: KARAOKE_DB_PATH)")
	flag.StringVar(&tempDir, "temp", "", "Temporary directory (env: KARAOKE_TEMP_DIR)")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()
	log := logger.GetLogger().With("server")

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	config.ApplyEnv(cfg)
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.Audio.TempDir = tempDir
	}
	if allowedOrigins != "" {
		cfg.Server.CORSOrigin = allowedOrigins
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if os.Getenv(logger.EnvLevel) == "" {
		if lvl, ok := logger.ParseLevel(string(cfg.LogLevel)); ok {
			logger.SetLevel(lvl)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: "1.0.0"})
	if err != nil {
		log.Fatalf("Failed to initialise telemetry: %v", err)
	}
	defer provider.Shutdown(context.Background())
	metrics := observe.DefaultMetrics()

	opts := append(cfg.ServiceOptions(), karaoke.WithMetrics(metrics))
	service, err := karaoke.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	var origins []string
	for _, o := range strings.Split(cfg.Server.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	server := NewServer(service, &ServerConfig{
		Listen:         cfg.Server.Listen,
		DBPath:         cfg.Storage.DBPath,
		TempDir:        cfg.Audio.TempDir,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		ScoreTimeout:   cfg.Extraction.Timeout,
		AllowedOrigins: origins,
		Middleware:     []func(http.Handler) http.Handler{observe.Middleware(metrics)},
		MetricsHandler: provider.Handler(),
	}, log)

	if err := server.Run(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}
