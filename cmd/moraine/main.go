package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moraine-llm/moraine/agent"
	"github.com/moraine-llm/moraine/capability"
	"github.com/moraine-llm/moraine/circuitbreaker"
	"github.com/moraine-llm/moraine/config"
	"github.com/moraine-llm/moraine/errors"
	"github.com/moraine-llm/moraine/server"
	"github.com/moraine-llm/moraine/server/metrics"
)

var (
	configFile   = flag.String("config", "moraine.yaml", "Path to configuration file")
	validateOnly = flag.Bool("validate", false, "Validate configuration and exit")
	version      = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("moraine %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	errors.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing or invalid credential is fatal: the process must not
	// proceed to serve requests without a working Bedrock client.
	client, err := agent.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Bedrock client; run 'aws configure' or set bedrock.credentials_file",
			zap.Error(err),
		)
	}

	m := metrics.NewMetrics()
	client.SetInvocationHook(m.RecordInvocation)

	if cfg.CircuitBreaker.Enabled {
		client.SetBreaker(circuitbreaker.New("bedrock", circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
			HalfOpenRequests: cfg.CircuitBreaker.HalfOpenRequests,
		}, logger, m.Registry()))
	}

	capRouter := capability.NewRouter(client, cfg.Bedrock.DefaultSystemPrompt, logger)

	router := server.NewRouter(cfg, client, capRouter, m, logger)
	srv := server.NewServer(cfg.Server, router, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	logger.Info("Starting moraine",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.Bedrock.ModelID),
		zap.String("region", cfg.Bedrock.Region),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zapCfg.Encoding = "console"
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
