package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ryawaa/twinkle/src/config"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envFile := flag.String("env", "", "optional .env file (defaults to .env and .env.local)")
	flag.Parse()

	// 2. Load environment then config
	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		fmt.Printf("Error loading env: %v\n", err)
		os.Exit(1)
	}

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	// 4. Setup Components
	store, err := setupStore(conf.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	defer store.Close()

	deps := setupDependencies(conf.MConfig, appLogger, store)
	srv := server.NewServer(conf.MConfig, appLogger.Named("Server"), deps)

	// 5. Serve until signalled
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Info("Received %s, shutting down...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Shutdown error: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}
