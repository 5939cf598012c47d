package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/JustJay7/pje-capture/internal/app"
	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/config"
	"github.com/JustJay7/pje-capture/internal/credentials"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/server"
	"github.com/JustJay7/pje-capture/pkg/logger"
)

func main() {
	var migrate bool
	flag.BoolVar(&migrate, "migrate", false, "Run database migrations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}

	if migrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations completed successfully")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps, closeStores, err := app.Build(ctx, cfg, db, log)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize capture dependencies", "error", err)
	}
	defer closeStores()

	courts, err := credentials.NewRepository(db).ListCourtConfigs(context.Background())
	if err != nil {
		log.Fatal("Failed to load court configs", "error", err)
	}
	if err := deps.Registry.Validate(courts); err != nil {
		// unsupported courts only fail the runs that target them
		log.Warn("Some configured courts have no driver", "error", err)
	}

	srv := server.New(cfg, db, capture.NewService(deps), deps.Registry, log)

	log.Info("Starting PJE capture service",
		"host", cfg.Host,
		"port", cfg.Port,
		"systems", deps.Registry.Systems(),
		"courts", len(courts),
	)

	if err := srv.Run(); err != nil {
		log.Fatal("Server failed to start", "error", err)
	}
}
