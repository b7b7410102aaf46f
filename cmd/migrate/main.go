package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/kdimtricp/verifai/internal/config"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/logging"
)

func main() {
	var (
		dbType         = flag.String("db", "", "Database type (postgres or sqlite); overrides DB_TYPE")
		migrationsPath = flag.String("migrations", "", "Path to migrations directory; overrides MIGRATIONS_PATH")
		status         = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logCfg := cfg.LogConfig()
	logCfg.Format = "console"
	logging.Init(logCfg)

	if *dbType != "" {
		cfg.Database.Type = *dbType
	}
	if *migrationsPath != "" {
		cfg.MigrationsPath = *migrationsPath
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := database.NewMigrator(db.Conn(), db.Type())

	if *status {
		statuses, err := migrator.Status(ctx, cfg.MigrationsPath)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to read migration status")
		}

		fmt.Println("Migration Status:")
		fmt.Println("=================")
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s - %s [%s]\n", s.Version, s.Name, state)
		}
		return
	}

	fmt.Printf("Running migrations from %s...\n", cfg.MigrationsPath)
	n, err := migrator.Run(ctx, cfg.MigrationsPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to run migrations")
	}
	fmt.Printf("Migrations completed successfully (%d applied)\n", n)
}
