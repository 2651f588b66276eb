// Package main applies database schema migrations.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/glasshouse-ai/glasshouse/internal/config"
)

const defaultMigrationsPath = "migrations/sql"

func main() {
	var (
		upFlag      = flag.Bool("up", false, "Apply all pending migrations")
		downFlag    = flag.Bool("down", false, "Roll back the most recent migration")
		resetFlag   = flag.Bool("reset", false, "Roll back all migrations")
		versionFlag = flag.Bool("version", false, "Show the current migration version")
		forceFlag   = flag.Int("force", -1, "Force the schema version without running migrations")
		dsn         = flag.String("dsn", "", "Database connection string (defaults to the service configuration)")
		dir         = flag.String("dir", defaultMigrationsPath, "Migrations directory")
	)
	flag.Parse()

	connStr := *dsn
	if connStr == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		connStr = cfg.Database.DSN()
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create postgres driver: %v", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", *dir), "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	switch {
	case *forceFlag >= 0:
		if err := migrator.Force(*forceFlag); err != nil {
			log.Fatalf("Failed to force version %d: %v", *forceFlag, err)
		}
		log.Printf("Forced schema version to %d", *forceFlag)

	case *upFlag:
		if err := migrator.Up(); err != nil {
			if err == migrate.ErrNoChange {
				log.Println("No migrations to run")
				return
			}
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations applied")

	case *downFlag:
		if err := migrator.Steps(-1); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rolled back one migration")

	case *resetFlag:
		if err := migrator.Down(); err != nil {
			if err == migrate.ErrNoChange {
				log.Println("No migrations to roll back")
				return
			}
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("All migrations rolled back")

	case *versionFlag:
		version, dirty, err := migrator.Version()
		if err != nil {
			if err == migrate.ErrNilVersion {
				log.Println("No migrations applied yet")
				return
			}
			log.Fatalf("Failed to read version: %v", err)
		}
		log.Printf("Schema version: %d (dirty: %t)", version, dirty)

	default:
		flag.Usage()
		os.Exit(1)
	}
}
