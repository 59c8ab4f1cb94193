// Command ledger-migrate manages the relational sales ledger schema.
//
//	ledger-migrate [up|down|version]
//
// The database is taken from LEDGER_DB_DRIVER and LEDGER_DB_DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"club-pos/internal/config"
	"club-pos/internal/database/migrations"
	ledgerdb "club-pos/internal/ledger/db"
	"club-pos/internal/logger"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	log := logger.NewWithWriter(os.Stdout)
	if err := godotenv.Load(); err != nil {
		log.Debug("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	if cfg.Ledger.DB.Driver == "" || cfg.Ledger.DB.DSN == "" {
		log.Fatal("CONFIG", "LEDGER_DB_DRIVER and LEDGER_DB_DSN must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := ledgerdb.Open(ctx, cfg.Ledger.DB.Driver, cfg.Ledger.DB.DSN, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	if err := run(ctx, command, db, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
}

func run(ctx context.Context, command string, db *ledgerdb.DB, log *logger.Logger) error {
	if command == "up" {
		if err := db.Migrate(ctx, log); err != nil {
			return err
		}
		log.Info("MIGRATE", "✅ Ledger schema is up to date")
		return nil
	}

	if db.Driver != ledgerdb.DriverPostgres {
		return fmt.Errorf("%q is only supported for postgres ledgers", command)
	}
	runner := migrations.NewRunner(db.Bun, log)

	switch command {
	case "down":
		if err := runner.MigrateDown(); err != nil {
			return err
		}
		log.Info("MIGRATE", "Ledger schema rolled back")
	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		log.Info("MIGRATE", fmt.Sprintf("Ledger schema version %d (dirty: %t)", version, dirty))
	default:
		return fmt.Errorf("unknown command %q, want up, down or version", command)
	}
	return nil
}
