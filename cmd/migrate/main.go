// Migration runner for the KeyGate database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/db"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
		showVersion = flag.Bool("version", false, "print current schema version and exit")
		timeout     = flag.Duration("timeout", 5*time.Minute, "migration timeout")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "database URL is required (flag -database-url or env DATABASE_URL)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	database, err := db.New(ctx, db.DefaultConfig(*databaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if *showVersion {
		version, err := database.CurrentVersion(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read schema version")
		}
		fmt.Printf("schema version: %d\n", version)
		return
	}

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	version, err := database.CurrentVersion(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read schema version")
	}
	logger.Info().Int("version", version).Msg("migrations complete")
}
