package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/provider-scheduling-engine/internal/appointment"
	"github.com/hackgods/provider-scheduling-engine/internal/bootstrap"
	"github.com/hackgods/provider-scheduling-engine/internal/config"
	"github.com/hackgods/provider-scheduling-engine/internal/db"
)

func main() {
	var providers, patients int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply migrations and load fake providers and patients into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(providers, patients)
		},
	}
	cmd.Flags().IntVar(&providers, "providers", 100, "Number of providers")
	cmd.Flags().IntVar(&patients, "patients", 9000, "Number of patients")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(providers, patients int) error {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Error().Err(err).Msg("config load error")
		return err
	}

	logger := bootstrap.NewLogger(cfg, "seed")
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Error().Err(err).Msg("connect postgres")
		return err
	}
	defer pool.Close()

	applied, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("migrate")
		return err
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")

	gofakeit.Seed(time.Now().UnixNano())

	seeded, err := bootstrap.SeedDirectory(ctx, appointment.NewPgRepository(pool), providers, patients, logger)
	if err != nil {
		logger.Error().Err(err).Msg("seed failed")
		return err
	}

	logger.Info().
		Int("providers", len(seeded.Providers)).
		Int("patients", len(seeded.Patients)).
		Msg("seed complete")
	return nil
}
