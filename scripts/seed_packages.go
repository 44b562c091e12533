package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"wayfare/internal/database"
	"wayfare/internal/models"
)

type PackagesConfig struct {
	Packages []models.Package `yaml:"packages"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		packagesPath = flag.String("packages", "configs/packages.yaml", "path to packages.yaml")
		dbPath       = flag.String("db", "./data/wayfare.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*packagesPath)
	if err != nil {
		return fmt.Errorf("read packages: %w", err)
	}

	var catalog PackagesConfig
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse packages: %w", err)
	}
	if len(catalog.Packages) == 0 {
		return fmt.Errorf("no packages found in %s", *packagesPath)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range catalog.Packages {
		pkg := &catalog.Packages[i]
		if err := db.UpsertPackage(ctx, pkg); err != nil {
			return fmt.Errorf("upsert package %s: %w", pkg.ID, err)
		}
		logger.Info().Str("id", pkg.ID).Str("name", pkg.Name).Msg("package seeded")
	}

	logger.Info().Int("count", len(catalog.Packages)).Msg("catalog seed complete")
	return nil
}
