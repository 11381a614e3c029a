package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/database"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type therapistsConfig struct {
	Therapists []models.Therapist `yaml:"therapists"`
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
		rosterPath = flag.String("therapists", "configs/therapists.yaml", "path to therapists.yaml")
		dbPath     = flag.String("db", "./data/matchwell.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*rosterPath)
	if err != nil {
		return fmt.Errorf("read therapists: %w", err)
	}
	var cfg therapistsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse therapists: %w", err)
	}
	if len(cfg.Therapists) == 0 {
		return fmt.Errorf("no therapists in yaml")
	}
	if err = config.ValidateTherapists(cfg.Therapists); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Therapists {
		t := &cfg.Therapists[i]
		if t.Name == "" {
			continue
		}
		existing, err := db.GetTherapistByName(ctx, t.Name)
		if err == nil {
			t.ID = existing.ID
			if err = db.UpdateTherapist(ctx, t); err != nil {
				return fmt.Errorf("update %s: %w", t.Name, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("get %s: %w", t.Name, err)
		}
		if err = db.CreateTherapist(ctx, t); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
