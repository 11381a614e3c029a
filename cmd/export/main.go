// Command export writes the leads xlsx report from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/database"
	"matchwell/internal/export"
	"matchwell/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		fromFlag = flag.String("from", "", "period start, YYYY-MM-DD (default: 30 days ago)")
		toFlag   = flag.String("to", "", "period end, YYYY-MM-DD (default: tomorrow)")
		outFlag  = flag.String("out", "", "output directory (default: exports path from config)")
	)
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "export").Logger()

	now := time.Now().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)
	if *fromFlag != "" {
		from, err = time.Parse("2006-01-02", *fromFlag)
		if err != nil {
			return fmt.Errorf("invalid -from: %w", err)
		}
	}
	if *toFlag != "" {
		to, err = time.Parse("2006-01-02", *toFlag)
		if err != nil {
			return fmt.Errorf("invalid -to: %w", err)
		}
	}

	dir := cfg.Exports.Path
	if *outFlag != "" {
		dir = *outFlag
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	path, err := export.NewService(db, &logger).SaveLeadsReport(context.Background(), dir, from, to)
	if err != nil {
		return err
	}

	fmt.Println(path)
	return nil
}
