package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"isofit/adapters/postgres"
	"isofit/domain/isotherm"
	"isofit/internal/migration"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [exported_runs_dir]")
	}

	databaseURL := os.Args[1]
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}

	if len(os.Args) < 3 {
		return
	}
	runsDir := os.Args[2]
	log.Printf("Importing exported runs from %s", runsDir)

	repo := postgres.NewFitRunRepository(db)

	files, err := findRunFiles(runsDir)
	if err != nil {
		log.Fatalf("Failed to find run files: %v", err)
	}
	log.Printf("Found %d run files to import", len(files))

	imported := 0
	skipped := 0
	for _, file := range files {
		run, err := loadRunFromFile(file)
		if err != nil {
			log.Printf("Failed to load run from %s: %v", file, err)
			skipped++
			continue
		}

		if _, err := repo.GetByID(ctx, run.ID); err == nil {
			log.Printf("Run %s already archived, skipping %s", run.ID, filepath.Base(file))
			skipped++
			continue
		}

		if err := repo.Create(ctx, run); err != nil {
			log.Printf("Failed to save run %s: %v", run.ID, err)
			skipped++
			continue
		}

		imported++
		log.Printf("Imported run %s from %s", run.ID, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findRunFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// loadRunFromFile reads a run as returned by GET /api/v1/runs/:id. Files
// without an ID get a deterministic one derived from their path so that
// re-importing the same directory is idempotent.
func loadRunFromFile(filePath string) (*isotherm.FitRun, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var run isotherm.FitRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	if err := run.Report.Samples.Validate(); err != nil {
		return nil, err
	}

	if run.ID == uuid.Nil {
		run.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(filePath))
	}
	if run.Source == "" {
		run.Source = filepath.Base(filePath)
	}
	if run.CreatedAt.IsZero() {
		if info, err := os.Stat(filePath); err == nil {
			run.CreatedAt = info.ModTime().UTC()
		}
	}
	return &run, nil
}
