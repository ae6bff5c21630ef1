package container

import (
	"context"
	"fmt"
	"log"

	"isofit/adapters/postgres"
	"isofit/app"
	"isofit/internal/config"
	"isofit/internal/errors"
	"isofit/internal/migration"
	"isofit/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure, nil when DATABASE_URL is empty
	DB *sqlx.DB

	// Repositories (data access layer)
	FitRunRepo ports.FitRunRepository

	// Services
	FittingService *app.FittingService
}

// New creates a new dependency injection container. The run archive is
// connected and migrated only when a database URL is configured.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
	}

	if cfg.Database.URL != "" {
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	} else {
		log.Printf("[Container] DATABASE_URL not set, run archive disabled")
	}

	c.FittingService = app.NewFittingService(cfg, c.FitRunRepo)
	return c, nil
}

// initDatabase connects, migrates and builds the repositories
func (c *Container) initDatabase(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "failed to connect to database")
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = db
	c.initRepositories()
	log.Printf("[Container] Run archive connected")
	return nil
}

// initRepositories initializes data access repositories
func (c *Container) initRepositories() {
	c.FitRunRepo = postgres.NewFitRunRepository(c.DB)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
