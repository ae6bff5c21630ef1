package ports

import (
	"context"

	"isofit/domain/isotherm"

	"github.com/google/uuid"
)

// FitRunRepository archives pipeline runs
type FitRunRepository interface {
	Create(ctx context.Context, run *isotherm.FitRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*isotherm.FitRun, error)
	List(ctx context.Context, limit, offset int) ([]*isotherm.FitRun, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
