package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"isofit/domain/isotherm"
	"isofit/internal/errors"
	"isofit/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// fitRunRepository implements the FitRunRepository interface
type fitRunRepository struct {
	db *sqlx.DB
}

// NewFitRunRepository creates a new fit run repository
func NewFitRunRepository(db *sqlx.DB) ports.FitRunRepository {
	return &fitRunRepository{db: db}
}

// fitRunRow is the fit_runs table layout
type fitRunRow struct {
	ID              uuid.UUID       `db:"id"`
	Source          string          `db:"source"`
	Adsorbent       string          `db:"adsorbent"`
	Adsorbate       string          `db:"adsorbate"`
	MolecularWeight float64         `db:"molecular_weight"`
	DoseGL          float64         `db:"dose_g_l"`
	SampleCount     int             `db:"sample_count"`
	LangmuirR2      sql.NullFloat64 `db:"langmuir_r2"`
	FreundlichR2    sql.NullFloat64 `db:"freundlich_r2"`
	Report          []byte          `db:"report"`
	CreatedAt       sql.NullTime    `db:"created_at"`
}

const selectFitRun = `SELECT
	id, source, adsorbent, adsorbate, molecular_weight, dose_g_l, sample_count,
	langmuir_r2, freundlich_r2, report, created_at
FROM fit_runs`

// Create inserts a new run. The R² columns stay NULL for failed fits and
// undefined scores so they can be filtered in SQL.
func (r *fitRunRepository) Create(ctx context.Context, run *isotherm.FitRun) error {
	reportJSON, err := json.Marshal(run.Report)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}

	query := `INSERT INTO fit_runs (
		id, source, adsorbent, adsorbate, molecular_weight, dose_g_l, sample_count,
		langmuir_r2, freundlich_r2, report, created_at
	) VALUES (
		:id, :source, :adsorbent, :adsorbate, :molecular_weight, :dose_g_l, :sample_count,
		:langmuir_r2, :freundlich_r2, :report, :created_at
	)`

	row := fitRunRow{
		ID:              run.ID,
		Source:          run.Source,
		Adsorbent:       run.Experiment.Adsorbent,
		Adsorbate:       run.Experiment.Adsorbate,
		MolecularWeight: run.Experiment.MolecularWeight,
		DoseGL:          run.Experiment.DoseGL,
		SampleCount:     len(run.Report.Samples),
		LangmuirR2:      r2Column(run.Report.Langmuir),
		FreundlichR2:    r2Column(run.Report.Freundlich),
		Report:          reportJSON,
		CreatedAt:       sql.NullTime{Time: run.CreatedAt, Valid: !run.CreatedAt.IsZero()},
	}

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "failed to create fit run")
	}
	return nil
}

// GetByID retrieves a run by its ID
func (r *fitRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*isotherm.FitRun, error) {
	var row fitRunRow
	err := r.db.GetContext(ctx, &row, selectFitRun+` WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("fit run %s", id))
		}
		return nil, errors.Wrap(errors.DatabaseError(err.Error()), "failed to get fit run")
	}
	return row.toDomain()
}

// List returns runs, newest first
func (r *fitRunRepository) List(ctx context.Context, limit, offset int) ([]*isotherm.FitRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []fitRunRow
	err := r.db.SelectContext(ctx, &rows, selectFitRun+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError(err.Error()), "failed to list fit runs")
	}

	runs := make([]*isotherm.FitRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Delete removes a run
func (r *fitRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fit_runs WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "failed to delete fit run")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound(fmt.Sprintf("fit run %s", id))
	}
	return nil
}

func (row fitRunRow) toDomain() (*isotherm.FitRun, error) {
	run := &isotherm.FitRun{
		ID:     row.ID,
		Source: row.Source,
		Experiment: isotherm.Experiment{
			Adsorbent:       row.Adsorbent,
			Adsorbate:       row.Adsorbate,
			MolecularWeight: row.MolecularWeight,
			DoseGL:          row.DoseGL,
		},
		CreatedAt: row.CreatedAt.Time,
	}
	if len(row.Report) > 0 {
		if err := json.Unmarshal(row.Report, &run.Report); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal report")
		}
	}
	return run, nil
}

func r2Column(outcome isotherm.ModelOutcome) sql.NullFloat64 {
	if !outcome.OK() || outcome.Metrics == nil || !outcome.Metrics.R2.Defined {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: outcome.Metrics.R2.Value, Valid: true}
}
