package testkit

import (
	"context"
	"testing"
	"time"

	"isofit/domain/isotherm"
	"isofit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryFitRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryFitRunRepository()

	older := isotherm.NewFitRun("a.csv", isotherm.Experiment{}, isotherm.Report{})
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := isotherm.NewFitRun("b.csv", isotherm.Experiment{}, isotherm.Report{})
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	assert.Error(t, repo.Create(ctx, newer))

	runs, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)

	runs, err = repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, older.ID, runs[0].ID)

	runs, err = repo.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.GetByID(ctx, older.ID)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(repo.Delete(ctx, older.ID)))
	assert.Equal(t, 1, repo.Len())
}

func TestGenerateSamples(t *testing.T) {
	ces := []float64{1, 2, 4, 8}
	p := isotherm.Params{First: 10, Second: 0.5}

	exact := GenerateSamples(isotherm.Langmuir{}, p, ces, 0, 1)
	assert.InDelta(t, 10*0.5*4/(1+0.5*4), exact[2].Qe, 1e-12)

	a := GenerateSamples(isotherm.Langmuir{}, p, ces, 0.05, 42)
	b := GenerateSamples(isotherm.Langmuir{}, p, ces, 0.05, 42)
	assert.Equal(t, a, b)
	assert.NotEqual(t, exact, a)
	for i := range a {
		assert.Equal(t, ces[i], a[i].Ce)
	}
}
