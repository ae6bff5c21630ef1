package testkit

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"isofit/domain/isotherm"
	"isofit/internal/errors"
	"isofit/ports"

	"github.com/google/uuid"
)

// InMemoryFitRunRepository is a FitRunRepository backed by a map
type InMemoryFitRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*isotherm.FitRun
}

var _ ports.FitRunRepository = (*InMemoryFitRunRepository)(nil)

// NewInMemoryFitRunRepository creates an empty run archive
func NewInMemoryFitRunRepository() *InMemoryFitRunRepository {
	return &InMemoryFitRunRepository{runs: make(map[uuid.UUID]*isotherm.FitRun)}
}

func (s *InMemoryFitRunRepository) Create(ctx context.Context, run *isotherm.FitRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.DatabaseError("fit run " + run.ID.String() + " already exists")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *InMemoryFitRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*isotherm.FitRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.NotFound("fit run " + id.String())
	}
	return run, nil
}

// List mirrors the Postgres ordering: newest first, default limit 50
func (s *InMemoryFitRunRepository) List(ctx context.Context, limit, offset int) ([]*isotherm.FitRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	all := make([]*isotherm.FitRun, 0, len(s.runs))
	for _, run := range s.runs {
		all = append(all, run)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*isotherm.FitRun{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *InMemoryFitRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return errors.NotFound("fit run " + id.String())
	}
	delete(s.runs, id)
	return nil
}

// Len returns the number of archived runs
func (s *InMemoryFitRunRepository) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// GenerateSamples evaluates model at every ce and multiplies Qe by
// (1 + noise*N(0,1)). The same seed always yields the same samples.
func GenerateSamples(model isotherm.Model, p isotherm.Params, ces []float64, noise float64, seed int64) isotherm.SampleSet {
	rng := rand.New(rand.NewSource(seed))
	v := p.Slice()
	out := make(isotherm.SampleSet, len(ces))
	for i, ce := range ces {
		qe := model.Eval(ce, v)
		if noise > 0 {
			qe *= 1 + noise*rng.NormFloat64()
		}
		out[i] = isotherm.Sample{Ce: ce, Qe: qe}
	}
	return out
}

// ExperimentSamples is the five-point data set used across the test suites
func ExperimentSamples() isotherm.SampleSet {
	return isotherm.SampleSet{{Ce: 1, Qe: 2}, {Ce: 2, Qe: 3.2}, {Ce: 3, Qe: 3.8}, {Ce: 4, Qe: 4.1}, {Ce: 5, Qe: 4.3}}
}
