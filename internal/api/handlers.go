package api

import (
	"bytes"
	"log"
	"net/http"
	"strconv"

	"isofit/app"
	"isofit/domain/isotherm"
	"isofit/internal/chart"
	"isofit/internal/dataset"
	"isofit/internal/errors"
	"isofit/internal/fitting"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FitHandler serves fitting, derivation, charts and the run archive
type FitHandler struct {
	service *app.FittingService
}

// NewFitHandler creates a new fit handler
func NewFitHandler(service *app.FittingService) *FitHandler {
	return &FitHandler{service: service}
}

type fitRequest struct {
	Samples         isotherm.SampleSet   `json:"samples"`
	LangmuirGuess   []float64            `json:"langmuir_guess"`
	FreundlichGuess []float64            `json:"freundlich_guess"`
	MaxIterations   int                  `json:"max_iterations"`
	Experiment      *isotherm.Experiment `json:"experiment"`
	Archive         bool                 `json:"archive"`
}

type deriveRequest struct {
	Rows []struct {
		InitialConc     float64 `json:"initial_conc"`
		InitialPeakArea float64 `json:"initial_peak_area"`
		AfterPeakArea   float64 `json:"after_peak_area"`
	} `json:"rows"`
	MolecularWeight float64 `json:"molecular_weight"`
	AdsorbentConcGL float64 `json:"adsorbent_conc_g_l"`
}

// Health reports liveness and whether the run archive is available
func (h *FitHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"archive": h.service.Runs() != nil,
	})
}

// Fit fits both isotherms to the posted samples
func (h *FitHandler) Fit(c *gin.Context) {
	req, ok := h.bindFit(c)
	if !ok {
		return
	}
	report, err := h.fit(c, req)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"report": report}
	if req.Archive && h.service.Runs() != nil {
		run := isotherm.NewFitRun("api", h.experiment(req), *report)
		if err := h.service.Runs().Create(c.Request.Context(), run); err != nil {
			respondError(c, err)
			return
		}
		resp["run_id"] = run.ID
	}
	c.JSON(http.StatusOK, resp)
}

// Derive converts raw peak-area rows into samples
func (h *FitHandler) Derive(c *gin.Context) {
	var req deriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(req.Rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rows must not be empty"})
		return
	}

	cfg := h.service.Config()
	k := dataset.Constants{MolecularWeight: req.MolecularWeight, AdsorbentConcGL: req.AdsorbentConcGL}
	if k.MolecularWeight == 0 {
		k.MolecularWeight = cfg.Experiment.MolecularWeight
	}
	if k.AdsorbentConcGL == 0 {
		k.AdsorbentConcGL = cfg.Experiment.AdsorbentConcGL
	}
	if err := k.Validate(); err != nil {
		respondError(c, err)
		return
	}

	rows := make([]dataset.Row, 0, len(req.Rows))
	samples := make(isotherm.SampleSet, 0, len(req.Rows))
	for i, r := range req.Rows {
		row, err := dataset.DeriveRow(r.InitialConc, r.InitialPeakArea, r.AfterPeakArea, k)
		if err != nil {
			respondError(c, errors.Wrapf(err, "row %d", i+1))
			return
		}
		row.Line = i + 1
		rows = append(rows, row)
		samples = append(samples, isotherm.Sample{Ce: row.Ce, Qe: row.Qe})
	}

	c.JSON(http.StatusOK, gin.H{"rows": rows, "samples": samples})
}

// Chart renders the isotherm figure for the posted samples as PNG
func (h *FitHandler) Chart(c *gin.Context) {
	req, ok := h.bindFit(c)
	if !ok {
		return
	}
	report, err := h.fit(c, req)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	err = chart.Render(&buf, "png", chart.Input{
		Title:       h.experiment(req).Title(),
		Report:      report,
		CurvePoints: h.service.Config().Output.CurvePoints,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// ListRuns returns archived runs, newest first
func (h *FitHandler) ListRuns(c *gin.Context) {
	repo := h.service.Runs()
	if repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run archive not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	runs, err := repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one archived run
func (h *FitHandler) GetRun(c *gin.Context) {
	repo := h.service.Runs()
	if repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Run archive not configured"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	run, err := repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *FitHandler) bindFit(c *gin.Context) (*fitRequest, bool) {
	var req fitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return nil, false
	}
	if req.MaxIterations < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_iterations must not be negative"})
		return nil, false
	}
	return &req, true
}

// fit runs both models. It fails with FIT_FAILED only when neither model
// could be fitted; a single failure is reported inside the outcome.
func (h *FitHandler) fit(c *gin.Context, req *fitRequest) (*isotherm.Report, error) {
	var guesses fitting.Guesses
	var err error
	if guesses.Langmuir, err = guessParams("langmuir_guess", req.LangmuirGuess); err != nil {
		return nil, err
	}
	if guesses.Freundlich, err = guessParams("freundlich_guess", req.FreundlichGuess); err != nil {
		return nil, err
	}
	report, err := h.service.FitSamples(c.Request.Context(), req.Samples, guesses, req.MaxIterations)
	if err != nil {
		return nil, err
	}
	if !report.Langmuir.OK() && !report.Freundlich.OK() {
		return nil, errors.New(errors.CodeFitFailed,
			"no model could be fitted: "+report.Langmuir.Error+"; "+report.Freundlich.Error)
	}
	return report, nil
}

func (h *FitHandler) experiment(req *fitRequest) isotherm.Experiment {
	if req.Experiment != nil {
		return *req.Experiment
	}
	return h.service.Experiment()
}

func guessParams(field string, v []float64) (*isotherm.Params, error) {
	if v == nil {
		return nil, nil
	}
	if len(v) != 2 {
		return nil, errors.InvalidInputf("%s must have exactly 2 values, got %d", field, len(v))
	}
	p := isotherm.ParamsFromSlice(v)
	return &p, nil
}

// respondError maps error codes to HTTP statuses
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeInvalidInput:
		status = http.StatusBadRequest
	case errors.CodeFitFailed:
		status = http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
