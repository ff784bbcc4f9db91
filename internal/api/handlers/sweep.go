package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/strategy"
	"github.com/wonny/sweeper/internal/sweep"
	"github.com/wonny/sweeper/internal/sweepconfig"
	"github.com/wonny/sweeper/pkg/logger"
)

// SweepService is the part of sweep.Service the handlers use
type SweepService interface {
	RunSweep(ctx context.Context, req sweep.SweepRequest) (string, *sweep.Report, error)
	GetRun(ctx context.Context, runID string) (*contracts.SweepRun, error)
	GetResults(ctx context.Context, runID string) ([]contracts.CandidateResult, error)
	GetBestSelections(ctx context.Context, runID string) ([]contracts.BestSelection, error)
	RecomputeBest(ctx context.Context, runID string) (int, error)
	DeleteRun(ctx context.Context, runID string) error
}

// SweepHandler handles sweep API endpoints
// ⭐ SSOT: 스윕 API 핸들러는 이 구조체에서만
type SweepHandler struct {
	service SweepService
	logger  *logger.Logger
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(service SweepService, log *logger.Logger) *SweepHandler {
	return &SweepHandler{
		service: service,
		logger:  log.Module("api"),
	}
}

// GridRequest lists period values expanded into tuples
type GridRequest struct {
	Fast   []int `json:"fast"`
	Slow   []int `json:"slow"`
	Signal []int `json:"signal"`
}

// BacktestRequest overrides evaluator defaults
type BacktestRequest struct {
	InitialCapital *float64 `json:"initial_capital"`
	Commission     *float64 `json:"commission"`
	MinTrades      *int     `json:"min_trades"`
}

// RunSweepRequest represents a sweep request.
// Either tuples or grid must be given.
type RunSweepRequest struct {
	Name      string                     `json:"name"`
	Tickers   []string                   `json:"tickers"`
	Family    string                     `json:"family"`
	From      string                     `json:"from"` // YYYY-MM-DD
	To        string                     `json:"to"`   // YYYY-MM-DD
	Tuples    []contracts.ParameterTuple `json:"tuples"`
	Grid      *GridRequest               `json:"grid"`
	Backtest  BacktestRequest            `json:"backtest"`
	PoolWidth int                        `json:"pool_width"`
	BatchSize int                        `json:"batch_size"`
}

// RunSweepResponse represents a sweep response
type RunSweepResponse struct {
	Status string        `json:"status"`
	RunID  string        `json:"run_id"`
	Report *sweep.Report `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// RunSweep runs a single-family sweep synchronously
// POST /api/sweeps
func (h *SweepHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	var body RunSweepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := body.toSweepRequest()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"name":    req.Name,
		"family":  string(req.Family),
		"tickers": len(req.Tickers),
		"tuples":  len(req.Tuples),
	}).Info("Sweep triggered")

	runID, report, err := h.service.RunSweep(r.Context(), req)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, RunSweepResponse{Status: "success", RunID: runID, Report: report})
	case errors.Is(err, sweep.ErrAllFailed):
		respondJSON(w, http.StatusUnprocessableEntity, RunSweepResponse{
			Status: "failed", RunID: runID, Report: report, Error: err.Error(),
		})
	case isRequestError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).WithField("run_id", runID).Error("Sweep failed")
		respondError(w, http.StatusInternalServerError, "Sweep failed")
	}
}

// GetRun returns a run
// GET /api/sweeps/{id}
func (h *SweepHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLookupError(w, err, "Failed to retrieve sweep run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// GetResults returns raw results, optionally filtered by ?ticker= and ?family=
// GET /api/sweeps/{id}/results
func (h *SweepHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.GetResults(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLookupError(w, err, "Failed to retrieve sweep results")
		return
	}

	ticker := strings.ToUpper(r.URL.Query().Get("ticker"))
	family := strings.ToUpper(r.URL.Query().Get("family"))
	if ticker != "" || family != "" {
		filtered := make([]contracts.CandidateResult, 0, len(results))
		for _, c := range results {
			if ticker != "" && strings.ToUpper(c.Ticker) != ticker {
				continue
			}
			if family != "" && string(c.Family) != family {
				continue
			}
			filtered = append(filtered, c)
		}
		results = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}

// GetBest returns stored best selections
// GET /api/sweeps/{id}/best
func (h *SweepHandler) GetBest(w http.ResponseWriter, r *http.Request) {
	best, err := h.service.GetBestSelections(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLookupError(w, err, "Failed to retrieve best selections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(best),
		"selections": best,
	})
}

// RecomputeBest recomputes best selections
// POST /api/sweeps/{id}/best
func (h *SweepHandler) RecomputeBest(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	n, err := h.service.RecomputeBest(r.Context(), runID)
	if err != nil {
		h.respondLookupError(w, err, "Failed to recompute best selections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"run_id":     runID,
		"selections": n,
	})
}

// DeleteRun deletes a run with its results and selections
// DELETE /api/sweeps/{id}
func (h *SweepHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRun(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondLookupError(w, err, "Failed to delete sweep run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SweepHandler) respondLookupError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, contracts.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Sweep run not found")
		return
	}
	h.logger.WithError(err).Error(message)
	respondError(w, http.StatusInternalServerError, message)
}

func isRequestError(err error) bool {
	return errors.Is(err, sweep.ErrNoTickers) ||
		errors.Is(err, strategy.ErrInvalidParams) ||
		errors.Is(err, strategy.ErrUnknownFamily)
}

func (b RunSweepRequest) toSweepRequest() (sweep.SweepRequest, error) {
	family, err := contracts.ParseFamily(b.Family)
	if err != nil {
		return sweep.SweepRequest{}, err
	}

	from, err := time.Parse("2006-01-02", b.From)
	if err != nil {
		return sweep.SweepRequest{}, errors.New("invalid 'from' date format (expected YYYY-MM-DD)")
	}
	to, err := time.Parse("2006-01-02", b.To)
	if err != nil {
		return sweep.SweepRequest{}, errors.New("invalid 'to' date format (expected YYYY-MM-DD)")
	}
	r := contracts.DateRange{From: from, To: to}
	if err := r.Validate(); err != nil {
		return sweep.SweepRequest{}, err
	}

	tuples := b.Tuples
	if len(tuples) == 0 && b.Grid != nil {
		tuples = sweepconfig.Expand(contracts.FamilyGrid{
			Family: family,
			Fast:   b.Grid.Fast,
			Slow:   b.Grid.Slow,
			Signal: b.Grid.Signal,
		})
	}

	bt := contracts.DefaultBacktestConfig()
	if b.Backtest.InitialCapital != nil {
		bt.InitialCapital = *b.Backtest.InitialCapital
	}
	if b.Backtest.Commission != nil {
		bt.Commission = *b.Backtest.Commission
	}
	if b.Backtest.MinTrades != nil {
		bt.MinTrades = *b.Backtest.MinTrades
	}

	tickers := make([]string, 0, len(b.Tickers))
	for _, t := range b.Tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}

	return sweep.SweepRequest{
		Name:      b.Name,
		Tickers:   tickers,
		Family:    family,
		Tuples:    tuples,
		Range:     r,
		Backtest:  bt,
		PoolWidth: b.PoolWidth,
		BatchSize: b.BatchSize,
	}, nil
}
