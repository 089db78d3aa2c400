package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hydronet/catchflow/pkg/drought"
	"github.com/hydronet/catchflow/pkg/timeseries"
)

// Handlers holds HTTP request handlers for the results API.
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(controller *Controller) *Handlers {
	return &Handlers{controller: controller}
}

// samplePayload carries one sample. A missing value is encoded as
// null; encoding/json cannot represent NaN.
type samplePayload struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// indicesPayload mirrors drought.Indices with undefined statistics
// encoded as null.
type indicesPayload struct {
	Years           *float64 `json:"years"`
	MeanAnnualTotal *float64 `json:"mean_annual_total"`
	StdAnnualTotal  *float64 `json:"std_annual_total"`
	DroughtsPerYear *float64 `json:"droughts_per_year"`
	MeanDuration    *float64 `json:"mean_duration"`
	StdDuration     *float64 `json:"std_duration"`
	MaxDuration     *float64 `json:"max_duration"`
	MeanDeficit     *float64 `json:"mean_deficit"`
	StdDeficit      *float64 `json:"std_deficit"`
	WorstDeficit    *float64 `json:"worst_deficit"`
}

type eventPayload struct {
	Start   time.Time `json:"start"`
	Days    int       `json:"days"`
	Deficit float64   `json:"deficit"`
}

type thresholdPayload struct {
	Method drought.Method `json:"method"`
	Curve  []float64      `json:"curve"`
}

// ListRuns handles GET /api/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.controller.store.ListRuns()
	if err != nil {
		h.controller.logger.Errorf("error listing runs: %v", err)
		http.Error(w, "error listing runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// GetIndices handles GET /api/runs/{id}/indices
func (h *Handlers) GetIndices(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	idx, err := h.controller.store.LoadIndices(runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		h.controller.logger.Errorf("error loading indices for run %s: %v", runID, err)
		http.Error(w, "error loading indices", http.StatusInternalServerError)
		return
	}

	writeJSON(w, indicesPayload{
		Years:           optional(idx.Years),
		MeanAnnualTotal: optional(idx.MeanAnnualTotal),
		StdAnnualTotal:  optional(idx.StdAnnualTotal),
		DroughtsPerYear: optional(idx.DroughtsPerYear),
		MeanDuration:    optional(idx.MeanDuration),
		StdDuration:     optional(idx.StdDuration),
		MaxDuration:     optional(idx.MaxDuration),
		MeanDeficit:     optional(idx.MeanDeficit),
		StdDeficit:      optional(idx.StdDeficit),
		WorstDeficit:    optional(idx.WorstDeficit),
	})
}

// GetDroughtEvents handles GET /api/runs/{id}/events
func (h *Handlers) GetDroughtEvents(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	events, err := h.controller.store.LoadDroughtEvents(runID)
	if err != nil {
		h.controller.logger.Errorf("error loading drought events for run %s: %v", runID, err)
		http.Error(w, "error loading drought events", http.StatusInternalServerError)
		return
	}

	payload := make([]eventPayload, 0, len(events))
	for _, ev := range events {
		payload = append(payload, eventPayload{Start: ev.Start, Days: ev.Days, Deficit: ev.Deficit})
	}
	writeJSON(w, payload)
}

// GetThreshold handles GET /api/runs/{id}/thresholds/{method}
func (h *Handlers) GetThreshold(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["id"]
	method := drought.Method(vars["method"])

	switch method {
	case drought.MethodDMA, drought.MethodMMA, drought.MethodD30, drought.MethodFFT:
	default:
		http.Error(w, "unknown threshold method", http.StatusBadRequest)
		return
	}

	curve, err := h.controller.store.LoadThreshold(runID, method)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "threshold not found", http.StatusNotFound)
			return
		}
		h.controller.logger.Errorf("error loading %s threshold for run %s: %v", method, runID, err)
		http.Error(w, "error loading threshold", http.StatusInternalServerError)
		return
	}

	writeJSON(w, thresholdPayload{Method: method, Curve: curve})
}

// GetSeries handles GET /api/runs/{id}/series/{name}
func (h *Handlers) GetSeries(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	runID := vars["id"]
	name := vars["name"]

	series, err := h.controller.store.LoadSeries(runID, name)
	if err != nil {
		h.controller.logger.Errorf("error loading series %q for run %s: %v", name, runID, err)
		http.Error(w, "error loading series", http.StatusInternalServerError)
		return
	}
	if len(series) == 0 {
		http.Error(w, "series not found", http.StatusNotFound)
		return
	}

	payload := make([]samplePayload, 0, len(series))
	for _, s := range series {
		payload = append(payload, samplePayload{Time: s.Time, Value: optional(s.Value)})
	}
	writeJSON(w, payload)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}

func optional(v float64) *float64 {
	if timeseries.IsMissing(v) {
		return nil
	}
	return &v
}
