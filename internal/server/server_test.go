package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hydronet/catchflow/internal/log"
	"github.com/hydronet/catchflow/internal/storage"
	"github.com/hydronet/catchflow/pkg/drought"
	"github.com/hydronet/catchflow/pkg/timeseries"
)

func newTestController(t *testing.T) (*Controller, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	log.Init(false)
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, ":0", store, log.GetSugaredLogger())
	if err != nil {
		t.Fatal(err)
	}
	return ctrl, store
}

func TestListRuns(t *testing.T) {
	ctrl, store := newTestController(t)
	run, err := store.CreateRun("station-a", drought.MethodDMA)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var runs []storage.Run
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID || runs[0].Station != "station-a" {
		t.Errorf("unexpected runs payload: %+v", runs)
	}
}

func TestGetIndicesEncodesUndefinedAsNull(t *testing.T) {
	ctrl, store := newTestController(t)
	run, err := store.CreateRun("station-a", drought.MethodDMA)
	if err != nil {
		t.Fatal(err)
	}
	err = store.SaveIndices(run.ID, drought.Indices{
		Years:           3.0,
		MeanAnnualTotal: 500,
		MeanDuration:    math.NaN(),
		StdDuration:     math.NaN(),
		MaxDuration:     math.NaN(),
		MeanDeficit:     math.NaN(),
		StdDeficit:      math.NaN(),
		WorstDeficit:    math.NaN(),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/indices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var payload map[string]*float64
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload["years"] == nil || *payload["years"] != 3.0 {
		t.Errorf("years: expected 3.0, got %v", payload["years"])
	}
	if payload["mean_duration"] != nil {
		t.Errorf("mean_duration: expected null, got %v", *payload["mean_duration"])
	}
}

func TestGetIndicesUnknownRun(t *testing.T) {
	ctrl, _ := newTestController(t)

	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/no-such-run/indices", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status: expected 404, got %d", rec.Code)
	}
}

func TestGetThreshold(t *testing.T) {
	ctrl, store := newTestController(t)
	run, err := store.CreateRun("station-a", drought.MethodD30)
	if err != nil {
		t.Fatal(err)
	}
	set := drought.ThresholdSet{
		DMA: make([]float64, drought.CurveLength),
		MMA: make([]float64, drought.CurveLength),
		D30: make([]float64, drought.CurveLength),
		FFT: make([]float64, drought.CurveLength),
	}
	for i := range set.D30 {
		set.D30[i] = 2.5
	}
	if err := store.SaveThresholds(run.ID, set); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/thresholds/d30", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var payload struct {
		Method string    `json:"method"`
		Curve  []float64 `json:"curve"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Method != "d30" || len(payload.Curve) != drought.CurveLength || payload.Curve[100] != 2.5 {
		t.Errorf("unexpected threshold payload: method=%s len=%d", payload.Method, len(payload.Curve))
	}
}

func TestGetThresholdRejectsUnknownMethod(t *testing.T) {
	ctrl, _ := newTestController(t)

	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/x/thresholds/median", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", rec.Code)
	}
}

func TestGetSeriesEncodesMissingAsNull(t *testing.T) {
	ctrl, store := newTestController(t)
	run, err := store.CreateRun("station-a", drought.MethodDMA)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	series := timeseries.Series{
		{Time: base, Value: 4.0},
		{Time: base.AddDate(0, 0, 1), Value: timeseries.Missing()},
	}
	if err := store.SaveSeries(run.ID, "daily", series); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	ctrl.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID+"/series/daily", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var payload []struct {
		Time  time.Time `json:"time"`
		Value *float64  `json:"value"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(payload))
	}
	if payload[0].Value == nil || *payload[0].Value != 4.0 {
		t.Errorf("first sample: expected 4.0, got %v", payload[0].Value)
	}
	if payload[1].Value != nil {
		t.Errorf("missing sample must encode as null, got %v", *payload[1].Value)
	}
}
