package ui

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gordd/app"
	"gordd/domain/core"
	"gordd/domain/rdd"
)

// previewRowLimit caps dataset preview responses.
const previewRowLimit = 100

// defaultListLimit caps run listings unless the caller asks for more.
const defaultListLimit = 50

// analysisRequestBody is the POST payload for /api/analyses. Omitted fields
// fall back to the configured defaults.
type analysisRequestBody struct {
	Sessions     *int     `json:"sessions"`
	Cutoff       *float64 `json:"cutoff"`
	Effect       *float64 `json:"treatment_effect"`
	Seed         *int64   `json:"seed"`
	Bandwidth    *float64 `json:"bandwidth"`
	ShippingCost *float64 `json:"shipping_cost"`
}

func (b analysisRequestBody) apply(req app.AnalysisRequest) app.AnalysisRequest {
	if b.Sessions != nil {
		req.Sessions = *b.Sessions
	}
	if b.Cutoff != nil {
		req.Cutoff = *b.Cutoff
	}
	if b.Effect != nil {
		req.Effect = *b.Effect
	}
	if b.Seed != nil {
		req.Seed = *b.Seed
	}
	if b.Bandwidth != nil {
		req.Bandwidth = *b.Bandwidth
	}
	if b.ShippingCost != nil {
		req.ShippingCost = *b.ShippingCost
	}
	return req
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var body analysisRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		a.respondError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	req := body.apply(a.service.Defaults())
	report, err := a.service.Run(r.Context(), req)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}

	a.respondJSON(w, http.StatusCreated, report)
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := a.service.ListRuns(r.Context(), limit)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}

	a.respondJSON(w, http.StatusOK, runs)
}

func (a *App) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := a.fetchReport(w, r)
	if !ok {
		return
	}
	a.respondJSON(w, http.StatusOK, report)
}

func (a *App) handleRenderReport(w http.ResponseWriter, r *http.Request) {
	report, ok := a.fetchReport(w, r)
	if !ok {
		return
	}

	doc := renderHTML([]byte(BuildMarkdown(report)))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		a.logger.Error("Failed to write report document: %v", err)
	}
}

func (a *App) handleDatasetPreview(w http.ResponseWriter, r *http.Request) {
	defaults := a.service.Defaults()
	sessions := defaults.Sessions
	seed := defaults.Seed

	q := r.URL.Query()
	if v := q.Get("sessions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.respondError(w, http.StatusBadRequest, "sessions must be a positive integer")
			return
		}
		sessions = n
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			a.respondError(w, http.StatusBadRequest, "seed must be an integer")
			return
		}
		seed = n
	}

	ds, err := a.service.Preview(sessions, seed, previewRowLimit)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}

	a.respondJSON(w, http.StatusOK, ds)
}

// fetchReport resolves the {id} path parameter and loads the stored report,
// writing the error response itself when either step fails.
func (a *App) fetchReport(w http.ResponseWriter, r *http.Request) (*rdd.AnalysisReport, bool) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	report, err := a.service.GetReport(r.Context(), id)
	if err != nil {
		a.respondServiceError(w, err)
		return nil, false
	}
	return report, true
}

func (a *App) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFoundError(err):
		a.respondError(w, http.StatusNotFound, err.Error())
	case core.IsParameterError(err):
		a.respondError(w, http.StatusBadRequest, err.Error())
	case core.IsSampleError(err), core.IsDegeneracyError(err):
		a.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.logger.Error("Request failed: %v", err)
		a.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *App) respondError(w http.ResponseWriter, status int, message string) {
	a.respondJSON(w, status, map[string]string{"error": message})
}

func (a *App) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response: %v", err)
	}
}
