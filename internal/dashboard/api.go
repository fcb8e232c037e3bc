package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/filter"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/rpattn/chargemap/internal/summary"
)

type optionsResponse struct {
	Selection domain.Selection `json:"selection"`
	Options   filter.Options   `json:"options"`
	LoadError *string          `json:"loadError,omitempty"`
}

type pointsResponse struct {
	geomap.FeatureCollection
	View    *geomap.ViewState `json:"view,omitempty"`
	Skipped int               `json:"skipped"`
	Warning *string           `json:"warning,omitempty"`
}

type recordsResponse struct {
	Columns []string        `json:"columns"`
	Records []domain.Record `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	view, ok := h.apiView(w, r)
	if !ok {
		return
	}
	resp := optionsResponse{Selection: view.Selection, Options: view.Options}
	if view.Result.Err != nil {
		msg := view.Result.Err.Error()
		resp.LoadError = &msg
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	view, ok := h.apiView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		summary.Metrics
		Selection domain.Selection `json:"selection"`
		Ignored   []filter.Drop    `json:"ignored,omitempty"`
	}{view.Metrics, view.Selection, view.Dropped})
}

func (h *Handler) handlePoints(w http.ResponseWriter, r *http.Request) {
	view, ok := h.apiView(w, r)
	if !ok {
		return
	}

	if errors.Is(view.MapErr, geomap.ErrMissingColumns) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: view.MapErr.Error()})
		return
	}

	resp := pointsResponse{FeatureCollection: geomap.GeoJSON(view.Map)}
	if view.MapErr != nil {
		msg := view.MapErr.Error()
		resp.Warning = &msg
	} else {
		mapView := view.Map.View
		resp.View = &mapView
		resp.Skipped = view.Map.Skipped
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePaging(r, h.settings.TableLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	view, ok := h.apiView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{
		Columns: view.Filtered.Columns,
		Records: view.Filtered.Page(limit, offset),
		Total:   view.Filtered.Len(),
		Limit:   limit,
		Offset:  offset,
	})
}

func (h *Handler) handleLoads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, offset, err := parsePaging(r, 50)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if h.logs == nil {
		writeJSON(w, http.StatusOK, []domain.LoadLogEntry{})
		return
	}
	entries, err := h.logs.List(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) apiView(w http.ResponseWriter, r *http.Request) (View, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return View{}, false
	}
	view, err := h.view(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return View{}, false
	}
	return view, true
}

func parsePaging(r *http.Request, defaultLimit int) (int, int, error) {
	limit := defaultLimit
	offset := 0
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		limit = value
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
		offset = value
	}
	return limit, offset, nil
}
