// Package dashboard serves the charging point page, its upload and reset
// actions and the JSON API behind them.
package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/rpattn/chargemap/internal/datasetloader"
	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/filter"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/rpattn/chargemap/internal/ingestion"
	"github.com/rpattn/chargemap/internal/middleware"
	"github.com/rpattn/chargemap/internal/repository"
	"github.com/rpattn/chargemap/internal/session"
	"github.com/rpattn/chargemap/internal/summary"
)

//go:embed templates/*
var content embed.FS

const (
	noticeSuccess = "success"
	noticeError   = "error"
	noticeWarning = "warning"
)

// Settings control presentation.
type Settings struct {
	Title       string
	PageTitle   string
	BannerImage string
	TableLimit  int
	Map         geomap.Options
}

// Handler serves the dashboard.
type Handler struct {
	datasets *session.Datasets
	loader   *ingestion.Loader
	logs     repository.LoadLogRepository
	settings Settings
	tmpl     *template.Template
}

// NewHandler parses the page template. logs may be nil.
func NewHandler(datasets *session.Datasets, loader *ingestion.Loader, logs repository.LoadLogRepository, settings Settings) (*Handler, error) {
	if settings.TableLimit <= 0 {
		settings.TableLimit = 1000
	}
	if settings.Map.Zoom <= 0 {
		settings.Map = geomap.DefaultOptions()
	}

	tmpl, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"toJSON": toJSON,
	}).ParseFS(content, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard template: %w", err)
	}

	return &Handler{
		datasets: datasets,
		loader:   loader,
		logs:     logs,
		settings: settings,
		tmpl:     tmpl,
	}, nil
}

// Routes registers the page, actions and API on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handlePage)
	mux.HandleFunc("/upload", h.handleUpload)
	mux.HandleFunc("/reset", h.handleReset)
	mux.HandleFunc("/banner", h.handleBanner)
	mux.HandleFunc("/api/options", h.handleOptions)
	mux.HandleFunc("/api/summary", h.handleSummary)
	mux.HandleFunc("/api/points", h.handlePoints)
	mux.HandleFunc("/api/records", h.handleRecords)
	mux.HandleFunc("/api/loads", h.handleLoads)
}

// FilteredDataset resolves the session dataset and applies the query filters.
func (h *Handler) FilteredDataset(r *http.Request) (domain.Dataset, error) {
	view, err := h.view(r)
	if err != nil {
		return domain.Dataset{}, err
	}
	return view.Filtered, nil
}

func (h *Handler) view(r *http.Request) (View, error) {
	result, err := h.load(r)
	if err != nil {
		return View{}, err
	}
	return BuildView(result, ParseSelection(r.URL.Query()), h.settings.Map), nil
}

func (h *Handler) load(r *http.Request) (ingestion.Result, error) {
	id, _ := session.IDFromRequest(r)
	if loader := middleware.DatasetLoaderFromContext(r.Context()); loader != nil {
		return datasetloader.Load(r.Context(), loader, id)
	}
	return h.datasets.ForSession(r.Context(), id), nil
}

type notice struct {
	Kind    string
	Message string
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type control struct {
	Name    string
	Label   string
	Options []option
}

type table struct {
	Columns   []string
	Rows      [][]string
	Total     int
	Truncated bool
}

type pageData struct {
	PageTitle   string
	Title       string
	HasBanner   bool
	Notices     []notice
	HasData     bool
	UploadName  string
	Raw         table
	Controls    []control
	Keywords    *control
	Metrics     summary.Metrics
	MapNotice   *notice
	Map         *geomap.Map
	Filtered    table
	ExportCSV   template.URL
	ExportXLSX  template.URL
}

var controlLabels = map[string]string{
	domain.ColumnDistrict:     "Selecciona distrito:",
	domain.ColumnNeighborhood: "Selecciona barrio:",
	domain.ColumnOperator:     "Selecciona operador:",
	domain.ColumnSiteType:     "Selecciona emplazamiento:",
	domain.ColumnStatus:       "Selecciona estado:",
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, err := h.view(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load dataset: %v", err), http.StatusInternalServerError)
		return
	}

	data := h.buildPage(view)

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		log.Printf("[HTTP] error executing template: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[HTTP] error writing response: %v", err)
	}
}

func (h *Handler) buildPage(view View) pageData {
	data := pageData{
		PageTitle: h.settings.PageTitle,
		Title:     h.settings.Title,
		HasBanner: h.bannerPath() != "",
		Notices:   loadNotices(view.Result),
		HasData:   view.HasData(),
		Raw:       newTable(view.Dataset, h.settings.TableLimit),
	}
	if view.Result.Source == domain.LoadSourceUpload {
		data.UploadName = view.Result.FileName
	}
	if !data.HasData {
		return data
	}

	for _, column := range domain.CategoricalColumns {
		choices := view.Options.For(column)
		if choices == nil {
			continue
		}
		data.Controls = append(data.Controls, control{
			Name:    columnParams[column],
			Label:   controlLabels[column],
			Options: newOptions(choices, []string{view.Selection.Choice(column)}),
		})
	}
	if view.Options.Keywords != nil {
		data.Keywords = &control{
			Name:    ParamKeyword,
			Label:   "Características del equipo (palabras clave):",
			Options: newOptions(view.Options.Keywords, view.Selection.Keywords),
		}
	}

	if warning := droppedNotice(view.Dropped); warning != nil {
		data.Notices = append(data.Notices, *warning)
	}
	data.Metrics = view.Metrics
	data.MapNotice = mapNotice(view.MapErr)
	if view.MapErr == nil {
		m := view.Map
		data.Map = &m
	}
	data.Filtered = newTable(view.Filtered, h.settings.TableLimit)
	query := EncodeSelection(view.Selection).Encode()
	data.ExportCSV = exportURL("/export.csv", query)
	data.ExportXLSX = exportURL("/export.xlsx", query)
	return data
}

func exportURL(path, query string) template.URL {
	if query == "" {
		return template.URL(path)
	}
	return template.URL(path + "?" + query)
}

func loadNotices(result ingestion.Result) []notice {
	if result.Err != nil {
		return []notice{{Kind: noticeError, Message: fmt.Sprintf("Error al cargar el archivo: %v", result.Err)}}
	}
	if result.Source == domain.LoadSourceUpload {
		return []notice{{Kind: noticeSuccess, Message: "Archivo cargado correctamente"}}
	}
	return nil
}

func droppedNotice(drops []filter.Drop) *notice {
	if len(drops) == 0 {
		return nil
	}
	parts := make([]string, len(drops))
	for idx, drop := range drops {
		parts[idx] = fmt.Sprintf("%s=%s", ParamFor(drop.Column), drop.Value)
	}
	return &notice{Kind: noticeWarning, Message: "Filtros ignorados por no coincidir con ningún valor: " + strings.Join(parts, ", ")}
}

func mapNotice(err error) *notice {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, geomap.ErrNoRows):
		return &notice{Kind: noticeWarning, Message: "No hay cargadores que coincidan con los filtros seleccionados."}
	case errors.Is(err, geomap.ErrMissingColumns):
		return &notice{Kind: noticeError, Message: fmt.Sprintf("Faltan columnas necesarias para el mapa: [%s]", strings.Join(geomap.RequiredColumns, ", "))}
	case errors.Is(err, geomap.ErrNoCoordinates):
		return &notice{Kind: noticeWarning, Message: "Ningún cargador filtrado tiene coordenadas válidas."}
	default:
		return &notice{Kind: noticeError, Message: err.Error()}
	}
}

func newOptions(values []string, selected []string) []option {
	chosen := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		chosen[s] = struct{}{}
	}
	out := make([]option, 0, len(values))
	for _, v := range values {
		label := v
		if v == domain.All {
			label = "Todos"
		}
		_, ok := chosen[v]
		out = append(out, option{Value: v, Label: label, Selected: ok})
	}
	return out
}

func newTable(ds domain.Dataset, limit int) table {
	records := ds.Page(limit, 0)
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(ds.Columns))
		for idx, column := range ds.Columns {
			row[idx] = record[column]
		}
		rows = append(rows, row)
	}
	return table{
		Columns:   ds.Columns,
		Rows:      rows,
		Total:     ds.Len(),
		Truncated: len(records) < ds.Len(),
	}
}

func (h *Handler) handleBanner(w http.ResponseWriter, r *http.Request) {
	path := h.bannerPath()
	if path == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) bannerPath() string {
	path := strings.TrimSpace(h.settings.BannerImage)
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}

func toJSON(data interface{}) (template.JS, error) {
	encoded, err := json.Marshal(data)
	return template.JS(encoded), err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
