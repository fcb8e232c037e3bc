package dashboard

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/chargemap/internal/domain"
	"github.com/rpattn/chargemap/internal/geomap"
	"github.com/rpattn/chargemap/internal/ingestion"
	"github.com/rpattn/chargemap/internal/middleware"
	"github.com/rpattn/chargemap/internal/repository"
	"github.com/rpattn/chargemap/internal/session"
)

const fixtureCSV = `DISTRITO;BARRIO;OPERADOR;EMPLAZAMIENTO;ESTADO;CARACTERISTICAS_EQUIPO;LONGITUD;LATITUD;UBICACION
CENTRO;SOL;Iberdrola;Vía pública;Operativo;Carga rapida acceso publico;-3.0;40.0;Calle Mayor 1
CENTRO;CORTES;Endesa;Aparcamiento;Operativo;Carga lenta acceso publico;-3.2;40.2;Calle Prado 2
RETIRO;IBIZA;Endesa;Vía pública;En obras;Carga lenta;-3.6;40.4;Calle Ibiza 3
`

type testServer struct {
	handler http.Handler
	logs    repository.LoadLogRepository
}

func newTestServer(t *testing.T, defaultContent string, settings Settings) testServer {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "red.csv")
	if defaultContent != "" {
		if err := os.WriteFile(path, []byte(defaultContent), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	logs := repository.NewMemoryLoadLogRepository(10)
	loader := ingestion.NewLoader(';', logs)
	datasets := session.NewDatasets(session.NewStore(time.Hour, 10), session.NewDefaultSource(loader, path))
	if settings.Title == "" {
		settings.Title = "Red de Cargadores Madrid 2024"
	}

	h, err := NewHandler(datasets, loader, logs, settings)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux := http.NewServeMux()
	h.Routes(mux)
	return testServer{handler: middleware.DataLoaderMiddleware(datasets)(mux), logs: logs}
}

func (s testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fileName, content string, asJSON bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestPageRendersDashboard(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Red de Cargadores Madrid 2024",
		"Selecciona distrito:",
		"Selecciona barrio:",
		"Características del equipo (palabras clave):",
		"Total de cargadores",
		"Operadores únicos",
		"Mapa de Cargadores Madrid",
		`id="map"`,
		"Ver detalles de los cargadores filtrados",
		`href="/export.csv"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page", want)
		}
	}
	if strings.Contains(body, "Archivo cargado correctamente") {
		t.Fatalf("did not expect upload notice for default data")
	}
}

func TestPageWithoutDataShowsWarnings(t *testing.T) {
	srv := newTestServer(t, "", Settings{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Error al cargar el archivo:",
		"No hay datos disponibles para mostrar.",
		"Carga datos para ver filtros y mapa",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page", want)
		}
	}
	if strings.Contains(body, "Selecciona distrito:") || strings.Contains(body, `id="map"`) {
		t.Fatalf("expected no controls or map without data")
	}
}

func TestPageWarnsWhenFiltersMatchNothing(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/?keyword=rapida&keyword=lenta", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "No hay cargadores que coincidan con los filtros seleccionados.") {
		t.Fatalf("expected empty filter warning")
	}
	if strings.Contains(body, `id="map"`) {
		t.Fatalf("expected map replaced by warning")
	}
}

func TestSummaryMatchesFiltersIgnoringCase(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/summary?distrito=centro&keyword=RAPIDA&barrio=NOPE", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Total     int              `json:"total"`
		Selection domain.Selection `json:"selection"`
		Ignored   []struct {
			Column string `json:"column"`
			Value  string `json:"value"`
		} `json:"ignored"`
	}
	decode(t, rec, &body)
	if body.Total != 1 {
		t.Fatalf("expected the rapid charger only, got %d", body.Total)
	}
	if body.Selection.District != "CENTRO" || !reflect.DeepEqual(body.Selection.Keywords, []string{"rapida"}) {
		t.Fatalf("unexpected resolved selection: %+v", body.Selection)
	}
	if len(body.Ignored) != 1 || body.Ignored[0].Column != domain.ColumnNeighborhood || body.Ignored[0].Value != "NOPE" {
		t.Fatalf("expected barrio reported as ignored, got %+v", body.Ignored)
	}
}

func TestPageWarnsAboutIgnoredFilters(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	body := srv.do(httptest.NewRequest(http.MethodGet, "/?operador=Repsol", nil)).Body.String()
	if !strings.Contains(body, "Filtros ignorados por no coincidir con ningún valor: operador=Repsol") {
		t.Fatalf("expected ignored filter notice")
	}
}

func TestPageUnknownPath(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	if rec := srv.do(httptest.NewRequest(http.MethodGet, "/nope", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMissingCoordinatesShowError(t *testing.T) {
	srv := newTestServer(t, "DISTRITO;OPERADOR\nCENTRO;Endesa\n", Settings{})

	page := srv.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "Faltan columnas necesarias para el mapa: [LONGITUD, LATITUD]") {
		t.Fatalf("expected missing column error in page")
	}

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/points", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestUploadReplacesSessionDataset(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})

	rec := srv.do(uploadRequest(t, "mine.csv", "OPERADOR;EMPLAZAMIENTO\nA;X\nB;X\n", true))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var upload uploadResponse
	decode(t, rec, &upload)
	if !upload.OK || upload.Rows != 2 || upload.Columns != 2 || upload.Message != "Archivo cargado correctamente" {
		t.Fatalf("unexpected upload response: %+v", upload)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.AddCookie(cookies[0])
	var metrics struct {
		Total     int `json:"total"`
		Operators int `json:"operators"`
		SiteTypes int `json:"siteTypes"`
	}
	decode(t, srv.do(req), &metrics)
	if metrics.Total != 2 || metrics.Operators != 2 || metrics.SiteTypes != 1 {
		t.Fatalf("expected upload metrics, got %+v", metrics)
	}

	page := httptest.NewRequest(http.MethodGet, "/", nil)
	page.AddCookie(cookies[0])
	if body := srv.do(page).Body.String(); !strings.Contains(body, "Archivo cargado correctamente") || !strings.Contains(body, "mine.csv") {
		t.Fatalf("expected success notice for the upload")
	}

	other := srv.do(httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	decode(t, other, &metrics)
	if metrics.Total != 3 {
		t.Fatalf("expected other sessions to keep the default dataset, got %+v", metrics)
	}

	reset := httptest.NewRequest(http.MethodPost, "/reset", nil)
	reset.AddCookie(cookies[0])
	reset.Header.Set("Accept", "application/json")
	if rec := srv.do(reset); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from reset, got %d", rec.Code)
	}
	after := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	after.AddCookie(cookies[0])
	decode(t, srv.do(after), &metrics)
	if metrics.Total != 3 {
		t.Fatalf("expected default dataset after reset, got %+v", metrics)
	}
}

func TestUploadRedirectsBrowsers(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	rec := srv.do(uploadRequest(t, "mine.csv", fixtureCSV, false))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected 303 to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestUploadFailureShowsErrorAndEmptiesDataset(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})

	rec := srv.do(uploadRequest(t, "notes.json", "{}", true))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var upload uploadResponse
	decode(t, rec, &upload)
	if upload.OK || !strings.HasPrefix(upload.Message, "Error al cargar el archivo:") {
		t.Fatalf("unexpected upload response: %+v", upload)
	}

	page := httptest.NewRequest(http.MethodGet, "/", nil)
	page.AddCookie(rec.Result().Cookies()[0])
	body := srv.do(page).Body.String()
	if !strings.Contains(body, "Error al cargar el archivo:") || !strings.Contains(body, "Carga datos para ver filtros y mapa") {
		t.Fatalf("expected error notice and empty warning")
	}

	entries, err := srv.logs.List(page.Context(), 10, 0)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) == 0 || !entries[0].Failed() || entries[0].FileName != "notes.json" {
		t.Fatalf("expected failed upload logged first, got %+v", entries)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	if rec := srv.do(httptest.NewRequest(http.MethodPost, "/upload", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := srv.do(httptest.NewRequest(http.MethodGet, "/upload", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestOptionsCascadeFromDistrict(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/options?distrito=CENTRO&barrio=IBIZA", nil))

	var resp optionsResponse
	decode(t, rec, &resp)
	if !reflect.DeepEqual(resp.Options.Neighborhoods, []string{domain.All, "CORTES", "SOL"}) {
		t.Fatalf("unexpected neighborhoods: %v", resp.Options.Neighborhoods)
	}
	if resp.Selection.District != "CENTRO" || resp.Selection.Neighborhood != domain.All {
		t.Fatalf("expected stale neighborhood reset: %+v", resp.Selection)
	}
	if resp.LoadError != nil {
		t.Fatalf("unexpected load error %s", *resp.LoadError)
	}
}

func TestPointsCenterOnFilteredRows(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/points?distrito=CENTRO", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
		View *geomap.ViewState `json:"view"`
	}
	decode(t, rec, &resp)
	if resp.Type != "FeatureCollection" || len(resp.Features) != 2 {
		t.Fatalf("unexpected collection: %+v", resp)
	}
	if resp.View == nil || math.Abs(resp.View.Latitude-40.1) > 1e-9 || math.Abs(resp.View.Longitude+3.1) > 1e-9 {
		t.Fatalf("unexpected view: %+v", resp.View)
	}
}

func TestRecordsPaging(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})

	var resp recordsResponse
	decode(t, srv.do(httptest.NewRequest(http.MethodGet, "/api/records?limit=1&offset=1", nil)), &resp)
	if resp.Total != 3 || len(resp.Records) != 1 || resp.Records[0][domain.ColumnNeighborhood] != "CORTES" {
		t.Fatalf("unexpected page: %+v", resp)
	}
	if len(resp.Columns) != 9 {
		t.Fatalf("expected column order in response, got %v", resp.Columns)
	}

	if rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/records?limit=abc", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoadsListsAuditLog(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	srv.do(httptest.NewRequest(http.MethodGet, "/", nil))

	var entries []domain.LoadLogEntry
	decode(t, srv.do(httptest.NewRequest(http.MethodGet, "/api/loads", nil)), &entries)
	if len(entries) != 1 || entries[0].Source != domain.LoadSourceFile || entries[0].Rows != 3 {
		t.Fatalf("unexpected audit log: %+v", entries)
	}
}

func TestBanner(t *testing.T) {
	srv := newTestServer(t, fixtureCSV, Settings{})
	if rec := srv.do(httptest.NewRequest(http.MethodGet, "/banner", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without banner, got %d", rec.Code)
	}

	banner := filepath.Join(t.TempDir(), "skyline.jpg")
	if err := os.WriteFile(banner, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write banner: %v", err)
	}
	srv = newTestServer(t, fixtureCSV, Settings{BannerImage: banner})
	if rec := srv.do(httptest.NewRequest(http.MethodGet, "/banner", nil)); rec.Code != http.StatusOK || rec.Body.String() != "jpeg" {
		t.Fatalf("expected banner served, got %d", rec.Code)
	}
	if page := srv.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String(); !strings.Contains(page, `src="/banner"`) {
		t.Fatalf("expected banner image in page")
	}
}

func TestSelectionQueryRoundTrip(t *testing.T) {
	values := url.Values{}
	values.Set(ParamDistrict, "CENTRO")
	values.Set(ParamStatus, domain.All)
	values.Add(ParamKeyword, "rapida")
	values.Add(ParamKeyword, "publico")

	sel := ParseSelection(values)
	if sel.District != "CENTRO" || sel.Neighborhood != domain.All || sel.Status != domain.All {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if !reflect.DeepEqual(sel.Keywords, []string{"rapida", "publico"}) {
		t.Fatalf("unexpected keywords: %v", sel.Keywords)
	}

	encoded := EncodeSelection(sel)
	if encoded.Get(ParamDistrict) != "CENTRO" || encoded.Has(ParamStatus) || len(encoded[ParamKeyword]) != 2 {
		t.Fatalf("unexpected encoding: %v", encoded)
	}
}
