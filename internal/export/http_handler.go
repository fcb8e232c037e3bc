package export

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"path"
	"strconv"

	"github.com/rpattn/chargemap/internal/domain"
)

// DatasetSource resolves the filtered dataset a request refers to.
type DatasetSource interface {
	FilteredDataset(r *http.Request) (domain.Dataset, error)
}

type Handler struct {
	service  *Service
	source   DatasetSource
	baseName string
}

// NewHTTPHandler serves /export.csv and /export.xlsx. The format is taken from
// the path extension.
func NewHTTPHandler(service *Service, source DatasetSource, baseName string) http.Handler {
	return &Handler{service: service, source: source, baseName: baseName}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := ParseFormat(path.Ext(r.URL.Path))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	ds, err := h.source.FilteredDataset(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to resolve dataset: %v", err), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.Write(&buf, ds, format); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	filename := FileName(h.baseName, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("[HTTP] failed to write %s: %v", filename, err)
	}
}
