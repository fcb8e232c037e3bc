package dashboard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/chargemap/internal/session"
)

const maxUploadSize = 32 << 20

type uploadResponse struct {
	OK       bool   `json:"ok"`
	FileName string `json:"fileName"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	Message  string `json:"message"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	id := session.Ensure(w, r)
	result := h.loader.LoadUpload(r.Context(), header.Filename, file)
	h.datasets.Store().Put(id, result)

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	resp := uploadResponse{
		OK:       result.OK(),
		FileName: header.Filename,
		Rows:     result.Dataset.Len(),
		Columns:  len(result.Dataset.Columns),
		Message:  "Archivo cargado correctamente",
	}
	status := http.StatusOK
	if result.Err != nil {
		resp.Message = fmt.Sprintf("Error al cargar el archivo: %v", result.Err)
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id, ok := session.IDFromRequest(r); ok {
		h.datasets.Store().Delete(id)
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
