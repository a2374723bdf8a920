package api

import (
	"mime"
	"net/http"

	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/storage"
)

type DownloadHandlers struct {
	service *extraction.Service
}

func NewDownloadHandlers(service *extraction.Service) *DownloadHandlers {
	return &DownloadHandlers{service: service}
}

// DownloadFile handles GET /api/v1/download/{id}. Range requests and
// conditional GETs are served by http.ServeContent.
func (h *DownloadHandlers) DownloadFile(w http.ResponseWriter, r *http.Request) error {
	file, err := h.service.OpenFile(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	defer file.Close()

	w.Header().Set("Content-Type", storage.ContentType(file.Name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": file.Name,
	}))
	http.ServeContent(w, r, file.Name, file.ModTime, file)
	return nil
}
