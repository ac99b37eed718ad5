package handlers

import (
	"context"
	"net/http"

	"github.com/complexlabs/docchat/internal/api"
	"github.com/complexlabs/docchat/internal/service"
)

type Ingestor interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
}

type UploadHandler struct {
	svc Ingestor
}

func NewUploadHandler(svc Ingestor) *UploadHandler {
	return &UploadHandler{svc: svc}
}

type UploadResponse struct {
	Filename       string `json:"filename"`
	UploadedChunks int    `json:"uploaded_chunks"`
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(service.MaxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "missing 'file' in request")
		return
	}
	defer file.Close()

	result, err := h.svc.Ingest(r.Context(), service.IngestInput{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, UploadResponse{
		Filename:       header.Filename,
		UploadedChunks: result.UploadedChunks,
	})
}
