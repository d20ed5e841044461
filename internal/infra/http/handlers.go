package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/model"
	"coloring-page-service/internal/infra/logging"
	"coloring-page-service/internal/infra/metrics"
	"coloring-page-service/internal/usecase"
)

const (
	uploadField    = "image"
	msgServerError = "Server error"
	msgNotFound    = "Coloring request not found"
)

// coloringRequestResponse is the wire shape of a coloring request.
type coloringRequestResponse struct {
	ID               int64  `json:"id"`
	OriginalImageURL string `json:"originalImageUrl"`
	ColoringPageURL  string `json:"coloringPageUrl"`
	Status           string `json:"status"`
}

type submitResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(r *model.ColoringRequest) coloringRequestResponse {
	return coloringRequestResponse{
		ID:               r.ID,
		OriginalImageURL: r.OriginalImageURL,
		ColoringPageURL:  r.ColoringPageURL,
		Status:           string(r.Status),
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	up, err := s.readUpload(w, r)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	rec, err := s.uc.Submit(ctx, up)
	if err != nil {
		if !domain.IsClientError(err) && !errors.Is(err, domain.ErrBusy) {
			log.Error().Err(err).Msg("submit coloring request failed")
		}
		s.writeUploadError(w, err)
		return
	}

	metrics.IncUpload("accepted")
	writeJSON(w, http.StatusOK, submitResponse{ID: rec.ID, Status: string(rec.Status)})
}

// readUpload extracts the "image" part of a multipart body capped at maxUploadBytes.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (usecase.Upload, error) {
	if r.ContentLength > s.maxUploadBytes {
		return usecase.Upload{}, domain.ErrImageTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	// small parts stay in memory, the rest spills to temp files removed below
	if err := r.ParseMultipartForm(32 << 10); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return usecase.Upload{}, domain.ErrImageTooLarge
		}
		return usecase.Upload{}, domain.ErrNoImage
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return usecase.Upload{}, domain.ErrNoImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return usecase.Upload{}, err
	}
	return usecase.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoImage):
		metrics.IncUpload("rejected")
		writeError(w, http.StatusBadRequest, "No image uploaded")
	case errors.Is(err, domain.ErrUnsupportedImage):
		metrics.IncUpload("rejected")
		writeError(w, http.StatusBadRequest, "Uploaded file is not a supported image")
	case errors.Is(err, domain.ErrImageTooLarge):
		metrics.IncUpload("rejected")
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
	case errors.Is(err, domain.ErrBusy):
		metrics.IncUpload("busy")
		writeError(w, http.StatusServiceUnavailable, "Server busy, try again later")
	default:
		metrics.IncUpload("error")
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// ids that can never exist read the same as unknown ones
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	rec, err := s.uc.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	case err != nil:
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Int64("job_id", id).Msg("get coloring request failed")
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
