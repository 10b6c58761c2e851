package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"image.share/config"
	"image.share/internal/links"
	"image.share/internal/upload"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the file limit for form fields and
// boundaries, so an oversized file still reaches the upload gate and gets a
// proper rejection reason.
const multipartOverhead = 1 << 20

type Handler struct {
	links  *links.Service
	config *config.Config
	logger *slog.Logger
}

func NewHandler(svc *links.Service, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		links:  svc,
		config: cfg,
		logger: logger.With(slog.String("component", "api")),
	}
}

type CreateResponse struct {
	Success        bool      `json:"success"`
	LinkID         string    `json:"link_id"`
	ShareURL       string    `json:"share_url"`
	ExpiresAt      time.Time `json:"expires_at"`
	ExpiryDuration string    `json:"expiry_duration"`
}

type StatusResponse struct {
	ID        string    `json:"id"`
	Exists    bool      `json:"exists"`
	Expired   bool      `json:"expired"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	ViewCount int64     `json:"view_count,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	limit := h.config.Links.MaxUploadBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.error(w, http.StatusBadRequest, "no image uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.config.Links.MaxUploadBytes+1))
	if err != nil {
		h.error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	duration := r.FormValue("expiry_duration")
	if duration == "" {
		duration = h.config.Links.DefaultDuration
	}

	created, err := h.links.Create(r.Context(), upload.File{
		Name: header.Filename,
		Size: header.Size,
		Data: data,
	}, duration)
	if err != nil {
		h.handleLinkError(w, err)
		return
	}

	h.json(w, http.StatusCreated, CreateResponse{
		Success:        true,
		LinkID:         created.ID,
		ShareURL:       created.ShareURL,
		ExpiresAt:      created.ExpiresAt,
		ExpiryDuration: string(created.DurationClass),
	})
}

func (h *Handler) ViewImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	v, err := h.links.View(r.Context(), id)
	if err != nil {
		h.handleLinkError(w, err)
		return
	}

	contentType := v.Link.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(v.Payload)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set("Content-Length", strconv.Itoa(len(v.Payload)))
	hdr.Set("Cache-Control", "no-store")
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("X-Expires-At", v.Link.ExpiresAt.Format(time.RFC3339))
	hdr.Set("X-Remaining-Seconds", strconv.FormatInt(int64(v.RemainingTTL/time.Second), 10))
	hdr.Set("X-View-Count", strconv.FormatInt(v.Link.ViewCount, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(v.Payload)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	link, err := h.links.Status(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrNotFound):
			h.json(w, http.StatusOK, StatusResponse{ID: id})
		case errors.Is(err, links.ErrExpired):
			h.json(w, http.StatusOK, StatusResponse{ID: id, Expired: true})
		default:
			h.handleLinkError(w, err)
		}
		return
	}

	h.json(w, http.StatusOK, StatusResponse{
		ID:        id,
		Exists:    true,
		ExpiresAt: link.ExpiresAt,
		ViewCount: link.ViewCount,
	})
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) handleLinkError(w http.ResponseWriter, err error) {
	var invalid *upload.ValidationError
	switch {
	case errors.As(err, &invalid):
		h.error(w, http.StatusBadRequest, invalid.Reason)
	case errors.Is(err, links.ErrNotFound):
		h.error(w, http.StatusNotFound, "link not found")
	case errors.Is(err, links.ErrExpired):
		h.error(w, http.StatusGone, "link has expired")
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
