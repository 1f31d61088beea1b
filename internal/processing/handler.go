package processing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medscribe/internal/agent"
)

// allowedMediaTypes maps accepted upload content types to file extensions.
// Browsers may report video/webm for microphone recordings.
var allowedMediaTypes = map[string]string{
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"video/webm":  "webm",
}

// allowedExtensions is the filename fallback when the content type is not in
// the allow-list.
var allowedExtensions = map[string]bool{
	"mp3": true, "wav": true, "webm": true, "ogg": true, "m4a": true,
}

const maxUploadBytes = 50 << 20

type Handler struct {
	svc              Service
	uploadDir        string
	apiKeyConfigured bool
	logger           *zap.Logger
}

func NewHandler(svc Service, uploadDir string, apiKeyConfigured bool, logger *zap.Logger) *Handler {
	return &Handler{
		svc:              svc,
		uploadDir:        uploadDir,
		apiKeyConfigured: apiKeyConfigured,
		logger:           logger,
	}
}

type URLRequest struct {
	URL string `json:"url"`
}

type TaskUpdateRequest struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"` // PENDING, IN_PROGRESS, COMPLETED
}

// Health reports whether the inference credential is configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"api_key_configured": h.apiKeyConfigured,
	})
}

// ProcessURL processes hospital audio/video referenced by a remote URL.
func (h *Handler) ProcessURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ProcessURL(r.Context(), req.URL)
	if err != nil {
		h.writeProcessingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ProcessAudio processes an uploaded audio file. The media type must be in
// the allow-list or inferable from the filename; anything else is rejected
// before any collaborator call.
func (h *Handler) ProcessAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Uploaded file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	ext, ok := allowedMediaTypes[contentType]
	if !ok {
		fallback := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
		if !allowedExtensions[fallback] {
			http.Error(w, "Unsupported audio format: "+contentType+". Use MP3, WAV, WEBM, OGG, or M4A.", http.StatusBadRequest)
			return
		}
		ext = fallback
	}

	tempPath := filepath.Join(h.uploadDir, uuid.New().String()+"."+ext)
	if err := saveUpload(file, tempPath); err != nil {
		h.logger.Error("failed to save upload", zap.Error(err))
		http.Error(w, "Failed to save uploaded file", http.StatusInternalServerError)
		return
	}
	// Temp files are request-owned; deletion failure is swallowed.
	defer os.Remove(tempPath)

	result, err := h.svc.ProcessAudioFile(r.Context(), tempPath, contentType)
	if err != nil {
		h.writeProcessingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateTask acknowledges a task status change. Task state is not persisted.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"task_id":    taskID,
		"new_status": req.Status,
	})
}

// RecentResults lists the most recent persisted processing runs.
func (h *Handler) RecentResults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.svc.RecentResults(r.Context(), limit)
	if err != nil {
		if errors.Is(err, ErrHistoryUnavailable) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Failed to list results: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) writeProcessingError(w http.ResponseWriter, err error) {
	if errors.Is(err, agent.ErrNotConfigured) {
		http.Error(w, err.Error()+". Add it to the .env file.", http.StatusServiceUnavailable)
		return
	}
	h.logger.Error("processing failed", zap.Error(err))
	http.Error(w, "Processing failed: "+err.Error(), http.StatusInternalServerError)
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/health", h.Health)
	r.Post("/process-url", h.ProcessURL)
	r.Post("/process-audio", h.ProcessAudio)
	r.Post("/tasks/{taskID}/update", h.UpdateTask)
	r.Get("/results/recent", h.RecentResults)
}
