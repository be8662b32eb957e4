package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/speakscore/internal/errors"
	"github.com/windfall/speakscore/internal/service"
	"github.com/windfall/speakscore/pkg/response"
)

// AssessmentIDHeader carries the id under which a result can be fetched again.
const AssessmentIDHeader = "X-Assessment-ID"

// AssessmentHandler serves the speaking, reading and writing analysis endpoints.
type AssessmentHandler struct {
	log               zerolog.Logger
	assessmentService *service.AssessmentService
	maxUploadBytes    int64
}

// NewAssessmentHandler creates a new assessment handler.
func NewAssessmentHandler(log zerolog.Logger, assessmentService *service.AssessmentService, maxUploadBytes int64) *AssessmentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &AssessmentHandler{
		log:               log,
		assessmentService: assessmentService,
		maxUploadBytes:    maxUploadBytes,
	}
}

// WritingRequest is the body of POST /analyze-writing.
type WritingRequest struct {
	Text string `json:"text"`
}

// Transcribe handles POST /transcribe
//
// Request: multipart/form-data with an "audio" file field
// Response: { "transcription": "...", "analysis": { "pronunciation": 7, ..., "feedback": "..." } }
func (h *AssessmentHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	audio, filename, contentType, ok := h.readAudio(w, r)
	if !ok {
		h.log.Error().Msg("No file received")
		response.BadRequest(w, "No audio file uploaded")
		return
	}

	h.assess(w, r, "Transcription or analysis failed", service.AssessmentRequest{
		Mode:          service.ModeTranscribe,
		Audio:         audio,
		AudioFilename: filename,
		ContentType:   contentType,
	})
}

// AnalyzeReading handles POST /analyze-reading
//
// Request: multipart/form-data with an "audio" file field and a "text" field
// holding the passage that was read aloud.
func (h *AssessmentHandler) AnalyzeReading(w http.ResponseWriter, r *http.Request) {
	audio, filename, contentType, ok := h.readAudio(w, r)
	if !ok {
		h.log.Error().Msg("No file received")
		response.BadRequest(w, "No file received")
		return
	}

	h.assess(w, r, "Error analyzing reading", service.AssessmentRequest{
		Mode:          service.ModeReading,
		Audio:         audio,
		AudioFilename: filename,
		ContentType:   contentType,
		ReferenceText: r.FormValue("text"),
	})
}

// AnalyzeWriting handles POST /analyze-writing
//
// Request: { "text": "..." }
func (h *AssessmentHandler) AnalyzeWriting(w http.ResponseWriter, r *http.Request) {
	var req WritingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadBytes)).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	h.assess(w, r, "Error analyzing writing", service.AssessmentRequest{
		Mode: service.ModeWriting,
		Text: req.Text,
	})
}

// GetResult handles GET /results/{id}
func (h *AssessmentHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "id is required")
		return
	}

	result, err := h.assessmentService.GetResult(r.Context(), id)
	if err != nil {
		h.handleError(w, "Failed to load result", err)
		return
	}

	w.Header().Set(AssessmentIDHeader, result.ID)
	response.OK(w, result)
}

func (h *AssessmentHandler) assess(w http.ResponseWriter, r *http.Request, failure string, req service.AssessmentRequest) {
	result, err := h.assessmentService.Assess(r.Context(), req)
	if err != nil {
		h.handleError(w, failure, err)
		return
	}

	w.Header().Set(AssessmentIDHeader, result.ID)
	response.OK(w, result)
}

// readAudio returns the uploaded "audio" file. ok is false when the form
// cannot be parsed or the file is missing or empty.
func (h *AssessmentHandler) readAudio(w http.ResponseWriter, r *http.Request) (data []byte, filename, contentType string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.log.Warn().Err(err).Msg("Failed to parse multipart form")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, "", "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil || len(data) == 0 {
		return nil, "", "", false
	}

	h.log.Info().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Str("mimetype", header.Header.Get("Content-Type")).
		Msg("Received audio file")

	return data, header.Filename, header.Header.Get("Content-Type"), true
}

func (h *AssessmentHandler) handleError(w http.ResponseWriter, failure string, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		h.log.Error().Err(err).Msg("Internal server error")
		response.ErrorWithDetails(w, http.StatusInternalServerError, failure, err.Error())
		return
	}

	status := appErr.HTTPStatus()
	if status < http.StatusInternalServerError {
		response.Error(w, status, &response.ErrorBody{Error: appErr.Message})
		return
	}

	h.log.Error().Err(err).Interface("details", appErr.Details).Msg(failure)
	response.ErrorWithDetails(w, status, failure, appErr.Detail())
}
