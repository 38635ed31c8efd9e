package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mailscheduler/pkg/logger"
	"github.com/dmitrymomot/mailscheduler/pkg/validator"
)

const maxRequestBody = 1 << 20

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// ScheduleRequest is the POST /schedule body. ScheduledTime is epoch seconds;
// fractional values are truncated to whole seconds.
type ScheduleRequest struct {
	To            string      `json:"to"`
	Subject       string      `json:"subject"`
	Body          string      `json:"body"`
	ScheduledTime json.Number `json:"scheduledTime"`
}

// maxEpochSeconds keeps converted times far from int64 overflow.
const maxEpochSeconds = 1 << 40

func (r ScheduleRequest) record() NewRecord {
	rec := NewRecord{Recipient: r.To, Subject: r.Subject, Body: r.Body}
	if r.ScheduledTime == "" {
		return rec
	}
	if sec := epochSeconds(r.ScheduledTime); sec != 0 {
		rec.ScheduledTime = unixTime(sec)
	}
	return rec
}

func epochSeconds(n json.Number) int64 {
	if sec, err := n.Int64(); err == nil {
		return max(min(sec, maxEpochSeconds), -maxEpochSeconds)
	}
	// overflowing values come back as ±Inf and clamp below
	f, _ := n.Float64()
	return int64(max(min(math.Trunc(f), maxEpochSeconds), -maxEpochSeconds))
}

type scheduleResponse struct {
	ID            int64   `json:"id"`
	JobID         *string `json:"jobId"`
	ScheduledTime int64   `json:"scheduledTime"`
	Status        Status  `json:"status"`
}

// RecordResponse is the wire form of a JobRecord. Times are epoch seconds.
type RecordResponse struct {
	ID            int64   `json:"id"`
	To            string  `json:"to"`
	Subject       string  `json:"subject"`
	Body          string  `json:"body"`
	ScheduledTime int64   `json:"scheduledTime"`
	CreatedAt     int64   `json:"createdAt"`
	SentAt        *int64  `json:"sentAt"`
	Status        Status  `json:"status"`
	JobID         *string `json:"jobId"`
	ErrorMessage  *string `json:"errorMessage"`
	MessageID     *string `json:"messageId"`
	PreviewURL    *string `json:"previewUrl"`
}

func newRecordResponse(rec JobRecord) RecordResponse {
	out := RecordResponse{
		ID:            rec.ID,
		To:            rec.Recipient,
		Subject:       rec.Subject,
		Body:          rec.Body,
		ScheduledTime: rec.ScheduledTime.Unix(),
		CreatedAt:     rec.CreatedAt.Unix(),
		Status:        rec.Status,
		JobID:         rec.QueueHandle,
		ErrorMessage:  rec.ErrorMessage,
	}
	if rec.SentAt != nil {
		sec := rec.SentAt.Unix()
		out.SentAt = &sec
	}
	if rec.Receipt != nil {
		out.MessageID = nullable(rec.Receipt.MessageID)
		out.PreviewURL = nullable(rec.Receipt.PreviewURL)
	}
	return out
}

type statsResponse struct {
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// HTTPHandler exposes a Service as JSON endpoints.
type HTTPHandler struct {
	svc *Service
	log *slog.Logger
}

// NewHTTPHandler builds the handler. Only WithLogger applies.
func NewHTTPHandler(svc *Service, opts ...Option) *HTTPHandler {
	o := newOptions(opts)
	return &HTTPHandler{svc: svc, log: o.logger}
}

// Routes returns the email routes, meant to be mounted under a prefix such as
// /api/emails.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/schedule", h.schedule)
	r.Get("/stats/summary", h.stats)
	r.Get("/{id}", h.get)
	r.Get("/", h.list)
	return r
}

func (h *HTTPHandler) schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respond(w, r, http.StatusBadRequest, JSONResponse{Error: &ErrorDetail{Code: "bad_request", Message: err.Error()}})
		return
	}

	rec, err := h.svc.Schedule(r.Context(), req.record())
	if err != nil {
		if errors.Is(err, ErrEnqueue) {
			h.respond(w, r, http.StatusServiceUnavailable, JSONResponse{
				Meta:  map[string]any{"id": rec.ID},
				Error: &ErrorDetail{Code: "enqueue_failed", Message: "email stored but not queued, it will be queued on next recovery"},
			})
			return
		}
		h.fail(w, r, err)
		return
	}

	h.respond(w, r, http.StatusCreated, JSONResponse{Data: scheduleResponse{
		ID:            rec.ID,
		JobID:         rec.QueueHandle,
		ScheduledTime: rec.ScheduledTime.Unix(),
		Status:        rec.Status,
	}})
}

func (h *HTTPHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respond(w, r, http.StatusBadRequest, JSONResponse{Error: &ErrorDetail{Code: "bad_request", Message: "id must be a positive integer"}})
		return
	}

	rec, err := h.svc.Status(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, JSONResponse{Data: newRecordResponse(rec)})
}

func (h *HTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	status, err := ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	records, err := h.svc.List(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, newRecordResponse(rec))
	}
	h.respond(w, r, http.StatusOK, JSONResponse{Data: out, Meta: map[string]any{"count": len(out)}})
}

func (h *HTTPHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, JSONResponse{Data: statsResponse(st)})
}

// fail maps domain errors to statuses. Unknown errors are logged and hidden.
func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		detail := &ErrorDetail{Code: "validation_failed", Message: err.Error()}
		if verrs := validator.ExtractValidationErrors(err); len(verrs) > 0 {
			detail.Message = "validation failed"
			detail.Details = make(map[string][]string, len(verrs))
			for _, field := range verrs.Fields() {
				detail.Details[field] = verrs.Get(field)
			}
		}
		h.respond(w, r, http.StatusBadRequest, JSONResponse{Error: detail})
	case errors.Is(err, ErrNotFound):
		h.respond(w, r, http.StatusNotFound, JSONResponse{Error: &ErrorDetail{Code: "not_found", Message: "email not found"}})
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		h.respond(w, r, http.StatusInternalServerError, JSONResponse{Error: &ErrorDetail{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}})
	}
}

func (h *HTTPHandler) respond(w http.ResponseWriter, r *http.Request, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WarnContext(r.Context(), "write response", logger.Error(err))
	}
}

// decodeJSON reads exactly one JSON object with no unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.New("content type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}
