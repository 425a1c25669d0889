// Package handler exposes the coaching service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"life-coach-agent/internal/domain"
	"life-coach-agent/internal/schema"
	"life-coach-agent/internal/usecase"
)

const maxBodyBytes = 64 << 10

const (
	msgMissingHistory = "Missing 'now' or 'then' in chat history."
	msgAskFailed      = "Failed to create chat completions"
	msgSelectFailed   = "Failed to create chat completions with selected option"
)

type CoachUseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
	SelectOption(ctx context.Context, in usecase.SelectInput) (usecase.SelectOutput, error)
}

type Handler struct {
	uc CoachUseCase
}

type askRequest struct {
	Now  string `json:"now"`
	Then string `json:"then"`
}

type selectOptionRequest struct {
	SelectedOption string `json:"selectedOption"`
	ChatID         string `json:"chatId"`
}

// dataResponse is {"data":{"data":<payload>,"id":<session id>}}.
type dataResponse[T any] struct {
	Data sessionPayload[T] `json:"data"`
}

type sessionPayload[T any] struct {
	Data T      `json:"data"`
	ID   string `json:"id"`
}

func NewHandler(uc CoachUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Routes builds the router serving every endpoint.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(correlationID)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors(allowedOrigins))

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.health)
	r.Post("/ask", h.ask)
	r.Post("/select-option", h.selectOption)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, schema.AskRequest, &req) {
		return
	}

	out, err := h.uc.Ask(r.Context(), usecase.AskInput{Now: req.Now, Then: req.Then})
	if err != nil {
		writeUseCaseError(w, r, err, msgAskFailed)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse[domain.ProjectProposal]{Data: sessionPayload[domain.ProjectProposal]{Data: out.Proposal, ID: out.SessionID}})
}

func (h *Handler) selectOption(w http.ResponseWriter, r *http.Request) {
	var req selectOptionRequest
	if !decodeBody(w, r, schema.SelectOptionRequest, &req) {
		return
	}

	out, err := h.uc.SelectOption(r.Context(), usecase.SelectInput{SelectedOption: req.SelectedOption, ChatID: req.ChatID})
	if err != nil {
		writeUseCaseError(w, r, err, msgSelectFailed)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse[domain.ActionBreakdown]{Data: sessionPayload[domain.ActionBreakdown]{Data: out.Breakdown, ID: out.SessionID}})
}

// decodeBody validates the body against def before decoding it into dst. It
// writes the 400 response itself and reports whether the caller may proceed.
func decodeBody(w http.ResponseWriter, r *http.Request, def schema.Definition, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := def.Validate(body); err != nil {
		slog.Info("request body rejected",
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeUseCaseError(w http.ResponseWriter, r *http.Request, err error, failure string) {
	status, text := http.StatusInternalServerError, failure

	var usecaseErr *usecase.Error
	if errors.As(err, &usecaseErr) {
		switch usecaseErr.Code {
		case usecase.ErrorMissingHistory:
			status, text = http.StatusBadRequest, msgMissingHistory
		case usecase.ErrorInvalidInput:
			status, text = http.StatusBadRequest, "Invalid request: "+usecaseErr.Reason
		}
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelInfo
	}
	slog.Log(r.Context(), level, "request failed",
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"err", err,
	)
	writeText(w, status, text)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
		writeText(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
