// Package httptransport exposes the workflow over HTTP.
package httptransport

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dmvagent/internal/domain"
	"dmvagent/internal/extract"
	"dmvagent/internal/workflow"
)

type Service interface {
	StartSession(ctx context.Context, initialIntent string) (string, error)
	HandleChatTurn(ctx context.Context, req workflow.ChatRequest) (workflow.ChatOutcome, error)
	EvaluateTicket(jurisdiction, service string, providedDocuments []string) domain.TicketVerdict
	UpsertIntent(ctx context.Context, sessionID, intent string) error
	HandleUpload(ctx context.Context, req workflow.UploadRequest) (workflow.UploadOutcome, error)
	Session(ctx context.Context, sessionID string) (domain.Session, error)
}

type Handler struct {
	service        Service
	maxUploadBytes int64
}

func NewHandler(service Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/chat/start", h.HandleStartSession)
	r.Post("/api/chat", h.HandleChat)
	r.Post("/api/ticket", h.HandleTicket)
	r.Post("/api/intent", h.HandleIntent)
	r.Post("/api/verify-doc", h.HandleVerifyDocument)
	r.Get("/api/sessions/{id}", h.HandleGetSession)
}

func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[startSessionRequest](w, r)
	if err != nil {
		WriteError(w, err)
		return
	}
	id, err := h.service.StartSession(r.Context(), req.Intent)
	if err != nil {
		log.Printf("http start-session-failed err=%v", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, startSessionResponse{SessionID: id})
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[chatRequest](w, r)
	if err != nil {
		WriteError(w, err)
		return
	}
	out, err := h.service.HandleChatTurn(r.Context(), workflow.ChatRequest{
		SessionID: req.SessionID,
		Messages:  req.Messages,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, chatResponse{Reply: out.Reply})
}

func (h *Handler) HandleTicket(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[ticketRequest](w, r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.service.EvaluateTicket(req.State, req.Service, req.ProvidedDocs))
}

func (h *Handler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[intentRequest](w, r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.service.UpsertIntent(r.Context(), req.SessionID, req.Intent); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, intentResponse{Success: true})
}

func (h *Handler) HandleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, domain.New(domain.KindInvalidRequest, "uploaded file is too large"))
			return
		}
		WriteError(w, domain.Wrap(domain.KindInvalidRequest, "Missing file or expectedType", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	expectedType := strings.TrimSpace(r.FormValue("expectedType"))
	sessionID := strings.TrimSpace(r.FormValue("session_id"))

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, domain.New(domain.KindInvalidRequest, "Missing file or expectedType"))
		return
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		WriteError(w, domain.New(domain.KindInvalidRequest, "uploaded file is too large"))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, domain.Wrap(domain.KindInvalidRequest, "could not read uploaded file", err))
		return
	}

	out, err := h.service.HandleUpload(r.Context(), workflow.UploadRequest{
		SessionID: sessionID,
		File: extract.File{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		},
		ExpectedType: expectedType,
	})
	if err != nil {
		writeError(w, err, out.Reply)
		return
	}
	WriteJSON(w, http.StatusOK, fromUploadOutcome(out))
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, fromSession(sess))
}
