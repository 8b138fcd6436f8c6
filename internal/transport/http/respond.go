package httptransport

import (
	"encoding/json"
	"log"
	"net/http"

	"dmvagent/internal/domain"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	// Reply is the user-facing text for failed uploads.
	Reply string `json:"reply,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http encode-failed status=%d err=%v", status, err)
	}
}

// WriteError maps the domain kind of err to a status code. Internal errors
// never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err, "")
}

func writeError(w http.ResponseWriter, err error, reply string) {
	kind := domain.KindOf(err)
	resp := errorResponse{Error: string(kind), Reply: reply}
	if kind != domain.KindInternal {
		resp.ErrorDescription = domain.MessageOf(err)
	}
	WriteJSON(w, StatusFor(kind), resp)
}

func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case domain.KindExtractionFailed:
		return http.StatusUnprocessableEntity
	case domain.KindClassificationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
