package httptransport

import (
	"encoding/json"
	"io"
	"net/http"

	"dmvagent/internal/domain"
)

const maxJSONBody = 1 << 20

type startSessionRequest struct {
	Intent string `json:"intent"`
}

type chatRequest struct {
	Messages  []domain.ChatMessage `json:"messages"`
	SessionID string               `json:"sessionId"`
}

type ticketRequest struct {
	State        string   `json:"state"`
	Service      string   `json:"service"`
	ProvidedDocs []string `json:"providedDocs"`
}

type intentRequest struct {
	SessionID string `json:"sessionId"`
	Intent    string `json:"intent"`
}

// decodeJSON reads a bounded JSON body. An empty body decodes to the zero
// value.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&v); err != nil && err != io.EOF {
		return v, domain.Wrap(domain.KindInvalidRequest, "Invalid request", err)
	}
	return v, nil
}
