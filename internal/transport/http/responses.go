package httptransport

import (
	"time"

	"dmvagent/internal/domain"
	"dmvagent/internal/workflow"
)

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type intentResponse struct {
	Success bool `json:"success"`
}

type verifyResponse struct {
	// Result is the raw classifier answer.
	Result      string `json:"result"`
	Verdict     string `json:"verdict"`
	Rationale   string `json:"rationale"`
	Reply       string `json:"reply"`
	GuessedType string `json:"guessedType,omitempty"`
	Recorded    bool   `json:"recorded"`
	State       string `json:"state"`
}

type sessionResponse struct {
	ID                string                    `json:"id"`
	Intent            string                    `json:"intent"`
	VerifiedDocuments []domain.VerifiedDocument `json:"verifiedDocuments"`
	CreatedAt         time.Time                 `json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

func fromUploadOutcome(o workflow.UploadOutcome) verifyResponse {
	return verifyResponse{
		Result:      o.Rationale,
		Verdict:     string(o.Verdict),
		Rationale:   o.Rationale,
		Reply:       o.Reply,
		GuessedType: o.GuessedType,
		Recorded:    o.Recorded,
		State:       string(o.State),
	}
}

func fromSession(s domain.Session) sessionResponse {
	docs := s.VerifiedDocuments
	if docs == nil {
		docs = []domain.VerifiedDocument{}
	}
	return sessionResponse{
		ID:                s.ID,
		Intent:            s.Intent,
		VerifiedDocuments: docs,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}
