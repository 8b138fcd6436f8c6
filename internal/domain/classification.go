package domain

import "time"

type Verdict string

const (
	VerdictMatch   Verdict = "match"
	VerdictNoMatch Verdict = "no-match"
)

type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
)

// ExtractedContent is what the classifier sees: extracted text for documents,
// a base64 payload plus MIME type for raster images.
type ExtractedContent struct {
	Kind     ContentKind
	Value    string
	MimeType string
}

type ClassificationRequest struct {
	ExpectedType string
	Content      ExtractedContent
}

type ClassificationResult struct {
	Verdict   Verdict
	Rationale string
	Provider  string
	Model     string
}

// VerifiedDocument is appended to a session once a classification matched.
// Entries are never mutated or removed.
type VerifiedDocument struct {
	ExpectedType string    `json:"expectedType"`
	Filename     string    `json:"filename"`
	VerifiedAt   time.Time `json:"verifiedAt"`
}
