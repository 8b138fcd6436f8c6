// Package extract turns an uploaded file into something the classifier can
// read: plain text for PDFs, a base64 payload for raster images.
package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"dmvagent/internal/domain"
)

const (
	mimePDF  = "application/pdf"
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"

	DefaultMaxChars = 20000
)

var extensionTypes = map[string]string{
	".pdf":  mimePDF,
	".png":  mimePNG,
	".jpg":  mimeJPEG,
	".jpeg": mimeJPEG,
}

type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Extractor struct {
	maxChars int
}

// New returns an Extractor that truncates PDF text to maxChars runes.
func New(maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{maxChars: maxChars}
}

func (e *Extractor) Extract(f File) (domain.ExtractedContent, error) {
	mediaType, subject := ResolveMediaType(f)
	switch mediaType {
	case mimePDF:
		if len(f.Data) == 0 {
			return domain.ExtractedContent{}, domain.WithSubject(domain.KindExtractionFailed, "uploaded file is empty", f.Filename)
		}
		text, err := e.pdfText(f.Data)
		if err != nil {
			log.Printf("extract pdf-failed file=%q bytes=%d err=%v", f.Filename, len(f.Data), err)
			return domain.ExtractedContent{}, &domain.Error{
				Kind:    domain.KindExtractionFailed,
				Message: "could not read text from the PDF",
				Subject: f.Filename,
				Err:     err,
			}
		}
		log.Printf("extract pdf file=%q bytes=%d chars=%d", f.Filename, len(f.Data), utf8.RuneCountInString(text))
		return domain.ExtractedContent{Kind: domain.ContentText, Value: text, MimeType: mimePDF}, nil
	case mimePNG, mimeJPEG:
		if len(f.Data) == 0 {
			return domain.ExtractedContent{}, domain.WithSubject(domain.KindExtractionFailed, "uploaded file is empty", f.Filename)
		}
		log.Printf("extract image file=%q mime=%s bytes=%d", f.Filename, mediaType, len(f.Data))
		return domain.ExtractedContent{
			Kind:     domain.ContentImage,
			Value:    base64.StdEncoding.EncodeToString(f.Data),
			MimeType: mediaType,
		}, nil
	default:
		return domain.ExtractedContent{}, domain.WithSubject(domain.KindUnsupportedFileType, "unsupported file type", subject)
	}
}

// ResolveMediaType picks the media type used for dispatch. The declared
// type wins unless it is absent or generic; then the filename extension is
// used, and finally the content itself. The second value names what was
// looked at, for error messages.
func ResolveMediaType(f File) (mediaType, subject string) {
	declared := normalizeMediaType(f.ContentType)
	if !isGeneric(declared) {
		return declared, declared
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	if t, ok := extensionTypes[ext]; ok {
		return t, ext
	}
	if len(f.Data) > 0 {
		sniffed := normalizeMediaType(mimetype.Detect(f.Data).String())
		if isSupported(sniffed) {
			return sniffed, sniffed
		}
		if ext != "" {
			return sniffed, ext
		}
		return sniffed, sniffed
	}
	if ext != "" {
		return "", ext
	}
	if declared == "" {
		return "", "unknown"
	}
	return declared, declared
}

func isSupported(mediaType string) bool {
	switch mediaType {
	case mimePDF, mimePNG, mimeJPEG:
		return true
	}
	return false
}

func normalizeMediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return mimeJPEG
	}
	return mediaType
}

func isGeneric(mediaType string) bool {
	switch mediaType {
	case "", "application/octet-stream", "binary/octet-stream", "application/unknown":
		return true
	}
	return false
}

func (e *Extractor) pdfText(data []byte) (text string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	text = normalizeWhitespace(string(raw))
	if text == "" {
		return "", fmt.Errorf("no text layer")
	}
	return truncateRunes(text, e.maxChars), nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
