package llm

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"dmvagent/internal/domain"
)

const systemPrompt = "You are a DMV document verification agent."

const (
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.2
)

var (
	// leadingVerdict is a YES/NO answer at the very start of the response,
	// optionally behind markdown or an "Answer:" label, and closed by
	// punctuation or the end of the line.
	leadingVerdict = regexp.MustCompile("(?i)^[\\s*_#>\"'`]*(?:answer\\s*:\\s*)?(yes|no)(?:[ \\t]*[.,:;!)*\\-]|[ \\t]*(?:\\r?\\n|$))")
	yesAnywhere    = regexp.MustCompile(`(?i)\byes\b`)
)

type Classifier struct {
	provider    Provider
	maxTokens   int64
	temperature float64
}

func NewClassifier(provider Provider, maxTokens int, temperature float64) *Classifier {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Classifier{provider: provider, maxTokens: int64(maxTokens), temperature: temperature}
}

// Classify asks the provider whether content is a document of the expected
// type. Any provider failure, and any answer without a YES/NO token, is
// reported as classification_unavailable and never as a negative verdict.
func (c *Classifier) Classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationResult, error) {
	prompt := c.buildPrompt(req)
	started := time.Now()
	text, err := c.provider.Complete(ctx, prompt)
	if err != nil {
		log.Printf("llm classify-failed provider=%s model=%s expected=%q err=%v", c.provider.Name(), c.provider.Model(), req.ExpectedType, err)
		return domain.ClassificationResult{}, domain.Wrap(domain.KindClassificationUnavailable, "document classification is temporarily unavailable", err)
	}

	verdict, ok := ParseVerdict(text)
	if !ok {
		log.Printf("llm classify-malformed provider=%s model=%s response_size=%d", c.provider.Name(), c.provider.Model(), len(text))
		return domain.ClassificationResult{}, domain.New(domain.KindClassificationUnavailable, "document classification returned no verdict")
	}

	log.Printf("llm classify provider=%s model=%s kind=%s expected=%q verdict=%s elapsed=%s",
		c.provider.Name(), c.provider.Model(), req.Content.Kind, req.ExpectedType, verdict, time.Since(started).Round(time.Millisecond))
	return domain.ClassificationResult{
		Verdict:   verdict,
		Rationale: text,
		Provider:  c.provider.Name(),
		Model:     c.provider.Model(),
	}, nil
}

// ParseVerdict reads the leading YES or NO of a response, ignoring case.
// Without one, a standalone YES anywhere still counts as a match; anything
// else has no verdict.
func ParseVerdict(text string) (domain.Verdict, bool) {
	if m := leadingVerdict.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		if strings.EqualFold(m[1], "yes") {
			return domain.VerdictMatch, true
		}
		return domain.VerdictNoMatch, true
	}
	if yesAnywhere.MatchString(text) {
		return domain.VerdictMatch, true
	}
	return "", false
}

func (c *Classifier) buildPrompt(req domain.ClassificationRequest) Prompt {
	p := Prompt{
		System:      systemPrompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var sb strings.Builder
	switch req.Content.Kind {
	case domain.ContentImage:
		fmt.Fprintf(&sb, "The user has uploaded an image. The expected document type is: %q.\n\n", req.ExpectedType)
		p.ImageBase64 = req.Content.Value
		p.ImageMimeType = req.Content.MimeType
	default:
		fmt.Fprintf(&sb, "The user has uploaded a PDF. The expected document type is: %q. Here is the extracted text from the PDF:\n\n", req.ExpectedType)
		sb.WriteString(req.Content.Value)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Does this document match the expected type? Reply with YES or NO and a short reasoning. ")
	sb.WriteString("If the answer is NO, add a sentence of the form \"The document type is <type>.\" naming what the document appears to be.")
	p.Text = sb.String()
	return p
}
