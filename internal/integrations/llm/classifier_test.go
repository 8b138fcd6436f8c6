package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dmvagent/internal/domain"
)

type fakeProvider struct {
	reply string
	err   error
	got   Prompt
	calls int
}

func (f *fakeProvider) Complete(_ context.Context, p Prompt) (string, error) {
	f.calls++
	f.got = p
	return f.reply, f.err
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		text   string
		want   domain.Verdict
		wantOK bool
	}{
		{text: "YES, this is a valid passport", want: domain.VerdictMatch, wantOK: true},
		{text: "yes.", want: domain.VerdictMatch, wantOK: true},
		{text: "NO, this looks like a utility bill addressed to a different name", want: domain.VerdictNoMatch, wantOK: true},
		{text: "Answer: No. The document type is bank statement.", want: domain.VerdictNoMatch, wantOK: true},
		{text: "**YES** - the photo page is readable", want: domain.VerdictMatch, wantOK: true},
		{text: "No\nThe upload is a lease agreement.", want: domain.VerdictNoMatch, wantOK: true},
		{text: "There is no doubt about it: YES, this is a valid passport.", want: domain.VerdictMatch, wantOK: true},
		{text: "No question, YES - this is a passport.", want: domain.VerdictMatch, wantOK: true},
		{text: "This is not a passport and has no photo.", wantOK: false},
		{text: "Nothing conclusive; yesterday's scan is blurry", wantOK: false},
		{text: "", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParseVerdict(tt.text)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("ParseVerdict(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClassifyTextPromptAndResult(t *testing.T) {
	fp := &fakeProvider{reply: "YES, this is a valid passport"}
	c := NewClassifier(fp, 0, 0.2)

	res, err := c.Classify(context.Background(), domain.ClassificationRequest{
		ExpectedType: "Passport",
		Content:      domain.ExtractedContent{Kind: domain.ContentText, Value: "UNITED STATES PASSPORT"},
	})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if res.Verdict != domain.VerdictMatch {
		t.Fatalf("expected match, got %s", res.Verdict)
	}
	if res.Rationale != "YES, this is a valid passport" {
		t.Fatalf("rationale must be kept verbatim, got %q", res.Rationale)
	}
	if fp.got.System != systemPrompt {
		t.Fatalf("unexpected system prompt: %q", fp.got.System)
	}
	if fp.got.MaxTokens != DefaultMaxTokens || fp.got.Temperature != 0.2 {
		t.Fatalf("unexpected limits: max=%d temp=%f", fp.got.MaxTokens, fp.got.Temperature)
	}
	if !strings.Contains(fp.got.Text, `"Passport"`) || !strings.Contains(fp.got.Text, "UNITED STATES PASSPORT") {
		t.Fatalf("prompt must carry expected type and text, got %q", fp.got.Text)
	}
	if fp.got.ImageBase64 != "" {
		t.Fatal("text content must not attach an image")
	}
}

func TestClassifyImageAttachesPayload(t *testing.T) {
	fp := &fakeProvider{reply: "NO, this looks like a utility bill addressed to a different name"}
	c := NewClassifier(fp, 128, 0.2)

	res, err := c.Classify(context.Background(), domain.ClassificationRequest{
		ExpectedType: "Proof of Address",
		Content:      domain.ExtractedContent{Kind: domain.ContentImage, Value: "aGVsbG8=", MimeType: "image/png"},
	})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if res.Verdict != domain.VerdictNoMatch {
		t.Fatalf("expected no-match, got %s", res.Verdict)
	}
	if fp.got.ImageBase64 != "aGVsbG8=" || fp.got.ImageMimeType != "image/png" {
		t.Fatalf("image payload not attached: %+v", fp.got)
	}
	if strings.Contains(fp.got.Text, "aGVsbG8=") {
		t.Fatal("image payload must not be inlined into the text")
	}
	if fp.got.MaxTokens != 128 {
		t.Fatalf("unexpected max tokens: %d", fp.got.MaxTokens)
	}
}

func TestClassifyFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name string
		fp   *fakeProvider
	}{
		{name: "provider error", fp: &fakeProvider{err: errors.New("503 overloaded")}},
		{name: "empty response", fp: &fakeProvider{reply: ""}},
		{name: "no verdict token", fp: &fakeProvider{reply: "I cannot tell from this scan."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.fp, 0, 0.2)
			_, err := c.Classify(context.Background(), domain.ClassificationRequest{
				ExpectedType: "Passport",
				Content:      domain.ExtractedContent{Kind: domain.ContentText, Value: "x"},
			})
			if domain.KindOf(err) != domain.KindClassificationUnavailable {
				t.Fatalf("expected classification_unavailable, got %v", err)
			}
		})
	}
}
