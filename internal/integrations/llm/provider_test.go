package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

func TestAnthropicProviderSendsImageAndReadsText(t *testing.T) {
	var body map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "YES, this is a valid passport"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "claude-test", aoption.WithBaseURL(srv.URL))
	got, err := p.Complete(context.Background(), Prompt{
		System:        systemPrompt,
		Text:          "Does this match?",
		ImageBase64:   "aGVsbG8=",
		ImageMimeType: "image/png",
		MaxTokens:     256,
		Temperature:   0.2,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "YES, this is a valid passport" {
		t.Fatalf("unexpected text: %q", got)
	}
	if path != "/v1/messages" {
		t.Fatalf("unexpected path: %s", path)
	}
	if body["model"] != "claude-test" || body["max_tokens"] != float64(256) {
		t.Fatalf("unexpected request body: %v", body)
	}
	raw, _ := json.Marshal(body["messages"])
	if !strings.Contains(string(raw), `"media_type":"image/png"`) || !strings.Contains(string(raw), `"data":"aGVsbG8="`) {
		t.Fatalf("image block missing from request: %s", raw)
	}
}

func TestAnthropicProviderErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "", aoption.WithBaseURL(srv.URL))
	if _, err := p.Complete(context.Background(), Prompt{Text: "x", MaxTokens: 16}); err == nil {
		t.Fatal("expected error from failing server")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
	if p.Model() != defaultAnthropicModel {
		t.Fatalf("expected default model, got %s", p.Model())
	}
}

func TestOpenAIProviderUsesBaseURLAndImagePart(t *testing.T) {
	var body map[string]any
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "NO, the document type is utility bill."}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-test", srv.URL+"/v1/")
	got, err := p.Complete(context.Background(), Prompt{
		System:        systemPrompt,
		Text:          "Does this match?",
		ImageBase64:   "aGVsbG8=",
		ImageMimeType: "image/jpeg",
		MaxTokens:     256,
		Temperature:   0.2,
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !strings.HasPrefix(got, "NO") {
		t.Fatalf("unexpected text: %q", got)
	}
	if path != "/v1/chat/completions" {
		t.Fatalf("unexpected path: %s", path)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header: %q", auth)
	}
	raw, _ := json.Marshal(body["messages"])
	if !strings.Contains(string(raw), "data:image/jpeg;base64,aGVsbG8=") {
		t.Fatalf("image part missing from request: %s", raw)
	}
	if body["temperature"] != 0.2 {
		t.Fatalf("unexpected temperature: %v", body["temperature"])
	}
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	if _, err := NewProvider(ProviderConfig{Provider: "bard"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	p, err := NewProvider(ProviderConfig{Provider: "OpenAI", OpenAIKey: "sk"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Name() != "openai" || p.Model() != defaultOpenAIModel {
		t.Fatalf("unexpected provider: %s/%s", p.Name(), p.Model())
	}
}
