package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEvent = VerificationEvent{
	SessionID:    "3f1c9e2a-0000-4000-8000-000000000001",
	ExpectedType: "Passport",
	Filename:     "passport.pdf",
	VerifiedAt:   time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
}

func TestSlackNotifierPostsToChannel(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	api := slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
	n := NewSlackNotifier(api, "C123")

	require.NoError(t, n.DocumentVerified(context.Background(), testEvent))
	assert.Equal(t, "C123", form.Get("channel"))
	assert.Contains(t, form.Get("text"), "Passport")
	assert.Contains(t, form.Get("text"), testEvent.SessionID)
}

func TestSlackNotifierReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	n := NewSlackNotifier(slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/")), "C404")
	err := n.DocumentVerified(context.Background(), testEvent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysBySession(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "dmv-verified-documents"}

	require.NoError(t, p.DocumentVerified(context.Background(), testEvent))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, testEvent.SessionID, string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "Passport", decoded["expectedType"])
	assert.Equal(t, "2024-06-01T09:30:00Z", decoded["verifiedAt"])
	_, hasProvider := decoded["provider"]
	assert.False(t, hasProvider)
}

type recordingNotifier struct {
	err   error
	calls int
}

func (r *recordingNotifier) DocumentVerified(context.Context, VerificationEvent) error {
	r.calls++
	return r.err
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	first := &recordingNotifier{err: errors.New("slack down")}
	second := &recordingNotifier{}
	third := &recordingNotifier{err: errors.New("kafka down")}

	err := Multi{first, second, third}.DocumentVerified(context.Background(), testEvent)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "slack down") && strings.Contains(err.Error(), "kafka down"))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)

	assert.NoError(t, Multi{}.DocumentVerified(context.Background(), testEvent))
	assert.NoError(t, Nop{}.DocumentVerified(context.Background(), testEvent))
}
