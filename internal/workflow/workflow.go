// Package workflow coordinates one inbound request at a time: file uploads
// run extraction, classification and the ledger append; text turns run the
// dialogue agent next to the literal-match intent fallback.
package workflow

import (
	"context"
	"time"

	"dmvagent/internal/catalog"
	"dmvagent/internal/domain"
	"dmvagent/internal/extract"
	"dmvagent/internal/ledger"
	"dmvagent/internal/metrics"
	"dmvagent/internal/notify"
)

type Extractor interface {
	Extract(f extract.File) (domain.ExtractedContent, error)
}

type Classifier interface {
	Classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationResult, error)
}

type IntentStore interface {
	Create(ctx context.Context, initialIntent string) (string, error)
	Upsert(ctx context.Context, sessionID, intent string) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
}

type Ledger interface {
	AppendIfVerified(ctx context.Context, sessionID, expectedType, filename string, verdict domain.Verdict) (ledger.Outcome, domain.VerifiedDocument, error)
}

// Tools is what the dialogue agent may call while producing a reply.
type Tools interface {
	EvaluateTicket(jurisdiction, service string, providedDocuments []string) domain.TicketVerdict
	UpsertIntent(ctx context.Context, sessionID, intent string) error
	AllKnownServices() []string
}

type AgentTurn struct {
	SessionID string
	Messages  []domain.ChatMessage
	Tools     Tools
}

// DialogueAgent decides what to say on a text turn. It lives outside this
// service; the workflow only hands it the conversation and the tools.
type DialogueAgent interface {
	Respond(ctx context.Context, turn AgentTurn) (string, error)
}

type Deps struct {
	Catalog    *catalog.Catalog
	Intents    IntentStore
	Extractor  Extractor
	Classifier Classifier
	Ledger     Ledger
	Notifier   notify.Notifier
	Agent      DialogueAgent
	Metrics    *metrics.Metrics

	// ClassifyRetries bounds extra attempts after classification_unavailable.
	ClassifyRetries int
	RetryInterval   time.Duration
}

type Workflow struct {
	catalog       *catalog.Catalog
	intents       IntentStore
	extractor     Extractor
	classifier    Classifier
	ledger        Ledger
	notifier      notify.Notifier
	agent         DialogueAgent
	metrics       *metrics.Metrics
	retries       int
	retryInterval time.Duration
}

func New(d Deps) *Workflow {
	n := d.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	interval := d.RetryInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	retries := d.ClassifyRetries
	if retries < 0 {
		retries = 0
	}
	return &Workflow{
		catalog:       d.Catalog,
		intents:       d.Intents,
		extractor:     d.Extractor,
		classifier:    d.Classifier,
		ledger:        d.Ledger,
		notifier:      n,
		agent:         d.Agent,
		metrics:       d.Metrics,
		retries:       retries,
		retryInterval: interval,
	}
}

func (w *Workflow) EvaluateTicket(jurisdiction, service string, providedDocuments []string) domain.TicketVerdict {
	return catalog.Evaluate(w.catalog, jurisdiction, service, providedDocuments)
}

func (w *Workflow) AllKnownServices() []string {
	return w.catalog.AllKnownServices()
}

// UpsertIntent is the tool-call path for intent writes.
func (w *Workflow) UpsertIntent(ctx context.Context, sessionID, intent string) error {
	err := w.intents.Upsert(ctx, sessionID, intent)
	w.metrics.IncIntentWrite("tool", resultLabel(err))
	return err
}

func (w *Workflow) StartSession(ctx context.Context, initialIntent string) (string, error) {
	return w.intents.Create(ctx, initialIntent)
}

func (w *Workflow) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return w.intents.Get(ctx, sessionID)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.KindOf(err))
}
