package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"dmvagent/internal/domain"
	"dmvagent/internal/extract"
	"dmvagent/internal/ledger"
	"dmvagent/internal/notify"
)

type State string

const (
	StateReceived      State = "received"
	StateExtracted     State = "extracted"
	StateClassified    State = "classified"
	StateRecorded      State = "recorded"
	StateSkippedRecord State = "skipped_record"
	// StateRecordFailed keeps the verdict: only the ledger write failed.
	StateRecordFailed State = "record_failed"
	StateReplied      State = "replied"
	StateFailed       State = "failed"
)

var guessedTypePattern = regexp.MustCompile(`(?i)document type is:?\s*([\w\s]+)`)

type UploadRequest struct {
	SessionID    string
	File         extract.File
	ExpectedType string
}

type UploadOutcome struct {
	Verdict     domain.Verdict
	Rationale   string
	Reply       string
	GuessedType string
	Recorded    bool
	Document    *domain.VerifiedDocument
	// RecordErr is set when a match could not be written to the ledger.
	RecordErr error
	State     State
	Trace     []State
}

func (o *UploadOutcome) enter(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

// HandleUpload runs Received -> Extracted -> Classified -> Recorded or
// SkippedRecord -> Replied. Extraction and classification failures end in
// Failed with nothing persisted; the returned error carries the domain kind
// and the outcome carries the user-facing reply.
func (w *Workflow) HandleUpload(ctx context.Context, req UploadRequest) (UploadOutcome, error) {
	var out UploadOutcome
	out.enter(StateReceived)

	expected := strings.TrimSpace(req.ExpectedType)
	if expected == "" || len(req.File.Data) == 0 && req.File.Filename == "" {
		err := domain.New(domain.KindInvalidRequest, "Missing file or expectedType")
		return w.fail(&out, req, err), err
	}

	content, err := w.extractor.Extract(req.File)
	if err != nil {
		return w.fail(&out, req, err), err
	}
	out.enter(StateExtracted)

	started := time.Now()
	result, err := w.classify(ctx, domain.ClassificationRequest{ExpectedType: expected, Content: content})
	if err != nil {
		return w.fail(&out, req, err), err
	}
	w.metrics.ObserveClassification(string(result.Verdict), started)
	out.Verdict = result.Verdict
	out.Rationale = result.Rationale
	out.enter(StateClassified)

	outcome, doc, err := w.ledger.AppendIfVerified(ctx, req.SessionID, expected, req.File.Filename, result.Verdict)
	switch {
	case err != nil:
		log.Printf("workflow record-failed session=%s expected=%q kind=%s err=%v", req.SessionID, expected, domain.KindOf(err), err)
		w.metrics.IncLedger("failed")
		out.RecordErr = err
		out.enter(StateRecordFailed)
	case outcome == ledger.OutcomeAppended:
		w.metrics.IncLedger(string(outcome))
		out.Recorded = true
		out.Document = &doc
		out.enter(StateRecorded)
		w.notify(ctx, req.SessionID, doc, result)
	default:
		w.metrics.IncLedger(string(outcome))
		out.enter(StateSkippedRecord)
	}

	if out.Verdict == domain.VerdictNoMatch {
		out.GuessedType = GuessDocumentType(out.Rationale)
	}
	out.Reply = ComposeReply(out.Verdict, expected, out.GuessedType)
	out.enter(StateReplied)
	log.Printf("workflow upload session=%s file=%q expected=%q verdict=%s recorded=%t trace=%v",
		req.SessionID, req.File.Filename, expected, out.Verdict, out.Recorded, out.Trace)
	return out, nil
}

func (w *Workflow) classify(ctx context.Context, req domain.ClassificationRequest) (domain.ClassificationResult, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.retryInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(w.retries)), ctx)

	attempt := 0
	res, err := backoff.RetryWithData(func() (domain.ClassificationResult, error) {
		attempt++
		res, err := w.classifier.Classify(ctx, req)
		if err == nil {
			return res, nil
		}
		if !domain.IsKind(err, domain.KindClassificationUnavailable) {
			return res, backoff.Permanent(err)
		}
		if attempt <= w.retries {
			log.Printf("workflow classify-retry attempt=%d of=%d err=%v", attempt, w.retries+1, err)
		}
		return res, err
	}, policy)
	if err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			// Cancellation while waiting between attempts.
			return res, domain.Wrap(domain.KindClassificationUnavailable, "document classification is temporarily unavailable", err)
		}
	}
	return res, err
}

func (w *Workflow) fail(out *UploadOutcome, req UploadRequest, err error) UploadOutcome {
	kind := domain.KindOf(err)
	w.metrics.IncUploadFailure(string(kind))
	out.Reply = FailureReply(err)
	out.enter(StateFailed)
	log.Printf("workflow upload-failed session=%s file=%q kind=%s err=%v", req.SessionID, req.File.Filename, kind, err)
	return *out
}

func (w *Workflow) notify(ctx context.Context, sessionID string, doc domain.VerifiedDocument, result domain.ClassificationResult) {
	err := w.notifier.DocumentVerified(ctx, notify.VerificationEvent{
		SessionID:    sessionID,
		ExpectedType: doc.ExpectedType,
		Filename:     doc.Filename,
		VerifiedAt:   doc.VerifiedAt,
		Provider:     result.Provider,
		Model:        result.Model,
	})
	if err != nil {
		log.Printf("workflow notify-failed session=%s err=%v", sessionID, err)
	}
}

// GuessDocumentType pulls a hint out of the classifier rationale. The result
// is a best-effort hint and may be empty.
func GuessDocumentType(rationale string) string {
	m := guessedTypePattern.FindStringSubmatch(rationale)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func ComposeReply(verdict domain.Verdict, expectedType, guessedType string) string {
	if verdict == domain.VerdictMatch {
		return fmt.Sprintf("Your document matches the expected type: %s.", expectedType)
	}
	guess := guessedType
	if guess == "" {
		guess = "an unknown document type"
	}
	return fmt.Sprintf("The document you submitted appears to be: %s. Please upload the required document: %s.", guess, expectedType)
}

func FailureReply(err error) string {
	switch domain.KindOf(err) {
	case domain.KindUnsupportedFileType:
		return "That file type is not supported. Please upload a PDF, PNG or JPEG file."
	case domain.KindExtractionFailed:
		return "We could not read that file. Please upload a clearer copy."
	case domain.KindClassificationUnavailable:
		return "We could not check your document right now. Please try again in a moment."
	case domain.KindInvalidRequest:
		return "Please attach a file and say which document it is."
	case domain.KindNotFound:
		return "We could not find your chat session. Please start a new one."
	default:
		return "Something went wrong while checking your document."
	}
}
