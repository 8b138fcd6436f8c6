package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"dmvagent/internal/domain"
)

type ChatRequest struct {
	SessionID string
	Messages  []domain.ChatMessage
}

type ChatOutcome struct {
	Reply string
	// CapturedIntent is the message stored by the literal-match fallback,
	// empty when no known service was mentioned.
	CapturedIntent string
}

// HandleChatTurn runs the dialogue agent and the literal-match fallback
// side by side. Both may write the session intent; the last write wins.
func (w *Workflow) HandleChatTurn(ctx context.Context, req ChatRequest) (ChatOutcome, error) {
	if len(req.Messages) == 0 {
		return ChatOutcome{}, domain.New(domain.KindInvalidRequest, "messages are required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return ChatOutcome{}, domain.New(domain.KindInvalidRequest, "sessionId is required")
	}

	// Neither branch cancels the other: the fallback write happens whatever
	// the agent does.
	var out ChatOutcome
	var g errgroup.Group
	if w.agent != nil {
		g.Go(func() error {
			reply, err := w.agent.Respond(ctx, AgentTurn{
				SessionID: req.SessionID,
				Messages:  req.Messages,
				Tools:     w,
			})
			if err != nil {
				var de *domain.Error
				if errors.As(err, &de) {
					return err
				}
				return domain.Wrap(domain.KindInternal, "dialogue agent failed", err)
			}
			out.Reply = reply
			return nil
		})
	}
	g.Go(func() error {
		captured, err := w.captureIntent(ctx, req)
		out.CapturedIntent = captured
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("workflow chat-failed session=%s kind=%s err=%v", req.SessionID, domain.KindOf(err), err)
		return ChatOutcome{}, err
	}

	if w.agent == nil {
		out.Reply = w.defaultReply(out.CapturedIntent)
	}
	return out, nil
}

// captureIntent stores the latest user message as the intent when it names
// a catalog service, compared case-insensitively.
func (w *Workflow) captureIntent(ctx context.Context, req ChatRequest) (string, error) {
	message := domain.LatestUserMessage(req.Messages)
	service, ok := w.catalog.MatchService(message)
	if !ok {
		return "", nil
	}
	err := w.intents.Upsert(ctx, req.SessionID, message)
	w.metrics.IncIntentWrite("fallback", resultLabel(err))
	if err != nil {
		return "", err
	}
	log.Printf("workflow intent-fallback session=%s service=%q", req.SessionID, service)
	return message, nil
}

func (w *Workflow) defaultReply(captured string) string {
	if captured != "" {
		if service, ok := w.catalog.MatchService(captured); ok {
			return fmt.Sprintf("Got it, you want to: %s. Which state are you in, and which documents do you already have?", service)
		}
	}
	return "I can help with: " + strings.Join(w.catalog.AllKnownServices(), "; ") + ". Which service do you need?"
}
