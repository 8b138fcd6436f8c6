package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

// SlackNotifier posts one line per verified document to a staff channel.
type SlackNotifier struct {
	api       *slack.Client
	channelID string
}

func NewSlackNotifier(api *slack.Client, channelID string) *SlackNotifier {
	return &SlackNotifier{api: api, channelID: channelID}
}

func (s *SlackNotifier) DocumentVerified(ctx context.Context, ev VerificationEvent) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(FormatVerification(ev), false))
	if err != nil {
		log.Printf("notify slack-failed channel=%s session=%s err=%v", s.channelID, ev.SessionID, err)
		return fmt.Errorf("post slack message: %w", err)
	}
	log.Printf("notify slack channel=%s session=%s expected=%q", s.channelID, ev.SessionID, ev.ExpectedType)
	return nil
}

func FormatVerification(ev VerificationEvent) string {
	return fmt.Sprintf(":white_check_mark: Verified *%s* (`%s`) for session `%s` at %s",
		ev.ExpectedType, ev.Filename, ev.SessionID, ev.VerifiedAt.UTC().Format("2006-01-02 15:04 MST"))
}
