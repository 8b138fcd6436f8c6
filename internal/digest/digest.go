package digest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"

	"dmvagent/internal/domain"
)

type SessionLister interface {
	ListUpdatedSince(ctx context.Context, since time.Time) ([]domain.Session, error)
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type TypeCount struct {
	ExpectedType string
	Count        int
}

// Digest summarizes the sessions touched in [From, To).
type Digest struct {
	From           time.Time
	To             time.Time
	ActiveSessions int
	WithIntent     int
	Verified       []TypeCount
	TotalVerified  int
}

// BuildDigest counts only documents verified inside the window; sessions
// updated in the window may carry older entries.
func BuildDigest(sessions []domain.Session, from, to time.Time) Digest {
	d := Digest{From: from, To: to}
	counts := map[string]int{}
	for _, s := range sessions {
		if s.UpdatedAt.Before(from) || !s.UpdatedAt.Before(to) {
			continue
		}
		d.ActiveSessions++
		if strings.TrimSpace(s.Intent) != "" {
			d.WithIntent++
		}
		for _, doc := range s.VerifiedDocuments {
			if doc.VerifiedAt.Before(from) || !doc.VerifiedAt.Before(to) {
				continue
			}
			counts[doc.ExpectedType]++
			d.TotalVerified++
		}
	}
	for t, n := range counts {
		d.Verified = append(d.Verified, TypeCount{ExpectedType: t, Count: n})
	}
	sort.Slice(d.Verified, func(i, j int) bool {
		if d.Verified[i].Count != d.Verified[j].Count {
			return d.Verified[i].Count > d.Verified[j].Count
		}
		return d.Verified[i].ExpectedType < d.Verified[j].ExpectedType
	})
	return d
}

func FormatDigest(d Digest, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Document verification digest* (%s - %s)\n",
		d.From.In(loc).Format("Jan 2 15:04"), d.To.In(loc).Format("Jan 2 15:04"))
	if d.ActiveSessions == 0 {
		b.WriteString("No session activity.")
		return b.String()
	}
	fmt.Fprintf(&b, "Active sessions: %d (%d with a declared service)\n", d.ActiveSessions, d.WithIntent)
	if d.TotalVerified == 0 {
		b.WriteString("No documents verified.")
		return b.String()
	}
	fmt.Fprintf(&b, "Verified documents: %d", d.TotalVerified)
	for _, tc := range d.Verified {
		fmt.Fprintf(&b, "\n- %s: %d", tc.ExpectedType, tc.Count)
	}
	return b.String()
}

// RunOnce builds and posts the digest for [from, to).
func RunOnce(ctx context.Context, sessions SessionLister, api poster, channelID string, from, to time.Time, loc *time.Location) (Digest, error) {
	list, err := sessions.ListUpdatedSince(ctx, from)
	if err != nil {
		return Digest{}, fmt.Errorf("list sessions: %w", err)
	}
	d := BuildDigest(list, from, to)
	if _, _, err := api.PostMessageContext(ctx, channelID, slack.MsgOptionText(FormatDigest(d, loc), false)); err != nil {
		return d, fmt.Errorf("post digest: %w", err)
	}
	return d, nil
}

// StartScheduler posts a digest on every tick of the standard 5-field cron
// schedule until ctx is cancelled. Each digest covers the time since the
// previous tick.
func StartScheduler(ctx context.Context, schedule string, loc *time.Location, sessions SessionLister, api poster, channelID string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(schedule))
	if err != nil {
		return fmt.Errorf("invalid digest_schedule '%s': %w", schedule, err)
	}
	if loc == nil {
		loc = time.Local
	}
	log.Printf("Digest scheduled (cron: %s) to channel %s", schedule, channelID)

	go func() {
		last := time.Now().In(loc)
		for {
			now := time.Now().In(loc)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Println("Digest scheduler stopped")
				return
			case <-timer.C:
			}

			to := time.Now().In(loc)
			d, err := RunOnce(ctx, sessions, api, channelID, last, to, loc)
			if err != nil {
				log.Printf("digest error: %v", err)
				continue
			}
			last = to
			log.Printf("digest posted sessions=%d verified=%d", d.ActiveSessions, d.TotalVerified)
		}
	}()
	return nil
}
