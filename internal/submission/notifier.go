package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/6ixhq/creator/internal/mail"
	"github.com/6ixhq/creator/internal/model"
)

// Notifier は投稿を審査用の受信箱へメールで通知する。
type Notifier struct {
	sender mail.Sender
	inbox  string
}

// NewNotifier はNotifierを生成する。
func NewNotifier(sender mail.Sender, inbox string) *Notifier {
	return &Notifier{sender: sender, inbox: inbox}
}

// NotifyAd は広告出稿申し込みの通知メールを送る。返信先は申込者のアドレスになる。
func (n *Notifier) NotifyAd(ctx context.Context, s *model.AdSubmission) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s\n", s.BrandName)
	fmt.Fprintf(&b, "Contact: %s <%s>\n", s.ContactName, s.Email)
	fmt.Fprintf(&b, "Destination: %s (%s)\n", s.DestinationURL, reachability(s.DestinationReachable))
	fmt.Fprintf(&b, "Budget: %s\n", s.Budget)
	if s.UserID != "" {
		fmt.Fprintf(&b, "Account: %s\n", s.UserID)
	}
	fmt.Fprintf(&b, "Submission: %s\n", s.ID)
	if s.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Message)
	}

	return n.sender.Send(ctx, mail.Message{
		To:      []string{n.inbox},
		Subject: "New ad submission: " + s.BrandName,
		Text:    b.String(),
		ReplyTo: s.Email,
	})
}

// NotifySong は楽曲投稿の通知メールを送る。
func (n *Notifier) NotifySong(ctx context.Context, s *model.SongSubmission) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Artist: %s\n", s.ArtistName)
	fmt.Fprintf(&b, "Title: %s\n", s.SongTitle)
	fmt.Fprintf(&b, "Contact: %s\n", s.Email)
	fmt.Fprintf(&b, "Listen: %s\n", s.StreamingURL)
	if s.Genre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", s.Genre)
	}
	if s.UserID != "" {
		fmt.Fprintf(&b, "Account: %s\n", s.UserID)
	}
	fmt.Fprintf(&b, "Submission: %s\n", s.ID)
	if s.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Notes)
	}

	return n.sender.Send(ctx, mail.Message{
		To:      []string{n.inbox},
		Subject: fmt.Sprintf("New song submission: %s - %s", s.ArtistName, s.SongTitle),
		Text:    b.String(),
		ReplyTo: s.Email,
	})
}

func reachability(r *bool) string {
	switch {
	case r == nil:
		return "not checked"
	case *r:
		return "reachable"
	default:
		return "unreachable"
	}
}
