package mailer

// file: internal/mailer/postmark.go

import (
	"context"
	"fmt"
	"html"

	"github.com/cockroachdb/errors"
	"github.com/mrz1836/postmark"
)

// DefaultSubject is the subject line of sign-in link emails.
const DefaultSubject = "Your sign-in link"

// PostmarkConfig configures delivery through Postmark.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	Subject      string
}

// postmarkAPI is the subset of *postmark.Client used here.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark sends sign-in links as transactional email.
type Postmark struct {
	client postmarkAPI
	cfg    PostmarkConfig
}

var _ Sender = (*Postmark)(nil)

// NewPostmark validates cfg and creates a Postmark sender.
func NewPostmark(cfg PostmarkConfig) (*Postmark, error) {
	if cfg.ServerToken == "" {
		return nil, errors.New("postmark server token is required")
	}
	if cfg.From == "" {
		return nil, errors.New("postmark sender address is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	return &Postmark{client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken), cfg: cfg}, nil
}

// SendSignInLink implements Sender.
func (p *Postmark) SendSignInLink(ctx context.Context, to, link string) error {
	body := fmt.Sprintf(`<p>Follow this link to sign in:</p><p><a href="%s">Sign in</a></p>`, html.EscapeString(link))
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.cfg.From,
		To:       to,
		Subject:  p.cfg.Subject,
		Tag:      "sign-in-link",
		HTMLBody: body,
		TextBody: "Follow this link to sign in: " + link,
	})
	if err != nil {
		return errors.Wrap(err, "postmark send failed")
	}
	if resp.ErrorCode > 0 {
		return errors.Newf("postmark error %d: %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
