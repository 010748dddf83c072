// Package mailer delivers emailed sign-in links for the in-process identity backend.
package mailer

// file: internal/mailer/mailer.go

import (
	"context"
	"sync"

	"github.com/dkoosis/authsession/internal/logging"
)

// Message is one emailed sign-in link.
type Message struct {
	To   string
	Link string
}

// Sender delivers sign-in links.
type Sender interface {
	SendSignInLink(ctx context.Context, to, link string) error
}

// Outbox logs every link and keeps it in memory. The interactive shell
// prints links from here when no real mail provider is configured.
type Outbox struct {
	logger logging.Logger

	mu       sync.Mutex
	messages []Message
}

var _ Sender = (*Outbox)(nil)

// NewOutbox returns an empty outbox.
func NewOutbox(logger logging.Logger) *Outbox {
	return &Outbox{logger: logging.OrNoop(logger).WithField("component", "mail_outbox")}
}

// SendSignInLink implements Sender.
func (o *Outbox) SendSignInLink(_ context.Context, to, link string) error {
	o.mu.Lock()
	o.messages = append(o.messages, Message{To: to, Link: link})
	o.mu.Unlock()
	o.logger.Info("Sign-in link queued.", "to", to, "link", link)
	return nil
}

// Last returns the most recent link sent to addr.
func (o *Outbox) Last(addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].To == addr {
			return o.messages[i], true
		}
	}
	return Message{}, false
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}
