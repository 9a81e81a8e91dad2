// Package mail sends rendered messages through a configured provider.
package mail

import (
	"context"
	"errors"
)

// Message is one rendered email to a single recipient.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
	// Tags label the message for provider-side analytics.
	Tags map[string]string
}

// Mailer delivers a message. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrInvalidMessage is returned before any network call when a message is incomplete.
var ErrInvalidMessage = errors.New("mail: message requires from, to, subject and a body")

func (m Message) validate() error {
	if m.From == "" || m.To == "" || m.Subject == "" || (m.HTML == "" && m.Text == "") {
		return ErrInvalidMessage
	}
	return nil
}
