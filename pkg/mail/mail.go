// Package mail sends transactional email to applicants.
package mail

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

// Message is a single outbound email.
type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// Validate reports whether the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To.Address) == "" {
		return errors.New("mail: recipient required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("mail: subject required")
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("mail: content required")
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
