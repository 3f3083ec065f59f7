package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers the offline fallback for notifications: when the
// recipient has no live connection and the content service supplied a
// contact address, the notification goes out as email instead.
type Mailer interface {
	Send(to, subject, body string) error
}

type SendGrid struct {
	APIKey string
	From   string
}

// New returns nil when no API key is configured; callers treat a nil
// mailer as "fallback disabled".
func New(apiKey, from string) Mailer {
	if apiKey == "" {
		return nil
	}
	return &SendGrid{APIKey: apiKey, From: from}
}

func (s *SendGrid) Send(to, subject, body string) error {
	from := mail.NewEmail("Subhive", s.From)
	msg := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, body)

	client := sendgrid.NewSendClient(s.APIKey)
	resp, err := client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected mail: status %d", resp.StatusCode)
	}
	return nil
}
