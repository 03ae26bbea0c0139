package notify

import (
	"context"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"senfret/internal/logging"
	"senfret/internal/models"
)

type Mailer interface {
	Send(ctx context.Context, job models.EmailJob) error
}

// SMTPMailer sends plain text mails through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, user, password), from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, job models.EmailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", job.To)
	msg.SetHeader("Subject", job.Subject)
	msg.SetBody("text/plain", job.Body)
	return m.dialer.DialAndSend(msg)
}

// LogMailer only logs mails; used when no SMTP relay is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{log: logging.New("mailer")}
}

func (m *LogMailer) Send(_ context.Context, job models.EmailJob) error {
	m.log.Info().Str("to", job.To).Str("subject", job.Subject).Msg("mail not sent, smtp disabled")
	return nil
}
