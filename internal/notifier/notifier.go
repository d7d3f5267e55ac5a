package notifier

import (
	"fmt"
	"net/smtp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Notifier delivers one rendered message to one recipient. Email in
// production, console for dev and tests.
type Notifier interface {
	Notify(recipient, subject, body string) error
}

type ConsoleNotifier struct{}

func NewConsole() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (c *ConsoleNotifier) Notify(recipient, subject, body string) error {
	log.WithFields(log.Fields{"to": recipient, "subject": subject}).Info(body)
	return nil
}

// SMTPNotifier sends plain-text mail. No mail library is involved: the
// surface is one AUTH + one message per call.
type SMTPNotifier struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTP(host string, port int, user, pass, from string) *SMTPNotifier {
	return &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: smtp.PlainAuth("", user, pass, host),
		from: from,
	}
}

func (s *SMTPNotifier) Notify(recipient, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(s.addr, s.auth, s.from, []string{recipient}, []byte(msg))
}
