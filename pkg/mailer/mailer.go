// Package mailer delivers rendered invoices to patients over SMTP.
package mailer

import (
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Attachment struct {
	Filename    string
	ContentType string
	Body        []byte
}

type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

type Sender interface {
	Send(msg *Message) error
}

// dialer is the part of gomail.Dialer used here.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPSender struct {
	from   string
	dialer dialer
}

func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Send(msg *Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient address is required")
	}
	if err := s.dialer.DialAndSend(build(s.from, msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

func build(from string, msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if a := msg.Attachment; a != nil {
		m.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(a.Body)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}
	return m
}
