package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTP sends notifications via email. An empty password selects plain SMTP;
// otherwise SMTP/SSL (implicit TLS). UseSTARTTLS additionally upgrades a
// plain-SMTP session, matching the Python original's `use_tls` caller flag
// (spec §6).
type SMTP struct {
	host        string
	port        int
	sender      string
	recipient   string
	password    string
	useSTARTTLS bool
}

// NewSMTP constructs an SMTP sink from the five EMAIL_* environment
// variables of spec §6.
func NewSMTP(host string, port int, sender, recipient, password string, useSTARTTLS bool) *SMTP {
	return &SMTP{
		host:        host,
		port:        port,
		sender:      sender,
		recipient:   recipient,
		password:    password,
		useSTARTTLS: useSTARTTLS,
	}
}

func (s *SMTP) Name() string { return "email" }

func (s *SMTP) Send(_ context.Context, event Event) error {
	subject := formatTitle(event.Type)
	body := formatMessage(event)

	msg := "From: " + s.sender + "\r\n" +
		"To: " + s.recipient + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body

	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))

	var c *smtp.Client
	var err error

	if s.password == "" {
		c, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
	} else {
		conn, dialErr := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
		if dialErr != nil {
			return fmt.Errorf("smtp tls dial: %w", dialErr)
		}
		c, err = smtp.NewClient(conn, s.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp new client: %w", err)
		}
	}
	defer c.Close()

	if s.useSTARTTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if s.password != "" {
		auth := smtp.PlainAuth("", s.sender, s.password, s.host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(s.sender); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range strings.Split(s.recipient, ",") {
		rcpt = strings.TrimSpace(rcpt)
		if rcpt == "" {
			continue
		}
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt to: %w", err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return c.Quit()
}
