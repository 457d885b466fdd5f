// Package notify delivers the rendered digest by email.
package notify

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/tasman/usajobs-digest/internal/config"
	"github.com/tasman/usajobs-digest/internal/errs"
	"github.com/tasman/usajobs-digest/internal/logger"
)

const mimeBoundary = "DigestBoundary314159265"

// Service sends the report to the configured recipient over SMTP.
type Service struct {
	cfg config.MailConfig
}

// NewService creates a new mail service
func NewService(cfg config.MailConfig) *Service {
	return &Service{cfg: cfg}
}

// Send composes a multipart message with the body text and the report
// artifact attached, and delivers it to the recipient. The artifact stays
// on disk regardless, as a fallback record if delivery fails.
func (s *Service) Send(recipient, subject, body, attachmentPath string) error {
	attachment, err := os.ReadFile(attachmentPath)
	if err != nil {
		return errs.Mark(errs.Wrapf(err, "reading attachment %s", attachmentPath), errs.ErrDelivery)
	}

	msg := buildMessage(s.cfg.From, recipient, subject, body, filepath.Base(attachmentPath), attachment)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	switch s.cfg.TLS {
	case "tls":
		err = s.sendWithTLS(addr, auth, recipient, msg)
	case "starttls":
		err = s.sendWithStartTLS(addr, auth, recipient, msg)
	default: // "none"
		err = smtp.SendMail(addr, auth, s.cfg.From, []string{recipient}, []byte(msg))
	}
	if err != nil {
		return errs.Mark(errs.Wrapf(err, "sending mail via %s", addr), errs.ErrDelivery)
	}

	logger.Log.Infow("report delivered", "recipient", recipient, "subject", subject)
	return nil
}

// buildMessage assembles the multipart/mixed MIME message: plain-text body
// plus the report artifact as a base64 attachment.
func buildMessage(from, to, subject, body, filename string, attachment []byte) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", mimeBoundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
	msg.WriteString("Content-Type: application/octet-stream\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", filename))
	msg.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString(attachment)
	// RFC 2045 caps encoded lines at 76 characters.
	for len(encoded) > 76 {
		msg.WriteString(encoded[:76])
		msg.WriteString("\r\n")
		encoded = encoded[76:]
	}
	msg.WriteString(encoded)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", mimeBoundary))
	return msg.String()
}

// sendWithTLS sends over implicit TLS (port 465).
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, recipient, msg string) error {
	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("SMTP client failed: %w", err)
	}
	defer client.Close()

	return s.transmit(client, auth, recipient, msg)
}

// sendWithStartTLS sends using STARTTLS (port 587).
func (s *Service) sendWithStartTLS(addr string, auth smtp.Auth, recipient, msg string) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("STARTTLS failed: %w", err)
	}

	return s.transmit(client, auth, recipient, msg)
}

func (s *Service) transmit(client *smtp.Client, auth smtp.Auth, recipient, msg string) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL failed: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("SMTP RCPT failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("SMTP write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP close failed: %w", err)
	}

	return client.Quit()
}
