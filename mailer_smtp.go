package accounts

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPConfig holds transport connection options.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLSMode is one of "tls", "starttls" (default), or "plain".
	TLSMode string
}

type smtpTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport delivers mail over SMTP.
func NewSMTPTransport(cfg SMTPConfig) Transport {
	return &smtpTransport{cfg: cfg}
}

func (t *smtpTransport) Send(ctx context.Context, mail Mail) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before mail dispatch")
	default:
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	client, err := t.connect(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(mail.From); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := client.Rcpt(mail.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}

	if _, err := writer.Write([]byte(buildMessage(mail))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	if err := client.Quit(); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}

func (t *smtpTransport) connect(addr string) (*smtp.Client, error) {
	tlsMode := t.cfg.TLSMode
	if tlsMode == "" {
		tlsMode = "starttls"
	}

	switch tlsMode {
	case "tls":
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12})
		if err != nil {
			return nil, fmt.Errorf("smtp tls dial: %w", err)
		}
		client, err := smtp.NewClient(conn, t.cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("smtp client: %w", err)
		}
		return client, nil
	default:
		client, err := smtp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("smtp dial: %w", err)
		}
		if tlsMode == "starttls" {
			if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
		return client, nil
	}
}

func buildMessage(mail Mail) string {
	contentType := "text/plain; charset=utf-8"
	if mail.HTML {
		contentType = "text/html; charset=utf-8"
	}

	lines := []string{
		"From: " + mail.From,
		"To: " + mail.To,
		"Subject: " + mail.Subject,
		"MIME-Version: 1.0",
		"Content-Type: " + contentType,
		"",
		mail.Body,
	}
	return strings.Join(lines, "\r\n")
}

// NewLogTransport writes mail to the logger instead of the network, useful
// during development.
func NewLogTransport(logger Logger) Transport {
	if logger == nil {
		logger = defLogger{}
	}
	return TransportFunc(func(ctx context.Context, mail Mail) error {
		logger.Info("mail to=%s subject=%q", mail.To, mail.Subject)
		logger.Debug("mail body:\n%s", mail.Body)
		return nil
	})
}
