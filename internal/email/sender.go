// Package email delivers transactional mail over SMTP. Content is produced
// by the notification module; this package only wraps it in the shared HTML
// shell and hands it to the mail server.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"strings"
	"time"

	"tutorcoach_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is one rendered notification ready for delivery.
type Message struct {
	Subject  string
	Heading  string
	Body     string
	CTALabel string
	CTAURL   string
}

type emailData struct {
	Title      string
	Heading    string
	Paragraphs []string
	CTALabel   string
	CTAURL     string
}

// SMTPSender delivers mail via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a sender from config. Returns nil when no SMTP host
// is configured, which callers treat as the channel being disabled.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if cfg.GetSMTPHost() == "" {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

// Send renders the message into the HTML shell and delivers it.
func (s *SMTPSender) Send(ctx context.Context, toEmail string, m Message) error {
	if s == nil {
		return fmt.Errorf("smtp sender not configured")
	}

	content, err := render(m)
	if err != nil {
		return err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, content)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func render(m Message) (string, error) {
	tmpl, err := template.New("base.html").ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return "", fmt.Errorf("parse email template: %w", err)
	}

	data := emailData{
		Title:      m.Subject,
		Heading:    m.Heading,
		Paragraphs: splitParagraphs(m.Body),
		CTALabel:   m.CTALabel,
		CTAURL:     m.CTAURL,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template: %w", err)
	}
	return buf.String(), nil
}

func splitParagraphs(body string) []string {
	parts := strings.Split(body, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
