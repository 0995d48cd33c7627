package notification

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var catalogYAML []byte

// Template codes, one per notification the system emits.
const (
	CodeSessionScheduled   = "session_scheduled"
	CodeSessionRescheduled = "session_rescheduled"
	CodeCoachReassigned    = "coach_reassigned"
	CodeSessionCancelled   = "session_cancelled"
	CodeSessionReminder    = "session_reminder"
	CodePaymentRecovered   = "payment_recovered"
	CodeQueueItemCreated   = "queue_item_created"
)

// Channel names a delivery channel a template may target.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Template is one catalog entry. Subject, body and the WhatsApp line are
// text/template strings executed against a per-event data map.
type Template struct {
	Subject  string    `yaml:"subject"`
	Heading  string    `yaml:"heading"`
	Body     string    `yaml:"body"`
	CTALabel string    `yaml:"cta_label"`
	Channels []Channel `yaml:"channels"`
	WhatsApp string    `yaml:"whatsapp"`
}

// Catalog holds the full notification template set, loaded once at startup.
type Catalog struct {
	templates map[string]Template
}

type catalogFile struct {
	Templates map[string]Template `yaml:"templates"`
}

// LoadCatalog parses the embedded template catalog.
func LoadCatalog() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		return nil, fmt.Errorf("parse notification catalog: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("notification catalog is empty")
	}
	return &Catalog{templates: file.Templates}, nil
}

// Rendered is a catalog entry after template execution.
type Rendered struct {
	Subject  string
	Heading  string
	Body     string
	CTALabel string
	WhatsApp string
	Channels []Channel
}

// Render executes the named template against the given data.
func (c *Catalog) Render(code string, data map[string]any) (*Rendered, error) {
	tpl, ok := c.templates[code]
	if !ok {
		return nil, fmt.Errorf("unknown notification template %q", code)
	}

	subject, err := execute(code+".subject", tpl.Subject, data)
	if err != nil {
		return nil, err
	}
	body, err := execute(code+".body", tpl.Body, data)
	if err != nil {
		return nil, err
	}
	wa := ""
	if tpl.WhatsApp != "" {
		wa, err = execute(code+".whatsapp", tpl.WhatsApp, data)
		if err != nil {
			return nil, err
		}
	}

	return &Rendered{
		Subject:  subject,
		Heading:  tpl.Heading,
		Body:     body,
		CTALabel: tpl.CTALabel,
		WhatsApp: wa,
		Channels: tpl.Channels,
	}, nil
}

func execute(name, text string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
