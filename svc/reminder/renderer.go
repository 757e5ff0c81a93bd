package reminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"math"
	"strings"
	texttemplate "text/template"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Fields are the values available to reminder templates.
type Fields struct {
	Name         string
	Email        string
	UID          int64
	MemberNumber string
	PlanName     string
	Expires      time.Time
	DaysLeft     int
	// Price is the renewal fee in the smallest currency unit.
	Price    int64
	RenewURL string
}

// Message is a rendered reminder.
type Message struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// Renderer turns Fields into a Message.
type Renderer interface {
	Render(ctx context.Context, f Fields) (Message, error)
}

const (
	defaultSubject = `Your {{.PlanName}} membership expires {{if le .DaysLeft 0}}today{{else}}in {{.DaysLeft}} days{{end}}`
	defaultHTML    = `<p>Hello {{.Name}},</p>
<p>Your {{.PlanName}} membership{{with .MemberNumber}} (no. {{.}}){{end}} expires on {{date .Expires}}.</p>
<p>Renewal costs {{money .Price}}.{{with .RenewURL}} <a href="{{.}}">Renew now</a>.{{end}}</p>`
	defaultText = `Hello {{.Name}},

Your {{.PlanName}} membership{{with .MemberNumber}} (no. {{.}}){{end}} expires on {{date .Expires}}.
Renewal costs {{money .Price}}.{{with .RenewURL}} Renew at {{.}}{{end}}
`
)

// TemplateRenderer renders reminders with html/template, formatting prices
// in the configured currency.
type TemplateRenderer struct {
	subject *texttemplate.Template
	html    *template.Template
	text    *texttemplate.Template
	money   func(int64) string
}

// RendererOption configures a TemplateRenderer.
type RendererOption func(*rendererConfig)

type rendererConfig struct {
	subject, html, text string
	lang                language.Tag
}

// WithTemplates overrides the subject, HTML body and text body templates.
// Empty values keep the defaults.
func WithTemplates(subject, html, text string) RendererOption {
	return func(c *rendererConfig) {
		if subject != "" {
			c.subject = subject
		}
		if html != "" {
			c.html = html
		}
		if text != "" {
			c.text = text
		}
	}
}

// WithLanguage sets the number formatting locale.
func WithLanguage(tag language.Tag) RendererOption {
	return func(c *rendererConfig) {
		c.lang = tag
	}
}

// NewTemplateRenderer parses the templates. currencyCode is an ISO 4217 code.
func NewTemplateRenderer(currencyCode string, opts ...RendererOption) (*TemplateRenderer, error) {
	cfg := rendererConfig{subject: defaultSubject, html: defaultHTML, text: defaultText, lang: language.English}
	for _, opt := range opts {
		opt(&cfg)
	}

	money, err := moneyFormatter(currencyCode, cfg.lang)
	if err != nil {
		return nil, err
	}
	funcs := map[string]any{
		"money": money,
		"date":  func(t time.Time) string { return t.Format("2 January 2006") },
	}

	r := &TemplateRenderer{money: money}
	if r.subject, err = texttemplate.New("subject").Funcs(funcs).Parse(cfg.subject); err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	if r.html, err = template.New("html").Funcs(funcs).Parse(cfg.html); err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	if r.text, err = texttemplate.New("text").Funcs(funcs).Parse(cfg.text); err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return r, nil
}

// FormatPrice formats an amount in the smallest currency unit.
func (r *TemplateRenderer) FormatPrice(amount int64) string {
	return r.money(amount)
}

func (r *TemplateRenderer) Render(_ context.Context, f Fields) (Message, error) {
	var subject, html, text bytes.Buffer
	if err := r.subject.Execute(&subject, f); err != nil {
		return Message{}, errors.Join(ErrRenderFailed, err)
	}
	if err := r.html.Execute(&html, f); err != nil {
		return Message{}, errors.Join(ErrRenderFailed, err)
	}
	if err := r.text.Execute(&text, f); err != nil {
		return Message{}, errors.Join(ErrRenderFailed, err)
	}
	return Message{
		Subject:  strings.TrimSpace(subject.String()),
		BodyHTML: html.String(),
		BodyText: text.String(),
	}, nil
}

func moneyFormatter(code string, lang language.Tag) (func(int64) string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	divisor := math.Pow10(scale)
	printer := message.NewPrinter(lang)
	return func(amount int64) string {
		return printer.Sprint(currency.Symbol(unit.Amount(float64(amount) / divisor)))
	}, nil
}
