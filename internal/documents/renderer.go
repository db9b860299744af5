package documents

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTMLConverter converts an HTML page to PDF (Gotenberg in production).
type HTMLConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFRenderer renders documents through an HTML template.
type PDFRenderer struct {
	converter HTMLConverter
	tmpl      *template.Template
	company   string
}

// Options configures presentation.
type Options struct {
	CompanyName string
	Language    language.Tag
	Currency    currency.Unit
}

// NewPDFRenderer parses the embedded templates.
func NewPDFRenderer(converter HTMLConverter, opts Options) (*PDFRenderer, error) {
	if opts.Language == language.Und {
		opts.Language = language.AmericanEnglish
	}
	if opts.Currency == (currency.Unit{}) {
		opts.Currency = currency.USD
	}
	if opts.CompanyName == "" {
		opts.CompanyName = "Remodely CRM"
	}
	printer := message.NewPrinter(opts.Language)
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return printer.Sprintf("%v %.2f", opts.Currency, d.Round(2).InexactFloat64())
		},
		"qty": func(d decimal.Decimal) string {
			return d.String()
		},
		"pct": func(d decimal.Decimal) string {
			return d.String() + "%"
		},
		"date": func(t time.Time) string {
			return t.Format("January 2, 2006")
		},
		"positive": func(d decimal.Decimal) bool {
			return d.IsPositive()
		},
	}
	tmpl, err := template.New("document").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("documents: parse templates: %w", err)
	}
	return &PDFRenderer{converter: converter, tmpl: tmpl, company: opts.CompanyName}, nil
}

// HTML renders the document page without converting it.
func (r *PDFRenderer) HTML(doc Document) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Company string
		Doc     Document
	}{Company: r.company, Doc: doc}
	if err := r.tmpl.ExecuteTemplate(&buf, "document.html", data); err != nil {
		return "", fmt.Errorf("documents: execute template: %w", err)
	}
	return buf.String(), nil
}

// Render produces the PDF bytes.
func (r *PDFRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	html, err := r.HTML(doc)
	if err != nil {
		return nil, err
	}
	pdf, err := r.converter.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("documents: render %s %s: %w", doc.Kind, doc.Number, err)
	}
	return pdf, nil
}
