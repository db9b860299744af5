// Package documents renders estimates and invoices to PDF.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the document type as printed on the artifact.
type Kind string

const (
	KindEstimate Kind = "Estimate"
	KindInvoice  Kind = "Invoice"
)

// Line is one printed row.
type Line struct {
	Name        string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Deposit is printed when an invoice asks for one.
type Deposit struct {
	Required decimal.Decimal
	Paid     decimal.Decimal
}

// Profit is printed only on internal copies.
type Profit struct {
	CostSubtotal  decimal.Decimal
	Profit        decimal.Decimal
	MarginPercent decimal.Decimal
}

// Document is the structured input to a Renderer.
type Document struct {
	Kind           Kind
	Number         string
	Status         string
	IssuedAt       time.Time
	DueDate        *time.Time
	ClientName     string
	ClientEmail    string
	ClientCompany  string
	Lines          []Line
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	BalanceDue     *decimal.Decimal
	Deposit        *Deposit
	Profit         *Profit
	Notes          string
}

// Filename is the attachment name, e.g. Estimate-EST-1001.pdf.
func (d Document) Filename() string {
	return fmt.Sprintf("%s-%s.pdf", d.Kind, d.Number)
}

// Renderer turns a Document into a PDF.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}
