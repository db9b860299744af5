package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureConverter struct {
	html string
	err  error
}

func (c *captureConverter) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	c.html = html
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-1.7"), nil
}

func sampleDocument() Document {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return Document{
		Kind:           KindEstimate,
		Number:         "EST-1001",
		IssuedAt:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        &due,
		ClientName:     "Ada Lovelace",
		ClientEmail:    "ada@example.com",
		Lines:          []Line{{Name: "Cabinet", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(150), Total: decimal.NewFromInt(300)}},
		Subtotal:       decimal.NewFromInt(300),
		DiscountAmount: decimal.NewFromInt(30),
		TaxRate:        decimal.NewFromInt(8),
		TaxAmount:      decimal.RequireFromString("21.6"),
		Total:          decimal.RequireFromString("291.6"),
		Notes:          "Thanks <3",
	}
}

func TestRenderProducesHTMLForConverter(t *testing.T) {
	conv := &captureConverter{}
	r, err := NewPDFRenderer(conv, Options{CompanyName: "Remodely"})
	require.NoError(t, err)

	pdf, err := r.Render(context.Background(), sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)

	assert.Contains(t, conv.html, "Estimate #EST-1001")
	assert.Contains(t, conv.html, "Ada Lovelace")
	assert.Contains(t, conv.html, "291.60")
	assert.Contains(t, conv.html, "Due March 1, 2026")
	assert.Contains(t, conv.html, "Thanks &lt;3")
	assert.NotContains(t, conv.html, "Margin")
}

func TestRenderShowsProfitOnlyWhenPresent(t *testing.T) {
	conv := &captureConverter{}
	r, err := NewPDFRenderer(conv, Options{})
	require.NoError(t, err)

	doc := sampleDocument()
	doc.Kind = KindInvoice
	doc.Profit = &Profit{CostSubtotal: decimal.NewFromInt(200), Profit: decimal.NewFromInt(100), MarginPercent: decimal.RequireFromString("33.33")}
	html, err := r.HTML(doc)
	require.NoError(t, err)
	assert.Contains(t, html, "Margin")
	assert.Contains(t, html, "33.33%")
}

func TestRenderWrapsConverterError(t *testing.T) {
	conv := &captureConverter{err: errors.New("gotenberg down")}
	r, err := NewPDFRenderer(conv, Options{})
	require.NoError(t, err)

	_, err = r.Render(context.Background(), sampleDocument())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EST-1001")
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Invoice-INV-1001.pdf", Document{Kind: KindInvoice, Number: "INV-1001"}.Filename())
}
