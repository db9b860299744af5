// Package conversion materializes invoices from estimates.
//
// Conversion is two writes without a shared transaction: the invoice is
// stored first and the estimate is marked converted afterwards. The unique
// estimate id on invoices makes a retry after a partial failure return the
// invoice that already exists.
package conversion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SGK112/CRM-sub002/internal/billing/estimates"
	"github.com/SGK112/CRM-sub002/internal/billing/invoices"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

// EstimateManager is the part of the estimate service conversion uses.
type EstimateManager interface {
	Get(ctx context.Context, workspaceID, id int64) (*estimates.Estimate, error)
	MarkConverted(ctx context.Context, workspaceID, id int64) (*estimates.Estimate, error)
}

// InvoiceManager is the part of the invoice service conversion uses.
type InvoiceManager interface {
	CreateFromEstimate(ctx context.Context, ident shared.Identity, src invoices.EstimateSource) (*invoices.Invoice, bool, error)
}

// Recorder observes conversion outcomes.
type Recorder interface {
	ConversionResult(outcome string)
}

type Service struct {
	estimates EstimateManager
	invoices  InvoiceManager
	recorder  Recorder
	logger    *slog.Logger
}

// NewService constructs a Service. recorder may be nil.
func NewService(est EstimateManager, inv InvoiceManager, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{estimates: est, invoices: inv, recorder: recorder, logger: logger}
}

// Convert returns the invoice for the estimate, creating it on first call.
// The estimate is marked converted only once the invoice is stored.
func (s *Service) Convert(ctx context.Context, ident shared.Identity, estimateID int64) (*invoices.Invoice, error) {
	est, err := s.estimates.Get(ctx, ident.WorkspaceID, estimateID)
	if err != nil {
		s.record("failed")
		return nil, fmt.Errorf("load estimate: %w", err)
	}

	inv, created, err := s.invoices.CreateFromEstimate(ctx, ident, Source(est))
	if err != nil {
		s.record("failed")
		return nil, fmt.Errorf("convert estimate %s: %w", est.Number, err)
	}

	if est.Status != estimates.StatusConverted {
		if _, err := s.estimates.MarkConverted(ctx, ident.WorkspaceID, est.ID); err != nil {
			s.logger.Error("mark estimate converted",
				slog.Int64("estimate_id", est.ID),
				slog.Int64("invoice_id", inv.ID),
				slog.Any("error", err))
			s.record("mark_failed")
			return nil, fmt.Errorf("mark estimate %s converted: %w", est.Number, err)
		}
	}

	if created {
		s.logger.Info("estimate converted",
			slog.Int64("estimate_id", est.ID),
			slog.String("invoice", inv.Number))
		s.record("created")
	} else {
		s.record("existing")
	}
	return inv, nil
}

// Source maps an estimate onto invoice input. Each line keeps its sell
// price as the flat unit price.
func Source(est *estimates.Estimate) invoices.EstimateSource {
	priced := *est
	priced.Items = append([]estimates.LineItem(nil), est.Items...)
	priced.Recalculate()

	items := make([]invoices.LineItem, len(priced.Items))
	for i, item := range priced.Items {
		items[i] = invoices.LineItem{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.SellPrice,
			Taxable:     item.Taxable,
		}
	}
	return invoices.EstimateSource{
		EstimateID:      est.ID,
		ClientID:        est.ClientID,
		ProjectID:       est.ProjectID,
		Items:           items,
		TaxRate:         est.TaxRate,
		DepositRequired: est.DepositRequired,
		Notes:           est.Notes,
	}
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.ConversionResult(outcome)
	}
}
