package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/billing/numbering"
	"github.com/SGK112/CRM-sub002/internal/billing/pricing"
	"github.com/SGK112/CRM-sub002/internal/clients"
	"github.com/SGK112/CRM-sub002/internal/documents"
	"github.com/SGK112/CRM-sub002/internal/notify"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

// NumberPrefix prefixes invoice numbers.
const NumberPrefix = "INV"

var (
	ErrInvalidStatus = fmt.Errorf("%w: invalid invoice status transition", httpx.ErrConflict)

	defaultQuantity = decimal.NewFromInt(1)
)

// ClientDirectory resolves the client an invoice is addressed to.
type ClientDirectory interface {
	Get(ctx context.Context, workspaceID, id int64) (*clients.Client, error)
}

// PaymentRecorder observes recorded payments.
type PaymentRecorder interface {
	PaymentRecorded()
}

// Dependencies wires a Service.
type Dependencies struct {
	Repo        Repository
	Clients     ClientDirectory
	Renderer    documents.Renderer
	Notifier    notify.Notifier
	Numbering   numbering.Config
	Recorder    numbering.Recorder
	Payments    PaymentRecorder
	Logger      *slog.Logger
	CompanyName string
}

// Service is the invoice lifecycle manager.
type Service struct {
	repo     Repository
	numbers  *numbering.Sequence
	clients  ClientDirectory
	renderer documents.Renderer
	notifier notify.Notifier
	payments PaymentRecorder
	validate *validator.Validate
	logger   *slog.Logger
	company  string
	now      func() time.Time
}

func NewService(deps Dependencies) *Service {
	company := deps.CompanyName
	if company == "" {
		company = "Remodely CRM"
	}
	return &Service{
		repo:     deps.Repo,
		numbers:  numbering.NewSequence(NumberPrefix, deps.Repo, deps.Numbering, deps.Recorder),
		clients:  deps.Clients,
		renderer: deps.Renderer,
		notifier: deps.Notifier,
		payments: deps.Payments,
		validate: shared.NewValidator(),
		logger:   deps.Logger,
		company:  company,
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateInvoiceRequest) (*Invoice, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	var dueDate *time.Time
	if req.DueDate != nil {
		var err error
		if dueDate, err = parseDueDate(*req.DueDate); err != nil {
			return nil, err
		}
	}
	if _, err := s.clients.Get(ctx, ident.WorkspaceID, req.ClientID); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %d does not exist", httpx.ErrValidation, req.ClientID)
		}
		return nil, fmt.Errorf("verify client: %w", err)
	}

	inv := &Invoice{
		WorkspaceID:        ident.WorkspaceID,
		ClientID:           req.ClientID,
		ProjectID:          req.ProjectID,
		Items:              buildItems(req.Items),
		TaxRate:            valueOr(req.TaxRate, decimal.Zero),
		DepositRequired:    valueOr(req.DepositRequired, decimal.Zero),
		ShowDepositDetails: req.ShowDepositDetails,
		ShowProfitMetrics:  req.ShowProfitMetrics,
		Status:             StatusDraft,
		DueDate:            dueDate,
		CreatedBy:          ident.UserID,
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	if err := s.insert(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// CreateFromEstimate materializes an invoice for an estimate. When one
// already exists for the estimate it is returned with created=false.
func (s *Service) CreateFromEstimate(ctx context.Context, ident shared.Identity, src EstimateSource) (inv *Invoice, created bool, err error) {
	existing, err := s.repo.GetByEstimate(ctx, ident.WorkspaceID, src.EstimateID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, httpx.ErrNotFound):
		return nil, false, fmt.Errorf("find invoice for estimate: %w", err)
	}

	estimateID := src.EstimateID
	inv = &Invoice{
		WorkspaceID:        ident.WorkspaceID,
		ClientID:           src.ClientID,
		ProjectID:          src.ProjectID,
		EstimateID:         &estimateID,
		Items:              append([]LineItem(nil), src.Items...),
		TaxRate:            src.TaxRate,
		DepositRequired:    src.DepositRequired,
		ShowDepositDetails: src.DepositRequired.IsPositive(),
		Status:             StatusDraft,
		Notes:              src.Notes,
		CreatedBy:          ident.UserID,
	}
	if inv.Items == nil {
		inv.Items = []LineItem{}
	}
	err = s.insert(ctx, inv)
	if errors.Is(err, ErrAlreadyInvoiced) {
		// lost the race to a concurrent conversion
		existing, err := s.repo.GetByEstimate(ctx, ident.WorkspaceID, src.EstimateID)
		if err != nil {
			return nil, false, fmt.Errorf("find invoice for estimate: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return inv, true, nil
}

func (s *Service) insert(ctx context.Context, inv *Invoice) error {
	inv.Recalculate()
	_, err := s.numbers.Assign(ctx, inv.WorkspaceID, func(ctx context.Context, number string) error {
		inv.Number = number
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, workspaceID, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) GetByEstimate(ctx context.Context, workspaceID, estimateID int64) (*Invoice, error) {
	inv, err := s.repo.GetByEstimate(ctx, workspaceID, estimateID)
	if err != nil {
		return nil, fmt.Errorf("get invoice by estimate: %w", err)
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, shared.Pagination, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *req.Status)
	}
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list invoices: %w", err)
	}
	return items, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// Update applies the supplied fields and recalculates. Paid and void
// invoices are read-only.
func (s *Service) Update(ctx context.Context, workspaceID, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status.Closed() {
		return nil, fmt.Errorf("%w: %s invoices are read-only", ErrInvalidStatus, inv.Status)
	}

	if req.Items != nil {
		inv.Items = buildItems(*req.Items)
	}
	if req.TaxRate != nil {
		inv.TaxRate = *req.TaxRate
	}
	if req.DepositRequired != nil {
		inv.DepositRequired = *req.DepositRequired
	}
	if req.ShowDepositDetails != nil {
		inv.ShowDepositDetails = *req.ShowDepositDetails
	}
	if req.ShowProfitMetrics != nil {
		inv.ShowProfitMetrics = *req.ShowProfitMetrics
	}
	if req.DueDate != nil {
		if inv.DueDate, err = parseDueDate(*req.DueDate); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	inv.Recalculate()
	inv.settle()

	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// RecordPayment adds a positive amount to the paid accumulator and derives
// paid or partial. Overpayment is accepted and leaves a negative balance.
func (s *Service) RecordPayment(ctx context.Context, ident shared.Identity, id int64, req RecordPaymentRequest) (*Invoice, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	amount := pricing.Amount(req.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be at least 0.0001", httpx.ErrValidation)
	}
	paidAt := s.now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	inv, _, err := s.repo.RecordPayment(ctx, ident.WorkspaceID, id, func(inv *Invoice) (*Payment, error) {
		if inv.Status == StatusVoid {
			return nil, fmt.Errorf("%w: cannot record payment on void invoice", ErrInvalidStatus)
		}
		inv.ApplyPayment(amount)
		return &Payment{
			InvoiceID:   inv.ID,
			WorkspaceID: inv.WorkspaceID,
			Amount:      amount,
			Note:        req.Note,
			PaidAt:      paidAt,
			RecordedBy:  ident.UserID,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	if s.payments != nil {
		s.payments.PaymentRecorded()
	}
	return inv, nil
}

// Payments lists the payment history of an invoice.
func (s *Service) Payments(ctx context.Context, workspaceID, id int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, workspaceID, id); err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	payments, err := s.repo.Payments(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// Send moves a draft to sent and emails the invoice. Later sends only
// re-attempt delivery.
func (s *Service) Send(ctx context.Context, workspaceID, id int64) (*TransitionResult, error) {
	inv, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status == StatusVoid {
		return nil, fmt.Errorf("%w: cannot send void invoice", ErrInvalidStatus)
	}
	res := &TransitionResult{Invoice: inv}
	if inv.Status == StatusDraft {
		now := s.now()
		inv, err = s.repo.UpdateStatus(ctx, workspaceID, id, StatusSent, &now)
		if err != nil {
			return nil, fmt.Errorf("mark invoice sent: %w", err)
		}
		res.Invoice = inv
		res.Transitioned = true
	}
	res.Delivery = s.deliver(ctx, inv)
	return res, nil
}

// Void cancels an unpaid invoice. There is no way back.
func (s *Service) Void(ctx context.Context, workspaceID, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status.Closed() {
		return nil, fmt.Errorf("%w: cannot void %s invoice", ErrInvalidStatus, inv.Status)
	}
	inv, err = s.repo.UpdateStatus(ctx, workspaceID, id, StatusVoid, nil)
	if err != nil {
		return nil, fmt.Errorf("void invoice: %w", err)
	}
	return inv, nil
}

// PDF renders the invoice. Profit metrics are printed only on internal
// copies of invoices that enable them.
func (s *Service) PDF(ctx context.Context, workspaceID, id int64, internal bool) ([]byte, string, error) {
	inv, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, "", fmt.Errorf("get invoice: %w", err)
	}
	doc := BuildDocument(inv, s.lookupClient(ctx, inv), internal)
	pdf, err := s.renderer.Render(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("render invoice: %w", err)
	}
	return pdf, doc.Filename(), nil
}

func (s *Service) Delete(ctx context.Context, workspaceID, id int64) error {
	if err := s.repo.Delete(ctx, workspaceID, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, inv *Invoice) notify.Outcome {
	client := s.lookupClient(ctx, inv)
	if client == nil {
		return notify.Skipped("client not available")
	}
	if client.Email == "" {
		return notify.Skipped("client has no email")
	}
	doc := BuildDocument(inv, client, false)
	pdf, err := s.renderer.Render(ctx, doc)
	if err != nil {
		s.logger.Error("render invoice for delivery", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		return notify.Skipped("document rendering failed")
	}
	ok := s.notifier.Notify(ctx, notify.Message{
		To:      client.Email,
		Subject: fmt.Sprintf("Your Invoice from %s (#%s)", s.company, inv.Number),
		Body:    fmt.Sprintf("Hi %s,\n\nPlease find your invoice attached.\n\n%s", client.DisplayName(), s.company),
		Attachments: []notify.Attachment{
			{Filename: doc.Filename(), ContentType: "application/pdf", Content: pdf},
		},
	})
	if !ok {
		return notify.Outcome{Attempted: true, Reason: "notification not accepted"}
	}
	return notify.Outcome{Attempted: true, Delivered: true}
}

func (s *Service) lookupClient(ctx context.Context, inv *Invoice) *clients.Client {
	client, err := s.clients.Get(ctx, inv.WorkspaceID, inv.ClientID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			s.logger.Warn("client lookup failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		}
		return nil
	}
	return client
}

func buildItems(reqs []LineItemRequest) []LineItem {
	items := make([]LineItem, 0, len(reqs))
	for _, r := range reqs {
		item := LineItem{
			Name:        r.Name,
			Description: r.Description,
			Quantity:    valueOr(r.Quantity, defaultQuantity),
			UnitPrice:   valueOr(r.UnitPrice, decimal.Zero),
			Taxable:     r.Taxable,
			CostPrice:   r.CostPrice,
		}
		if item.Name == "" {
			item.Name = "Item"
		}
		items = append(items, item)
	}
	return items
}

// BuildDocument maps an invoice onto the renderer input.
func BuildDocument(inv *Invoice, client *clients.Client, internal bool) documents.Document {
	balance := inv.BalanceRemaining
	doc := documents.Document{
		Kind:       documents.KindInvoice,
		Number:     inv.Number,
		Status:     string(inv.Status),
		IssuedAt:   inv.CreatedAt,
		DueDate:    inv.DueDate,
		ClientName: client.DisplayName(),
		Subtotal:   inv.Subtotal,
		TaxRate:    inv.TaxRate,
		TaxAmount:  inv.TaxAmount,
		Total:      inv.Total,
		AmountPaid: inv.AmountPaid,
		BalanceDue: &balance,
		Notes:      inv.Notes,
	}
	if inv.SentAt != nil {
		doc.IssuedAt = *inv.SentAt
	}
	if client != nil {
		doc.ClientEmail = client.Email
		doc.ClientCompany = client.Company
	}
	if inv.ShowDepositDetails && inv.DepositRequired.IsPositive() {
		doc.Deposit = &documents.Deposit{Required: inv.DepositRequired, Paid: inv.DepositPaid}
	}
	for _, item := range inv.Items {
		doc.Lines = append(doc.Lines, documents.Line{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	if internal && inv.ShowProfitMetrics {
		view := *inv
		view.Items = append([]LineItem(nil), inv.Items...)
		if p := view.Recalculate(); p != nil {
			doc.Profit = &documents.Profit{CostSubtotal: p.CostSubtotal, Profit: p.Profit, MarginPercent: p.MarginPercent}
		}
	}
	return doc
}

func valueOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
