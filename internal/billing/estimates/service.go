package estimates

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
	"github.com/SGK112/CRM-sub002/internal/catalog"
	"github.com/SGK112/CRM-sub002/internal/clients"
	"github.com/SGK112/CRM-sub002/internal/documents"
	"github.com/SGK112/CRM-sub002/internal/notify"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

// NumberPrefix prefixes estimate numbers.
const NumberPrefix = "EST"

var (
	ErrInvalidStatus = fmt.Errorf("%w: invalid estimate status transition", httpx.ErrConflict)

	defaultMargin   = decimal.NewFromInt(50)
	defaultQuantity = decimal.NewFromInt(1)
)

// CatalogLookup prefills line items from the price catalog.
type CatalogLookup interface {
	Lookup(ctx context.Context, workspaceID, id int64) (*catalog.PriceItem, error)
}

// ClientDirectory resolves the client a document is addressed to.
type ClientDirectory interface {
	Get(ctx context.Context, workspaceID, id int64) (*clients.Client, error)
}

// Dependencies wires a Service.
type Dependencies struct {
	Repo        Repository
	Catalog     CatalogLookup
	Clients     ClientDirectory
	Renderer    documents.Renderer
	Notifier    notify.Notifier
	Numbering   numbering.Config
	Recorder    numbering.Recorder
	Logger      *slog.Logger
	CompanyName string
}

// Service is the estimate lifecycle manager.
type Service struct {
	repo     Repository
	numbers  *numbering.Sequence
	catalog  CatalogLookup
	clients  ClientDirectory
	renderer documents.Renderer
	notifier notify.Notifier
	validate *validator.Validate
	logger   *slog.Logger
	company  string
	now      func() time.Time
	newToken func() (string, error)
}

func NewService(deps Dependencies) *Service {
	company := deps.CompanyName
	if company == "" {
		company = "Remodely CRM"
	}
	return &Service{
		repo:     deps.Repo,
		numbers:  numbering.NewSequence(NumberPrefix, deps.Repo, deps.Numbering, deps.Recorder),
		catalog:  deps.Catalog,
		clients:  deps.Clients,
		renderer: deps.Renderer,
		notifier: deps.Notifier,
		validate: shared.NewValidator(),
		logger:   deps.Logger,
		company:  company,
		now:      time.Now,
		newToken: NewShareToken,
	}
}

// Create builds a draft estimate, prices it and assigns its number.
// Nothing is written when numbering is exhausted.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateEstimateRequest) (*Estimate, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	discountType := pricing.DiscountPercent
	if req.DiscountType != nil {
		discountType = *req.DiscountType
	}
	if err := validateMoneyConfig(discountType, req.DiscountValue, req.TaxRate, req.DepositRequired); err != nil {
		return nil, err
	}
	if _, err := s.clients.Get(ctx, ident.WorkspaceID, req.ClientID); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %d does not exist", httpx.ErrValidation, req.ClientID)
		}
		return nil, fmt.Errorf("verify client: %w", err)
	}

	items, err := s.buildItems(ctx, ident.WorkspaceID, req.Items, true)
	if err != nil {
		return nil, err
	}
	token, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate share token: %w", err)
	}

	est := &Estimate{
		WorkspaceID:     ident.WorkspaceID,
		ClientID:        req.ClientID,
		ProjectID:       req.ProjectID,
		Items:           items,
		DiscountType:    discountType,
		DiscountValue:   valueOr(req.DiscountValue, decimal.Zero),
		TaxRate:         valueOr(req.TaxRate, decimal.Zero),
		DepositRequired: valueOr(req.DepositRequired, decimal.Zero),
		Status:          StatusDraft,
		ShareToken:      token,
		CreatedBy:       ident.UserID,
	}
	if req.Notes != nil {
		est.Notes = *req.Notes
	}
	est.Recalculate()

	_, err = s.numbers.Assign(ctx, ident.WorkspaceID, func(ctx context.Context, number string) error {
		est.Number = number
		return s.repo.Create(ctx, est)
	})
	if err != nil {
		return nil, fmt.Errorf("create estimate: %w", err)
	}
	return est, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, id int64) (*Estimate, error) {
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	return est, nil
}

func (s *Service) List(ctx context.Context, req ListEstimatesRequest) ([]Estimate, shared.Pagination, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, *req.Status)
	}
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list estimates: %w", err)
	}
	return items, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// Update replaces the item list when given, applies any supplied pricing
// settings and recalculates before persisting.
func (s *Service) Update(ctx context.Context, workspaceID, id int64, req UpdateEstimateRequest) (*Estimate, error) {
	if err := shared.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	if est.Status == StatusConverted {
		return nil, fmt.Errorf("%w: converted estimates are read-only", ErrInvalidStatus)
	}

	discountType := est.DiscountType
	if req.DiscountType != nil {
		discountType = *req.DiscountType
	}
	discountValue := valueOr(req.DiscountValue, est.DiscountValue)
	if err := validateMoneyConfig(discountType, &discountValue, req.TaxRate, req.DepositRequired); err != nil {
		return nil, err
	}

	if req.Items != nil {
		items, err := s.buildItems(ctx, workspaceID, *req.Items, false)
		if err != nil {
			return nil, err
		}
		est.Items = items
	}
	est.DiscountType = discountType
	est.DiscountValue = discountValue
	if req.TaxRate != nil {
		est.TaxRate = *req.TaxRate
	}
	if req.DepositRequired != nil {
		est.DepositRequired = *req.DepositRequired
	}
	if req.Notes != nil {
		est.Notes = *req.Notes
	}
	est.Recalculate()

	if err := s.repo.Update(ctx, est); err != nil {
		return nil, fmt.Errorf("update estimate: %w", err)
	}
	return est, nil
}

// Recalc recomputes and persists totals without touching status.
func (s *Service) Recalc(ctx context.Context, workspaceID, id int64) (*Estimate, error) {
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	est.Recalculate()
	if err := s.repo.Update(ctx, est); err != nil {
		return nil, fmt.Errorf("recalc estimate: %w", err)
	}
	return est, nil
}

// Send moves a draft to sent and then emails the rendered estimate to the
// client. Sending a non-draft only re-attempts delivery.
func (s *Service) Send(ctx context.Context, workspaceID, id int64) (*TransitionResult, error) {
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	res := &TransitionResult{Estimate: est}
	if est.Status == StatusDraft {
		now := s.now()
		est, err = s.repo.UpdateStatus(ctx, workspaceID, id, StatusSent, &now)
		if err != nil {
			return nil, fmt.Errorf("mark estimate sent: %w", err)
		}
		res.Estimate = est
		res.Transitioned = true
	}
	res.Delivery = s.deliver(ctx, est, true,
		fmt.Sprintf("Your Estimate from %s (#%s)", s.company, est.Number),
		"Please find your estimate attached.")
	return res, nil
}

// Accept records the client's acceptance and notifies them.
func (s *Service) Accept(ctx context.Context, workspaceID, id int64) (*TransitionResult, error) {
	est, err := s.decide(ctx, workspaceID, id, StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{
		Estimate:     est,
		Transitioned: true,
		Delivery: s.deliver(ctx, est, false,
			fmt.Sprintf("Estimate #%s accepted", est.Number),
			fmt.Sprintf("Thank you for accepting estimate #%s. We will be in touch with next steps.", est.Number)),
	}, nil
}

// Reject records the client's rejection.
func (s *Service) Reject(ctx context.Context, workspaceID, id int64) (*Estimate, error) {
	return s.decide(ctx, workspaceID, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, workspaceID, id int64, to Status) (*Estimate, error) {
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	if est.Status != StatusDraft && est.Status != StatusSent {
		return nil, fmt.Errorf("%w: can only mark draft or sent estimates %s, estimate is %s", ErrInvalidStatus, to, est.Status)
	}
	est, err = s.repo.UpdateStatus(ctx, workspaceID, id, to, nil)
	if err != nil {
		return nil, fmt.Errorf("mark estimate %s: %w", to, err)
	}
	return est, nil
}

// SetStatus overrides the status without checking the transition. Only
// conversion may set converted, and a converted estimate stays converted.
func (s *Service) SetStatus(ctx context.Context, workspaceID, id int64, status Status) (*Estimate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, status)
	}
	if status == StatusConverted {
		return nil, fmt.Errorf("%w: converted is set by conversion only", ErrInvalidStatus)
	}
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	if est.Status == StatusConverted {
		return nil, fmt.Errorf("%w: estimate already converted", ErrInvalidStatus)
	}
	var sentAt *time.Time
	if status == StatusSent {
		now := s.now()
		sentAt = &now
	}
	est, err = s.repo.UpdateStatus(ctx, workspaceID, id, status, sentAt)
	if err != nil {
		return nil, fmt.Errorf("set estimate status: %w", err)
	}
	return est, nil
}

// MarkConverted flags the estimate as materialized into an invoice.
func (s *Service) MarkConverted(ctx context.Context, workspaceID, id int64) (*Estimate, error) {
	est, err := s.repo.UpdateStatus(ctx, workspaceID, id, StatusConverted, nil)
	if err != nil {
		return nil, fmt.Errorf("mark estimate converted: %w", err)
	}
	return est, nil
}

// PDF renders the estimate. Renderer failures are returned.
func (s *Service) PDF(ctx context.Context, workspaceID, id int64) ([]byte, string, error) {
	est, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, "", fmt.Errorf("get estimate: %w", err)
	}
	est.Recalculate()
	client := s.lookupClient(ctx, est)
	doc := BuildDocument(est, client)
	pdf, err := s.renderer.Render(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("render estimate: %w", err)
	}
	return pdf, doc.Filename(), nil
}

func (s *Service) Delete(ctx context.Context, workspaceID, id int64) error {
	if err := s.repo.Delete(ctx, workspaceID, id); err != nil {
		return fmt.Errorf("delete estimate: %w", err)
	}
	return nil
}

// deliver notifies the client. Every failure is logged and reported in the
// outcome, never returned.
func (s *Service) deliver(ctx context.Context, est *Estimate, attachPDF bool, subject, body string) notify.Outcome {
	client, err := s.clients.Get(ctx, est.WorkspaceID, est.ClientID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			s.logger.Warn("client lookup failed", slog.Int64("estimate_id", est.ID), slog.Any("error", err))
		}
		return notify.Skipped("client not available")
	}
	if client.Email == "" {
		return notify.Skipped("client has no email")
	}

	msg := notify.Message{
		To:      client.Email,
		Subject: subject,
		Body:    fmt.Sprintf("Hi %s,\n\n%s\n\n%s", client.DisplayName(), body, s.company),
	}
	if attachPDF {
		doc := BuildDocument(est, client)
		pdf, err := s.renderer.Render(ctx, doc)
		if err != nil {
			s.logger.Error("render estimate for delivery", slog.Int64("estimate_id", est.ID), slog.Any("error", err))
			return notify.Skipped("document rendering failed")
		}
		msg.Attachments = []notify.Attachment{{Filename: doc.Filename(), ContentType: "application/pdf", Content: pdf}}
	}

	if !s.notifier.Notify(ctx, msg) {
		return notify.Outcome{Attempted: true, Reason: "notification not accepted"}
	}
	return notify.Outcome{Attempted: true, Delivered: true}
}

func (s *Service) lookupClient(ctx context.Context, est *Estimate) *clients.Client {
	client, err := s.clients.Get(ctx, est.WorkspaceID, est.ClientID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			s.logger.Warn("client lookup failed", slog.Int64("estimate_id", est.ID), slog.Any("error", err))
		}
		return nil
	}
	return client
}

// buildItems applies catalog prefill (create only), explicit fields and defaults.
func (s *Service) buildItems(ctx context.Context, workspaceID int64, reqs []LineItemRequest, prefill bool) ([]LineItem, error) {
	items := make([]LineItem, 0, len(reqs))
	for i, r := range reqs {
		item := LineItem{CatalogRef: r.CatalogRef, Taxable: r.Taxable}
		var fromCatalog bool
		if prefill && r.CatalogRef != nil && s.catalog != nil {
			price, err := s.catalog.Lookup(ctx, workspaceID, *r.CatalogRef)
			switch {
			case err == nil:
				item.Name = price.Name
				item.SKU = price.SKU
				item.UnitCost = price.BaseCost
				item.MarginPct = price.DefaultMarginPct
				fromCatalog = true
			case errors.Is(err, httpx.ErrNotFound):
				// unknown entry, keep what the caller sent
			default:
				return nil, fmt.Errorf("line %d: catalog lookup: %w", i+1, err)
			}
		}
		if r.SKU != nil {
			item.SKU = *r.SKU
		}
		if r.Name != nil {
			item.Name = *r.Name
		}
		if r.Description != nil {
			item.Description = *r.Description
		}
		item.Quantity = valueOr(r.Quantity, defaultQuantity)
		if r.UnitCost != nil {
			item.UnitCost = *r.UnitCost
		}
		if r.MarginPct != nil {
			item.MarginPct = *r.MarginPct
		} else if !fromCatalog {
			item.MarginPct = defaultMargin
		}
		if item.Name == "" {
			item.Name = item.SKU
		}
		if item.Name == "" {
			item.Name = "Item"
		}
		items = append(items, item)
	}
	return items, nil
}

// BuildDocument maps an estimate onto the renderer input. A nil client is
// printed as "Client".
func BuildDocument(est *Estimate, client *clients.Client) documents.Document {
	doc := documents.Document{
		Kind:           documents.KindEstimate,
		Number:         est.Number,
		Status:         string(est.Status),
		IssuedAt:       est.CreatedAt,
		ClientName:     client.DisplayName(),
		Subtotal:       est.SubtotalSell,
		DiscountAmount: est.DiscountAmount,
		TaxRate:        est.TaxRate,
		TaxAmount:      est.TaxAmount,
		Total:          est.Total,
		Notes:          est.Notes,
	}
	if est.SentAt != nil {
		doc.IssuedAt = *est.SentAt
	}
	if client != nil {
		doc.ClientEmail = client.Email
		doc.ClientCompany = client.Company
	}
	if est.DepositRequired.IsPositive() {
		doc.Deposit = &documents.Deposit{Required: decimal.Min(est.DepositRequired, est.Total)}
	}
	for _, item := range est.Items {
		doc.Lines = append(doc.Lines, documents.Line{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.SellPrice,
			Total:       item.Total,
		})
	}
	return doc
}

func valueOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
