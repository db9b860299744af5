// Package share serves estimates to unauthenticated clients through their
// share token. The token is the only access control on this path.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/SGK112/CRM-sub002/internal/billing/estimates"
	"github.com/SGK112/CRM-sub002/internal/clients"
	"github.com/SGK112/CRM-sub002/internal/documents"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

// ErrNotFound hides whether a token is malformed, unknown or expired.
var ErrNotFound = fmt.Errorf("shared estimate %w", httpx.ErrNotFound)

const (
	defaultCacheTTL = 10 * time.Minute
	// renderTimeout bounds a shared render, which outlives the request
	// that started it.
	renderTimeout = 30 * time.Second
)

// EstimateStore finds an estimate by its exact share token.
type EstimateStore interface {
	GetByShareToken(ctx context.Context, token string) (*estimates.Estimate, error)
}

// ClientDirectory resolves the estimate's client.
type ClientDirectory interface {
	Get(ctx context.Context, workspaceID, id int64) (*clients.Client, error)
}

// CacheRecorder observes PDF cache hits and misses.
type CacheRecorder interface {
	ShareCacheResult(result string)
}

// ViewLine is a sell-side line. Cost and margin are never exposed.
type ViewLine struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type ClientView struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// EstimateView is the read-only projection served to share-link holders.
type EstimateView struct {
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	Items           []ViewLine      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	DepositRequired decimal.Decimal `json:"deposit_required"`
	Notes           string          `json:"notes,omitempty"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Client          ClientView      `json:"client"`
}

// Options configures a Gateway. Cache may be nil to disable PDF caching.
type Options struct {
	Store    EstimateStore
	Clients  ClientDirectory
	Renderer documents.Renderer
	Cache    redis.Cmdable
	CacheTTL time.Duration
	Recorder CacheRecorder
	Logger   *slog.Logger
}

// Gateway is the public share read path.
type Gateway struct {
	store    EstimateStore
	clients  ClientDirectory
	renderer documents.Renderer
	cache    redis.Cmdable
	ttl      time.Duration
	recorder CacheRecorder
	logger   *slog.Logger
	renders  singleflight.Group
}

func NewGateway(opts Options) *Gateway {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Gateway{
		store:    opts.Store,
		clients:  opts.Clients,
		renderer: opts.Renderer,
		cache:    opts.Cache,
		ttl:      ttl,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Lookup returns the projection of the estimate holding token.
func (g *Gateway) Lookup(ctx context.Context, token string) (*EstimateView, error) {
	est, client, err := g.load(ctx, token)
	if err != nil {
		return nil, err
	}
	return project(est, client), nil
}

// PDF renders the shared estimate. Rendered bytes are cached per token and
// revision, and concurrent renders of the same revision are collapsed.
func (g *Gateway) PDF(ctx context.Context, token string) ([]byte, string, error) {
	est, client, err := g.load(ctx, token)
	if err != nil {
		return nil, "", err
	}
	doc := estimates.BuildDocument(est, client)
	key := cacheKey(token, est.UpdatedAt)

	if pdf, ok := g.cached(ctx, key); ok {
		return pdf, doc.Filename(), nil
	}

	ch := g.renders.DoChan(key, func() (any, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()
		pdf, err := g.renderer.Render(renderCtx, doc)
		if err != nil {
			return nil, err
		}
		g.remember(renderCtx, key, pdf)
		return pdf, nil
	})
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, "", fmt.Errorf("render shared estimate: %w", res.Err)
		}
		return res.Val.([]byte), doc.Filename(), nil
	}
}

func (g *Gateway) load(ctx context.Context, token string) (*estimates.Estimate, *clients.Client, error) {
	if !estimates.IsShareToken(token) {
		return nil, nil, ErrNotFound
	}
	est, err := g.store.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("lookup shared estimate: %w", err)
	}
	if est.ShareToken != token {
		return nil, nil, ErrNotFound
	}
	est.Recalculate()

	client, err := g.clients.Get(ctx, est.WorkspaceID, est.ClientID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			g.logger.Warn("shared estimate client lookup failed", slog.Int64("estimate_id", est.ID), slog.Any("error", err))
		}
		client = nil
	}
	return est, client, nil
}

func (g *Gateway) cached(ctx context.Context, key string) ([]byte, bool) {
	if g.cache == nil {
		return nil, false
	}
	pdf, err := g.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		g.record("hit")
		return pdf, true
	case errors.Is(err, redis.Nil):
		g.record("miss")
	default:
		g.record("error")
		g.logger.Warn("share pdf cache read failed", slog.Any("error", err))
	}
	return nil, false
}

func (g *Gateway) remember(ctx context.Context, key string, pdf []byte) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, pdf, g.ttl).Err(); err != nil {
		g.logger.Warn("share pdf cache write failed", slog.Any("error", err))
	}
}

func (g *Gateway) record(result string) {
	if g.recorder != nil {
		g.recorder.ShareCacheResult(result)
	}
}

func cacheKey(token string, revision time.Time) string {
	return fmt.Sprintf("share:pdf:%s:%d", token, revision.UnixNano())
}

func project(est *estimates.Estimate, client *clients.Client) *EstimateView {
	view := &EstimateView{
		Number:          est.Number,
		Status:          string(est.Status),
		Items:           make([]ViewLine, 0, len(est.Items)),
		Subtotal:        est.SubtotalSell,
		DiscountAmount:  est.DiscountAmount,
		TaxRate:         est.TaxRate,
		TaxAmount:       est.TaxAmount,
		Total:           est.Total,
		DepositRequired: est.DepositRequired,
		Notes:           est.Notes,
		SentAt:          est.SentAt,
		CreatedAt:       est.CreatedAt,
		Client:          ClientView{Name: client.DisplayName()},
	}
	if client != nil {
		view.Client.Email = client.Email
		view.Client.Company = client.Company
	}
	for _, item := range est.Items {
		view.Items = append(view.Items, ViewLine{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.SellPrice,
			Total:       item.Total,
		})
	}
	return view
}
