package invoices

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/billing/numbering"
	"github.com/SGK112/CRM-sub002/internal/clients"
	"github.com/SGK112/CRM-sub002/internal/documents"
	"github.com/SGK112/CRM-sub002/internal/notify"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func sp(s string) *string {
	return &s
}

type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*Invoice
	payments []Payment
	// beforeCreate runs inside Create before uniqueness checks.
	beforeCreate func(m *memRepo)
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]*Invoice)}
}

func (m *memRepo) HighestNumber(ctx context.Context, ws int64, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best, found := int64(0), ""
	for _, inv := range m.rows {
		if inv.WorkspaceID != ws {
			continue
		}
		suffix, ok := strings.CutPrefix(inv.Number, prefix+"-")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(suffix, 10, 64); err == nil && (found == "" || n > best) {
			best, found = n, inv.Number
		}
	}
	return found, nil
}

func (m *memRepo) NumberTaken(ctx context.Context, ws int64, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.rows {
		if inv.WorkspaceID == ws && inv.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Create(ctx context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hook := m.beforeCreate; hook != nil {
		m.beforeCreate = nil
		hook(m)
	}
	for _, existing := range m.rows {
		if existing.WorkspaceID != inv.WorkspaceID {
			continue
		}
		if existing.Number == inv.Number {
			return numbering.ErrConflict
		}
		if inv.EstimateID != nil && existing.EstimateID != nil && *existing.EstimateID == *inv.EstimateID {
			return ErrAlreadyInvoiced
		}
	}
	m.insertLocked(inv)
	return nil
}

func (m *memRepo) insertLocked(inv *Invoice) {
	m.nextID++
	inv.ID = m.nextID
	inv.CreatedAt = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	inv.UpdatedAt = inv.CreatedAt
	m.rows[inv.ID] = clone(inv)
}

func (m *memRepo) Get(ctx context.Context, ws, id int64) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok || inv.WorkspaceID != ws {
		return nil, ErrNotFound
	}
	return clone(inv), nil
}

func (m *memRepo) GetByEstimate(ctx context.Context, ws, estimateID int64) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.rows {
		if inv.WorkspaceID == ws && inv.EstimateID != nil && *inv.EstimateID == estimateID {
			return clone(inv), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.rows {
		if inv.WorkspaceID != req.WorkspaceID {
			continue
		}
		if req.Status != nil && inv.Status != *req.Status {
			continue
		}
		if req.ClientID != nil && inv.ClientID != *req.ClientID {
			continue
		}
		out = append(out, *clone(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memRepo) Update(ctx context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[inv.ID]
	if !ok || existing.WorkspaceID != inv.WorkspaceID {
		return ErrNotFound
	}
	m.rows[inv.ID] = clone(inv)
	return nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, ws, id int64, status Status, sentAt *time.Time) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok || inv.WorkspaceID != ws {
		return nil, ErrNotFound
	}
	inv.Status = status
	if inv.SentAt == nil && sentAt != nil {
		at := *sentAt
		inv.SentAt = &at
	}
	return clone(inv), nil
}

func (m *memRepo) RecordPayment(ctx context.Context, ws, id int64, fn PaymentFunc) (*Invoice, *Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[id]
	if !ok || stored.WorkspaceID != ws {
		return nil, nil, ErrNotFound
	}
	inv := clone(stored)
	payment, err := fn(inv)
	if err != nil {
		return nil, nil, err
	}
	payment.ID = int64(len(m.payments) + 1)
	payment.CreatedAt = payment.PaidAt
	m.payments = append(m.payments, *payment)
	m.rows[id] = clone(inv)
	return inv, payment, nil
}

func (m *memRepo) Payments(ctx context.Context, ws, invoiceID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.WorkspaceID == ws && p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) Delete(ctx context.Context, ws, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok || inv.WorkspaceID != ws {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) countByEstimate(estimateID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.rows {
		if inv.EstimateID != nil && *inv.EstimateID == estimateID {
			n++
		}
	}
	return n
}

func clone(inv *Invoice) *Invoice {
	c := *inv
	c.Items = append([]LineItem(nil), inv.Items...)
	return &c
}

type fakeClients map[int64]*clients.Client

func (f fakeClients) Get(ctx context.Context, ws, id int64) (*clients.Client, error) {
	c, ok := f[id]
	if !ok || c.WorkspaceID != ws {
		return nil, httpx.ErrNotFound
	}
	return c, nil
}

type fakeRenderer struct {
	mu   sync.Mutex
	err  error
	docs []documents.Document
}

func (f *fakeRenderer) Render(ctx context.Context, doc documents.Document) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, doc)
	return []byte("%PDF-" + doc.Number), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (f *fakeNotifier) Notify(ctx context.Context, msg notify.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return true
}

type countingPayments struct {
	mu sync.Mutex
	n  int
}

func (c *countingPayments) PaymentRecorded() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type fixture struct {
	repo     *memRepo
	renderer *fakeRenderer
	notifier *fakeNotifier
	payments *countingPayments
	svc      *Service
}

var errRender = errors.New("gotenberg unavailable")

func newFixture() *fixture {
	f := &fixture{repo: newMemRepo(), renderer: &fakeRenderer{}, notifier: &fakeNotifier{}, payments: &countingPayments{}}
	f.svc = NewService(Dependencies{
		Repo: f.repo,
		Clients: fakeClients{
			10: {ID: 10, WorkspaceID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		},
		Renderer:    f.renderer,
		Notifier:    f.notifier,
		Numbering:   numbering.Config{InsertRetries: 8},
		Payments:    f.payments,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		CompanyName: "Remodely",
	})
	f.svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return f
}
