package estimates

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
	"github.com/SGK112/CRM-sub002/internal/catalog"
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
	mu             sync.Mutex
	nextID         int64
	rows           map[int64]*Estimate
	alwaysConflict bool
	statusErr      error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]*Estimate)}
}

func (m *memRepo) HighestNumber(ctx context.Context, ws int64, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best, found := int64(0), ""
	for _, e := range m.rows {
		if e.WorkspaceID != ws {
			continue
		}
		suffix, ok := strings.CutPrefix(e.Number, prefix+"-")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(suffix, 10, 64); err == nil && (found == "" || n > best) {
			best, found = n, e.Number
		}
	}
	return found, nil
}

func (m *memRepo) NumberTaken(ctx context.Context, ws int64, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.WorkspaceID == ws && e.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Create(ctx context.Context, e *Estimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alwaysConflict {
		return numbering.ErrConflict
	}
	for _, existing := range m.rows {
		if existing.WorkspaceID == e.WorkspaceID && existing.Number == e.Number {
			return numbering.ErrConflict
		}
	}
	m.nextID++
	e.ID = m.nextID
	e.CreatedAt = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	e.UpdatedAt = e.CreatedAt
	m.rows[e.ID] = clone(e)
	return nil
}

func (m *memRepo) Get(ctx context.Context, ws, id int64) (*Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.WorkspaceID != ws {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *memRepo) GetByShareToken(ctx context.Context, token string) (*Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ShareToken == token {
			return clone(e), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) List(ctx context.Context, req ListEstimatesRequest) ([]Estimate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Estimate
	for _, e := range m.rows {
		if e.WorkspaceID != req.WorkspaceID {
			continue
		}
		if req.Status != nil && e.Status != *req.Status {
			continue
		}
		if req.ClientID != nil && e.ClientID != *req.ClientID {
			continue
		}
		out = append(out, *clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memRepo) Update(ctx context.Context, e *Estimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[e.ID]
	if !ok || existing.WorkspaceID != e.WorkspaceID {
		return ErrNotFound
	}
	updated := clone(e)
	updated.Status = existing.Status
	updated.SentAt = existing.SentAt
	m.rows[e.ID] = updated
	return nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, ws, id int64, status Status, sentAt *time.Time) (*Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	e, ok := m.rows[id]
	if !ok || e.WorkspaceID != ws {
		return nil, ErrNotFound
	}
	e.Status = status
	if e.SentAt == nil && sentAt != nil {
		at := *sentAt
		e.SentAt = &at
	}
	return clone(e), nil
}

func (m *memRepo) Delete(ctx context.Context, ws, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.WorkspaceID != ws {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func clone(e *Estimate) *Estimate {
	c := *e
	c.Items = append([]LineItem(nil), e.Items...)
	return &c
}

type fakeCatalog map[int64]*catalog.PriceItem

func (f fakeCatalog) Lookup(ctx context.Context, ws, id int64) (*catalog.PriceItem, error) {
	item, ok := f[id]
	if !ok || item.WorkspaceID != ws {
		return nil, httpx.ErrNotFound
	}
	return item, nil
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
	mu     sync.Mutex
	reject bool
	sent   []notify.Message
}

func (f *fakeNotifier) Notify(ctx context.Context, msg notify.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.sent = append(f.sent, msg)
	return true
}

type fixture struct {
	repo     *memRepo
	renderer *fakeRenderer
	notifier *fakeNotifier
	svc      *Service
}

var errRender = errors.New("gotenberg unavailable")

func newFixture() *fixture {
	f := &fixture{repo: newMemRepo(), renderer: &fakeRenderer{}, notifier: &fakeNotifier{}}
	f.svc = NewService(Dependencies{
		Repo: f.repo,
		Catalog: fakeCatalog{
			7: {ID: 7, WorkspaceID: 1, Name: "Quartz slab", SKU: "QZ-1", BaseCost: d("200"), DefaultMarginPct: d("30")},
			8: {ID: 8, WorkspaceID: 2, Name: "Foreign", SKU: "FX", BaseCost: d("1"), DefaultMarginPct: d("1")},
		},
		Clients: fakeClients{
			10: {ID: 10, WorkspaceID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
			11: {ID: 11, WorkspaceID: 1, Company: "No Mail Ltd"},
		},
		Renderer:    f.renderer,
		Notifier:    f.notifier,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		CompanyName: "Remodely",
	})
	f.svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return f
}
