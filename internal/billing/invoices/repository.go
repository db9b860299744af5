package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SGK112/CRM-sub002/internal/billing/numbering"
	"github.com/SGK112/CRM-sub002/internal/platform/db"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/internal/shared"
)

var (
	ErrNotFound = fmt.Errorf("invoice %w", httpx.ErrNotFound)
	// ErrAlreadyInvoiced is returned by Create when another invoice already
	// carries the same estimate id.
	ErrAlreadyInvoiced = fmt.Errorf("%w: estimate already invoiced", httpx.ErrDuplicate)
)

const (
	numberConstraint   = "invoices_workspace_number_key"
	estimateConstraint = "invoices_workspace_estimate_key"
)

// PaymentFunc mutates a locked invoice and returns the payment row to insert.
type PaymentFunc func(inv *Invoice) (*Payment, error)

// Repository persists invoices and their payments.
type Repository interface {
	numbering.Store
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, workspaceID, id int64) (*Invoice, error)
	GetByEstimate(ctx context.Context, workspaceID, estimateID int64) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	Update(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, workspaceID, id int64, status Status, sentAt *time.Time) (*Invoice, error)
	// RecordPayment locks the invoice row, applies fn and stores both the
	// invoice and the returned payment in one transaction.
	RecordPayment(ctx context.Context, workspaceID, id int64, fn PaymentFunc) (*Invoice, *Payment, error)
	Payments(ctx context.Context, workspaceID, invoiceID int64) ([]Payment, error)
	Delete(ctx context.Context, workspaceID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const invoiceColumns = `id, workspace_id, number, client_id, project_id, estimate_id, items,
	tax_rate, subtotal, tax_amount, total, amount_paid, balance_remaining,
	deposit_required, deposit_paid, show_deposit_details, show_profit_metrics,
	status, due_date, sent_at, notes, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.WorkspaceID, &inv.Number, &inv.ClientID, &inv.ProjectID, &inv.EstimateID, &inv.Items,
		&inv.TaxRate, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.AmountPaid, &inv.BalanceRemaining,
		&inv.DepositRequired, &inv.DepositPaid, &inv.ShowDepositDetails, &inv.ShowProfitMetrics,
		&inv.Status, &inv.DueDate, &inv.SentAt, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if inv.Items == nil {
		inv.Items = []LineItem{}
	}
	return &inv, nil
}

func (r *repository) HighestNumber(ctx context.Context, workspaceID int64, prefix string) (string, error) {
	const query = `SELECT number FROM invoices
		WHERE workspace_id = $1 AND number ~ ('^' || $2 || '-[0-9]+$')
		ORDER BY length(number) DESC, number DESC
		LIMIT 1`
	var number string
	err := r.pool.QueryRow(ctx, query, workspaceID, prefix).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *repository) NumberTaken(ctx context.Context, workspaceID int64, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE workspace_id = $1 AND number = $2)`,
		workspaceID, number).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, inv *Invoice) error {
	const query = `INSERT INTO invoices (
		workspace_id, number, client_id, project_id, estimate_id, items,
		tax_rate, subtotal, tax_amount, total, amount_paid, balance_remaining,
		deposit_required, deposit_paid, show_deposit_details, show_profit_metrics,
		status, due_date, notes, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		inv.WorkspaceID, inv.Number, inv.ClientID, inv.ProjectID, inv.EstimateID, inv.Items,
		inv.TaxRate, inv.Subtotal, inv.TaxAmount, inv.Total, inv.AmountPaid, inv.BalanceRemaining,
		inv.DepositRequired, inv.DepositPaid, inv.ShowDepositDetails, inv.ShowProfitMetrics,
		inv.Status, inv.DueDate, inv.Notes, inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, numberConstraint):
		return numbering.ErrConflict
	case db.IsUniqueViolation(err, estimateConstraint):
		return ErrAlreadyInvoiced
	default:
		return fmt.Errorf("insert invoice: %w", err)
	}
}

func (r *repository) Get(ctx context.Context, workspaceID, id int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE workspace_id = $1 AND id = $2`
	return scanInvoice(r.pool.QueryRow(ctx, query, workspaceID, id))
}

func (r *repository) GetByEstimate(ctx context.Context, workspaceID, estimateID int64) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE workspace_id = $1 AND estimate_id = $2`
	return scanInvoice(r.pool.QueryRow(ctx, query, workspaceID, estimateID))
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	conditions := []string{"workspace_id = $1"}
	args := []any{req.WorkspaceID}
	if req.ClientID != nil {
		args = append(args, *req.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, p.PerPage, shared.Offset(p.Page, p.PerPage))
	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

const updateInvoice = `UPDATE invoices SET
		items = $3, tax_rate = $4, subtotal = $5, tax_amount = $6, total = $7,
		amount_paid = $8, balance_remaining = $9, deposit_required = $10, deposit_paid = $11,
		show_deposit_details = $12, show_profit_metrics = $13, status = $14, due_date = $15,
		notes = $16, updated_at = now()
	WHERE workspace_id = $1 AND id = $2
	RETURNING updated_at`

func execUpdate(ctx context.Context, q db.DBTX, inv *Invoice) error {
	err := q.QueryRow(ctx, updateInvoice,
		inv.WorkspaceID, inv.ID, inv.Items, inv.TaxRate, inv.Subtotal, inv.TaxAmount, inv.Total,
		inv.AmountPaid, inv.BalanceRemaining, inv.DepositRequired, inv.DepositPaid,
		inv.ShowDepositDetails, inv.ShowProfitMetrics, inv.Status, inv.DueDate, inv.Notes,
	).Scan(&inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repository) Update(ctx context.Context, inv *Invoice) error {
	return execUpdate(ctx, r.pool, inv)
}

func (r *repository) UpdateStatus(ctx context.Context, workspaceID, id int64, status Status, sentAt *time.Time) (*Invoice, error) {
	query := `UPDATE invoices SET status = $3, sent_at = COALESCE(sent_at, $4), updated_at = now()
		WHERE workspace_id = $1 AND id = $2
		RETURNING ` + invoiceColumns
	return scanInvoice(r.pool.QueryRow(ctx, query, workspaceID, id, status, sentAt))
}

// paymentIsolation is ReadCommitted: the FOR UPDATE lock serializes
// concurrent payments and the waiter sees the committed accumulator.
const paymentIsolation = pgx.ReadCommitted

func (r *repository) RecordPayment(ctx context.Context, workspaceID, id int64, fn PaymentFunc) (*Invoice, *Payment, error) {
	var (
		inv     *Invoice
		payment *Payment
	)
	err := db.WithTxIsolation(ctx, r.pool, paymentIsolation, func(tx pgx.Tx) error {
		var err error
		query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE workspace_id = $1 AND id = $2 FOR UPDATE`
		inv, err = scanInvoice(tx.QueryRow(ctx, query, workspaceID, id))
		if err != nil {
			return err
		}
		payment, err = fn(inv)
		if err != nil {
			return err
		}
		if err := execUpdate(ctx, tx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		return tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, workspace_id, amount, note, paid_at, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			inv.ID, inv.WorkspaceID, payment.Amount, payment.Note, payment.PaidAt, payment.RecordedBy,
		).Scan(&payment.ID, &payment.CreatedAt)
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, payment, nil
}

func (r *repository) Payments(ctx context.Context, workspaceID, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, workspace_id, amount, note, paid_at, recorded_by, created_at
		FROM invoice_payments
		WHERE workspace_id = $1 AND invoice_id = $2
		ORDER BY paid_at, id`, workspaceID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.WorkspaceID, &p.Amount, &p.Note, &p.PaidAt, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Delete(ctx context.Context, workspaceID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
