package estimates

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

var ErrNotFound = fmt.Errorf("estimate %w", httpx.ErrNotFound)

const numberConstraint = "estimates_workspace_number_key"

// Repository persists estimates. Every read and write is workspace scoped
// except the share-token lookup.
type Repository interface {
	numbering.Store
	Create(ctx context.Context, e *Estimate) error
	Get(ctx context.Context, workspaceID, id int64) (*Estimate, error)
	GetByShareToken(ctx context.Context, token string) (*Estimate, error)
	List(ctx context.Context, req ListEstimatesRequest) ([]Estimate, int, error)
	Update(ctx context.Context, e *Estimate) error
	UpdateStatus(ctx context.Context, workspaceID, id int64, status Status, sentAt *time.Time) (*Estimate, error)
	Delete(ctx context.Context, workspaceID, id int64) error
}

type repository struct {
	db db.DBTX
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const estimateColumns = `id, workspace_id, number, client_id, project_id, items,
	discount_type, discount_value, tax_rate, deposit_required,
	subtotal_cost, subtotal_sell, discount_amount, tax_amount, total, total_margin,
	status, share_token, sent_at, notes, created_by, created_at, updated_at`

func scanEstimate(row pgx.Row) (*Estimate, error) {
	var e Estimate
	err := row.Scan(
		&e.ID, &e.WorkspaceID, &e.Number, &e.ClientID, &e.ProjectID, &e.Items,
		&e.DiscountType, &e.DiscountValue, &e.TaxRate, &e.DepositRequired,
		&e.SubtotalCost, &e.SubtotalSell, &e.DiscountAmount, &e.TaxAmount, &e.Total, &e.TotalMargin,
		&e.Status, &e.ShareToken, &e.SentAt, &e.Notes, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if e.Items == nil {
		e.Items = []LineItem{}
	}
	return &e, nil
}

func (r *repository) HighestNumber(ctx context.Context, workspaceID int64, prefix string) (string, error) {
	const query = `SELECT number FROM estimates
		WHERE workspace_id = $1 AND number ~ ('^' || $2 || '-[0-9]+$')
		ORDER BY length(number) DESC, number DESC
		LIMIT 1`
	var number string
	err := r.db.QueryRow(ctx, query, workspaceID, prefix).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (r *repository) NumberTaken(ctx context.Context, workspaceID int64, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM estimates WHERE workspace_id = $1 AND number = $2)`,
		workspaceID, number).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, e *Estimate) error {
	const query = `INSERT INTO estimates (
		workspace_id, number, client_id, project_id, items,
		discount_type, discount_value, tax_rate, deposit_required,
		subtotal_cost, subtotal_sell, discount_amount, tax_amount, total, total_margin,
		status, share_token, notes, created_by
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		e.WorkspaceID, e.Number, e.ClientID, e.ProjectID, e.Items,
		e.DiscountType, e.DiscountValue, e.TaxRate, e.DepositRequired,
		e.SubtotalCost, e.SubtotalSell, e.DiscountAmount, e.TaxAmount, e.Total, e.TotalMargin,
		e.Status, e.ShareToken, e.Notes, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, numberConstraint) {
			return numbering.ErrConflict
		}
		return fmt.Errorf("insert estimate: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, workspaceID, id int64) (*Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimates WHERE workspace_id = $1 AND id = $2`
	return scanEstimate(r.db.QueryRow(ctx, query, workspaceID, id))
}

func (r *repository) GetByShareToken(ctx context.Context, token string) (*Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimates WHERE share_token = $1`
	return scanEstimate(r.db.QueryRow(ctx, query, token))
}

func (r *repository) List(ctx context.Context, req ListEstimatesRequest) ([]Estimate, int, error) {
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
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM estimates "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count estimates: %w", err)
	}

	p := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, p.PerPage, shared.Offset(p.Page, p.PerPage))
	query := fmt.Sprintf(`SELECT %s FROM estimates %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		estimateColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list estimates: %w", err)
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		e, err := scanEstimate(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (r *repository) Update(ctx context.Context, e *Estimate) error {
	const query = `UPDATE estimates SET
		items = $3, discount_type = $4, discount_value = $5, tax_rate = $6, deposit_required = $7,
		subtotal_cost = $8, subtotal_sell = $9, discount_amount = $10, tax_amount = $11,
		total = $12, total_margin = $13, notes = $14, updated_at = now()
	WHERE workspace_id = $1 AND id = $2
	RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		e.WorkspaceID, e.ID, e.Items, e.DiscountType, e.DiscountValue, e.TaxRate, e.DepositRequired,
		e.SubtotalCost, e.SubtotalSell, e.DiscountAmount, e.TaxAmount,
		e.Total, e.TotalMargin, e.Notes,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, workspaceID, id int64, status Status, sentAt *time.Time) (*Estimate, error) {
	query := `UPDATE estimates SET status = $3, sent_at = COALESCE(sent_at, $4), updated_at = now()
		WHERE workspace_id = $1 AND id = $2
		RETURNING ` + estimateColumns
	return scanEstimate(r.db.QueryRow(ctx, query, workspaceID, id, status, sentAt))
}

func (r *repository) Delete(ctx context.Context, workspaceID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM estimates WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete estimate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
