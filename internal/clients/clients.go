// Package clients exposes the read side of the client directory.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

// Client holds the display and contact fields used on documents.
type Client struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"-"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email,omitempty"`
	Company     string `json:"company,omitempty"`
}

// DisplayName joins first and last name, falling back to the company.
func (c *Client) DisplayName() string {
	if c == nil {
		return "Client"
	}
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name != "" {
		return name
	}
	if c.Company != "" {
		return c.Company
	}
	return "Client"
}

// Repository reads clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a client within the workspace.
func (r *Repository) Get(ctx context.Context, workspaceID, id int64) (*Client, error) {
	const query = `SELECT id, workspace_id, first_name, last_name, email, company
		FROM clients WHERE workspace_id = $1 AND id = $2`
	var c Client
	err := r.pool.QueryRow(ctx, query, workspaceID, id).Scan(
		&c.ID, &c.WorkspaceID, &c.FirstName, &c.LastName, &c.Email, &c.Company,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", id, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("clients: get: %w", err)
	}
	return &c, nil
}
