package invoices

import (
	"fmt"
	"time"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// parseDueDate reads a YYYY-MM-DD date. An empty string means no due date.
func parseDueDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%w: due_date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	return &t, nil
}
