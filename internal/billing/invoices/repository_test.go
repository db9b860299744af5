package invoices

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestPaymentsLockUnderReadCommitted(t *testing.T) {
	// RepeatableRead would fail the second of two concurrent payments with
	// 40001 once the first commits.
	assert.Equal(t, pgx.ReadCommitted, paymentIsolation)
}
