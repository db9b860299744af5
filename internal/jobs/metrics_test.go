package jobmetrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentRecordsStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	results := []error{nil, errors.New("smtp down"), fmt.Errorf("bad payload: %w", asynq.SkipRetry)}
	i := 0
	handler := m.Instrument(func(ctx context.Context, task *asynq.Task) error {
		err := results[i]
		i++
		return err
	})

	task := asynq.NewTask("mail:send", nil)
	require.NoError(t, handler(context.Background(), task))
	require.Error(t, handler(context.Background(), task))
	require.ErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:send", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:send", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:send", "dropped")))
}

func TestNilTrackerPassesError(t *testing.T) {
	var tracker *Tracker
	err := errors.New("boom")
	assert.Same(t, err, tracker.End(err))
}
