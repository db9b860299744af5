// Package numbering assigns human-readable document numbers of the form
// PREFIX-<integer>, unique per workspace.
//
// No lock is held. The store enforces uniqueness at insert time and Assign
// retries with a fresh candidate when another writer wins the race.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

var (
	// ErrConflict is returned by insert callbacks when the number is already taken.
	ErrConflict = errors.New("document number already taken")
	// ErrExhausted reports that every insert attempt lost its race.
	ErrExhausted = fmt.Errorf("%w: document numbering exhausted, retry later", httpx.ErrConflict)
)

const (
	DefaultFloor         = 1001
	DefaultProbeLimit    = 20
	DefaultInsertRetries = 5
)

// Store reads the existing numbers of one document collection.
type Store interface {
	// HighestNumber returns the greatest PREFIX-<digits> number in the
	// workspace, or "" when there is none.
	HighestNumber(ctx context.Context, workspaceID int64, prefix string) (string, error)
	NumberTaken(ctx context.Context, workspaceID int64, number string) (bool, error)
}

// Recorder observes assignment outcomes. A nil Recorder is allowed.
type Recorder interface {
	NumberAssigned(prefix string)
	NumberConflict(prefix string)
	NumberExhausted(prefix string)
}

// Config bounds the search and retry loops.
type Config struct {
	Floor         int64
	ProbeLimit    int
	InsertRetries int
}

func (c Config) withDefaults() Config {
	if c.Floor <= 0 {
		c.Floor = DefaultFloor
	}
	if c.ProbeLimit <= 0 {
		c.ProbeLimit = DefaultProbeLimit
	}
	if c.InsertRetries <= 0 {
		c.InsertRetries = DefaultInsertRetries
	}
	return c
}

// Sequence numbers one document collection.
type Sequence struct {
	prefix   string
	store    Store
	cfg      Config
	recorder Recorder
	now      func() time.Time
}

// NewSequence builds a sequence for prefix ("EST", "INV").
func NewSequence(prefix string, store Store, cfg Config, recorder Recorder) *Sequence {
	return &Sequence{
		prefix:   prefix,
		store:    store,
		cfg:      cfg.withDefaults(),
		recorder: recorder,
		now:      time.Now,
	}
}

// Prefix returns the document prefix.
func (s *Sequence) Prefix() string {
	return s.prefix
}

// Format renders a number with the sequence prefix.
func (s *Sequence) Format(n int64) string {
	return s.prefix + "-" + strconv.FormatInt(n, 10)
}

// Parse extracts the numeric suffix of a number carrying this prefix.
func (s *Sequence) Parse(number string) (int64, bool) {
	suffix, ok := strings.CutPrefix(number, s.prefix+"-")
	if !ok || suffix == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Next proposes the next free number. It probes a bounded window past the
// current maximum and falls back to a timestamp suffix when the window is full.
func (s *Sequence) Next(ctx context.Context, workspaceID int64) (string, error) {
	highest, err := s.store.HighestNumber(ctx, workspaceID, s.prefix)
	if err != nil {
		return "", fmt.Errorf("numbering: highest %s number: %w", s.prefix, err)
	}
	candidate := s.cfg.Floor
	if n, ok := s.Parse(highest); ok && n+1 > candidate {
		candidate = n + 1
	}

	for i := 0; i < s.cfg.ProbeLimit; i++ {
		number := s.Format(candidate + int64(i))
		taken, err := s.store.NumberTaken(ctx, workspaceID, number)
		if err != nil {
			return "", fmt.Errorf("numbering: probe %s: %w", number, err)
		}
		if !taken {
			return number, nil
		}
	}
	return s.Format(s.now().UnixMilli()), nil
}

// Assign picks a number and hands it to insert. When insert reports
// ErrConflict the maximum is re-read and the insert retried, up to the
// configured ceiling; after that ErrExhausted is returned and nothing is written.
func (s *Sequence) Assign(ctx context.Context, workspaceID int64, insert func(ctx context.Context, number string) error) (string, error) {
	for attempt := 0; attempt < s.cfg.InsertRetries; attempt++ {
		number, err := s.Next(ctx, workspaceID)
		if err != nil {
			return "", err
		}
		err = insert(ctx, number)
		if err == nil {
			if s.recorder != nil {
				s.recorder.NumberAssigned(s.prefix)
			}
			return number, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", err
		}
		if s.recorder != nil {
			s.recorder.NumberConflict(s.prefix)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	if s.recorder != nil {
		s.recorder.NumberExhausted(s.prefix)
	}
	return "", ErrExhausted
}
