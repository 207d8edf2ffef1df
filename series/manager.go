// Package series keeps the generated instances of recurring entries consistent
// with the original that governs them.
//
// An original carries the rule, exception and addition dates. Regenerate
// materializes every occurrence but the original's own start as a linked
// instance; Detach turns a linked instance into a standalone exception that
// later regeneration passes leave alone.
package series

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/libjtx/recurrence"
	"github.com/cyp0633/libjtx/storage"
)

const defaultWorkers = 4

// Manager runs series operations against a storage.Gateway.
// Operations on different originals may run concurrently; callers must not run
// two operations on the same original at once.
type Manager struct {
	gw      storage.Gateway
	engine  *recurrence.Engine
	logger  *slog.Logger
	now     func() time.Time
	newUID  func() string
	workers int
}

// Option represents a configuration option for the Manager
type Option func(*Manager)

// New creates a Manager on top of gw.
func New(gw storage.Gateway, opts ...Option) *Manager {
	m := &Manager{
		gw:      gw,
		engine:  recurrence.NewEngine(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		newUID:  uuid.NewString,
		workers: defaultWorkers,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithLogger sets the logger for the manager
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEngine replaces the default uncached recurrence engine.
func WithEngine(engine *recurrence.Engine) Option {
	return func(m *Manager) {
		if engine != nil {
			m.engine = engine
		}
	}
}

// WithClock sets the time source used for dtstamp, created and lastModified.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithUIDGenerator sets how generated instances get their UID.
func WithUIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newUID = gen
		}
	}
}

// WithWorkers bounds how many originals RegenerateAll processes at once.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

func (m *Manager) nowMillis() int64 {
	return m.now().UnixMilli()
}

// Expand evaluates the recurrence of e. Failures are logged and yield an empty expansion.
func (m *Manager) Expand(e *storage.Entry) []int64 {
	result := m.engine.Evaluate(inputFor(e))
	if err := result.Error(); err != nil && !errors.Is(err, recurrence.ErrNoStart) {
		m.logger.Warn("recurrence rule not expanded",
			"entry_id", e.ID,
			"rule", e.RRule,
			"error", err)
	}
	return result.OrElse([]int64{})
}

func inputFor(e *storage.Entry) recurrence.Input {
	return recurrence.Input{
		Rule:       e.RRule,
		Start:      e.Start(),
		Timezone:   e.DtstartTimezone,
		Exceptions: e.ExDate,
		Additions:  e.RDate,
	}
}
