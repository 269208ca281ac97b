package contextmgr

import (
	"sync"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/errors"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// DefaultHistoryLimit caps the context history stack when no limit is
// configured
const DefaultHistoryLimit = 100

// Manager owns the current isolation context for one sequential unit of
// work, plus a bounded history of superseded contexts. It is mutex-guarded
// so misuse does not corrupt state, but it must not be shared across
// concurrent units of work: concurrent callers carry their context on
// context.Context via With/From instead.
type Manager struct {
	logger *zap.Logger

	mu           sync.Mutex
	current      *isolation.Context
	history      []*isolation.Context
	historyLimit int
}

// NewManager creates a context manager with the given history limit.
// A limit of zero or less falls back to DefaultHistoryLimit.
func NewManager(logger *zap.Logger, historyLimit int) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Manager{
		logger:       logger,
		historyLimit: historyLimit,
	}
}

// Set installs a new current context. The prior current context, if any, is
// pushed onto the history stack; when the stack exceeds its limit the oldest
// entry is evicted. Invalid contexts are rejected, never silently coerced.
func (m *Manager) Set(ic *isolation.Context) error {
	if ic == nil {
		return errors.NewValidationError("NIL_CONTEXT", "cannot set a nil isolation context")
	}
	if err := ic.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.history = append(m.history, m.current)
		if len(m.history) > m.historyLimit {
			evicted := len(m.history) - m.historyLimit
			m.history = m.history[evicted:]
			m.logger.Debug("context history evicted",
				zap.Int("evicted", evicted),
				zap.Int("limit", m.historyLimit))
		}
	}
	m.current = ic
	return nil
}

// Current returns the current context, or nil when none is set
func (m *Manager) Current() *isolation.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Clear discards the current context. History is left intact.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// History returns a copy of the history stack, oldest first
func (m *Manager) History() []*isolation.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*isolation.Context, len(m.history))
	copy(out, m.history)
	return out
}

// WithContext installs ic as the current context, runs fn, and restores the
// prior current context on every exit path, including fn returning an error
// or panicking. The restore does not grow the history stack.
func (m *Manager) WithContext(ic *isolation.Context, fn func() error) error {
	if ic == nil {
		return errors.NewValidationError("NIL_CONTEXT", "cannot scope to a nil isolation context")
	}
	if err := ic.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	prior := m.current
	m.current = ic
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.current = prior
		m.mu.Unlock()
	}()

	return fn()
}

// Validate reports whether a context is usable: non-nil, structurally valid,
// and either tenant-scoped or an explicit platform context.
func Validate(ic *isolation.Context) bool {
	if ic == nil {
		return false
	}
	if err := ic.Validate(); err != nil {
		return false
	}
	return ic.TenantID != "" || ic.IsPlatform()
}
