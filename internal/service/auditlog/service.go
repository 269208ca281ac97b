package auditlog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

// Publisher is the decoupled write path: entries are handed to a bounded
// queue and persisted off the decision path. TryPublish never blocks; false
// means the entry was dropped.
type Publisher interface {
	TryPublish(entry *audit.Entry) bool
}

// Config controls audit logging behavior
type Config struct {
	Enabled       bool          `json:"enabled"`
	Level         audit.Level   `json:"level"`
	RetentionDays int           `json:"retention_days"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	MemoryLimit   int           `json:"memory_limit"`
}

// DefaultConfig returns audit log defaults
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Level:         audit.LevelAll,
		RetentionDays: 365,
		WriteTimeout:  2 * time.Second,
		MemoryLimit:   10000,
	}
}

// Service records access decisions, operations, and security events. Every
// write is best-effort: persistence failures are caught, logged, and
// swallowed so the triggering business operation proceeds unaffected.
type Service struct {
	logger    *zap.Logger
	repo      audit.Repository
	publisher Publisher

	configMu sync.RWMutex
	config   Config

	entriesMu sync.Mutex
	entries   []*audit.Entry
}

// NewService creates an audit log service. Repository and publisher are both
// optional: with a publisher, writes go through the bounded queue; with only
// a repository, writes are synchronous but bounded by WriteTimeout; with
// neither, entries live in the bounded in-memory log only.
func NewService(logger *zap.Logger, repo audit.Repository, publisher Publisher, config Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.MemoryLimit <= 0 {
		config.MemoryLimit = DefaultConfig().MemoryLimit
	}
	return &Service{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
		config:    config,
	}
}

// Configure replaces the runtime audit configuration
func (s *Service) Configure(config Config) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.MemoryLimit <= 0 {
		config.MemoryLimit = DefaultConfig().MemoryLimit
	}
	s.config = config
}

func (s *Service) currentConfig() Config {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

// Log records an arbitrary audit entry, subject to the configured level
func (s *Service) Log(ctx context.Context, entry *audit.Entry) {
	if entry == nil {
		return
	}
	cfg := s.currentConfig()
	if !cfg.Enabled || !cfg.Level.Includes(entry.Type) {
		return
	}

	s.remember(entry, cfg.MemoryLimit)

	if s.publisher != nil {
		if !s.publisher.TryPublish(entry) {
			s.logger.Warn("audit entry dropped by publisher",
				zap.String("entry_id", entry.ID.String()),
				zap.String("entry_type", entry.Type.String()))
		}
		return
	}

	if s.repo != nil {
		writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
		defer cancel()
		if err := s.repo.Store(writeCtx, entry); err != nil {
			s.logger.Warn("audit entry persistence failed",
				zap.String("entry_id", entry.ID.String()),
				zap.String("entry_type", entry.Type.String()),
				zap.Error(err))
		}
	}
}

// LogAccess records an access decision, granted or denied
func (s *Service) LogAccess(ctx context.Context, ic *isolation.Context, resource isolation.Resource, action string, granted bool) {
	entry, err := audit.NewAccessEntry(ic, resource, action, granted)
	if err != nil {
		s.logger.Warn("failed to build access audit entry", zap.Error(err))
		return
	}
	s.Log(ctx, entry)
}

// LogOperation records a business operation executed under a context
func (s *Service) LogOperation(ctx context.Context, ic *isolation.Context, operation string, details map[string]interface{}) {
	entry, err := audit.NewOperationEntry(ic, operation, details)
	if err != nil {
		s.logger.Warn("failed to build operation audit entry",
			zap.String("operation", operation),
			zap.Error(err))
		return
	}
	s.Log(ctx, entry)
}

// LogSecurityEvent records a security event. The event itself is also
// persisted through the repository when one is configured, independently of
// the audit entry.
func (s *Service) LogSecurityEvent(ctx context.Context, event *isolation.SecurityEvent, details map[string]interface{}) {
	entry, err := audit.NewSecurityEntry(event, details)
	if err != nil {
		s.logger.Warn("failed to build security audit entry", zap.Error(err))
		return
	}
	s.Log(ctx, entry)

	if s.repo != nil && event != nil {
		cfg := s.currentConfig()
		writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
		defer cancel()
		if err := s.repo.StoreSecurityEvent(writeCtx, event); err != nil {
			s.logger.Warn("security event persistence failed",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}
}

// Query returns entries matching the filter, newest first. With a
// repository configured the query is delegated; otherwise the bounded
// in-memory log is scanned.
func (s *Service) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	if s.repo != nil {
		return s.repo.Query(ctx, filter)
	}

	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	var out []*audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Matches(filter) {
			out = append(out, s.entries[i])
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Service) remember(entry *audit.Entry, limit int) {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > limit {
		s.entries = s.entries[len(s.entries)-limit:]
	}
}
