package events

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/audit"
)

// PublisherConfig configures the audit entry publisher
type PublisherConfig struct {
	QueueSize       int
	WorkerCount     int
	StoreTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultPublisherConfig returns default configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		QueueSize:       1000,
		WorkerCount:     4,
		StoreTimeout:    5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// AuditEntryPublisher decouples audit writes from the access decision path:
// entries land on a bounded queue and workers persist them through the
// repository. When the queue is full or the breaker is open the entry is
// dropped and counted, never blocking the caller. Audit here is
// best-effort observability, not a ledger.
type AuditEntryPublisher struct {
	logger *zap.Logger
	repo   audit.Repository
	config PublisherConfig

	queue   chan *audit.Entry
	breaker *CircuitBreaker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics publisherMetrics

	stats struct {
		mu        sync.RWMutex
		published int64
		dropped   int64
		failed    int64
	}
}

type publisherMetrics struct {
	entriesPublished metric.Int64Counter
	entriesDropped   metric.Int64Counter
	entriesFailed    metric.Int64Counter
	queueDepth       metric.Int64ObservableGauge
}

// NewAuditEntryPublisher creates a publisher and starts its workers
func NewAuditEntryPublisher(ctx context.Context, logger *zap.Logger, repo audit.Repository, config PublisherConfig) (*AuditEntryPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultPublisherConfig().QueueSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultPublisherConfig().WorkerCount
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultPublisherConfig().StoreTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultPublisherConfig().ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &AuditEntryPublisher{
		logger:  logger,
		repo:    repo,
		config:  config,
		queue:   make(chan *audit.Entry, config.QueueSize),
		breaker: NewCircuitBreaker(10, 30*time.Second),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := p.initMetrics(); err != nil {
		cancel()
		return nil, err
	}

	for i := 0; i < config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Info("audit entry publisher started",
		zap.Int("queue_size", config.QueueSize),
		zap.Int("workers", config.WorkerCount))

	return p, nil
}

// TryPublish enqueues an entry for persistence. It never blocks: a full
// queue or an open breaker drops the entry and returns false.
func (p *AuditEntryPublisher) TryPublish(entry *audit.Entry) bool {
	if entry == nil {
		return false
	}

	if !p.breaker.Allow() {
		p.recordDropped("circuit_open")
		return false
	}

	select {
	case p.queue <- entry:
		return true
	default:
		p.recordDropped("queue_full")
		return false
	}
}

// Stats returns a snapshot of publisher counters
func (p *AuditEntryPublisher) Stats() map[string]interface{} {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()

	return map[string]interface{}{
		"published":     p.stats.published,
		"dropped":       p.stats.dropped,
		"failed":        p.stats.failed,
		"queue_depth":   len(p.queue),
		"queue_size":    p.config.QueueSize,
		"breaker_state": p.breaker.StateName(),
	}
}

// Close drains in-flight workers, bounded by ShutdownTimeout. Entries left
// on the queue after the timeout are lost.
func (p *AuditEntryPublisher) Close() error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("audit entry publisher stopped")
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("audit entry publisher shutdown timed out",
			zap.Int("pending_entries", len(p.queue)))
	}
	return nil
}

func (p *AuditEntryPublisher) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case entry := <-p.queue:
			p.persist(entry)
		case <-p.ctx.Done():
			// Drain whatever is already queued before exiting
			for {
				select {
				case entry := <-p.queue:
					p.persist(entry)
				default:
					p.logger.Debug("publisher worker stopped", zap.Int("worker_id", id))
					return
				}
			}
		}
	}
}

func (p *AuditEntryPublisher) persist(entry *audit.Entry) {
	storeCtx, cancel := context.WithTimeout(context.Background(), p.config.StoreTimeout)
	defer cancel()

	if err := p.repo.Store(storeCtx, entry); err != nil {
		p.breaker.RecordFailure()
		p.recordFailed()
		p.logger.Warn("audit entry persistence failed",
			zap.String("entry_id", entry.ID.String()),
			zap.String("entry_type", entry.Type.String()),
			zap.Error(err))
		return
	}

	p.breaker.RecordSuccess()
	p.recordPublished()
}

func (p *AuditEntryPublisher) initMetrics() error {
	meter := otel.Meter("isolation.audit.publisher")

	var err error
	if p.metrics.entriesPublished, err = meter.Int64Counter("audit.entries.published",
		metric.WithDescription("Audit entries persisted through the publisher")); err != nil {
		return err
	}
	if p.metrics.entriesDropped, err = meter.Int64Counter("audit.entries.dropped",
		metric.WithDescription("Audit entries dropped by the publisher")); err != nil {
		return err
	}
	if p.metrics.entriesFailed, err = meter.Int64Counter("audit.entries.failed",
		metric.WithDescription("Audit entries whose persistence failed")); err != nil {
		return err
	}
	if p.metrics.queueDepth, err = meter.Int64ObservableGauge("audit.queue.depth",
		metric.WithDescription("Current depth of the publisher queue")); err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(p.metrics.queueDepth, int64(len(p.queue)))
		return nil
	}, p.metrics.queueDepth)
	return err
}

func (p *AuditEntryPublisher) recordPublished() {
	p.metrics.entriesPublished.Add(context.Background(), 1)

	p.stats.mu.Lock()
	p.stats.published++
	p.stats.mu.Unlock()
}

func (p *AuditEntryPublisher) recordDropped(reason string) {
	p.metrics.entriesDropped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))

	p.stats.mu.Lock()
	p.stats.dropped++
	p.stats.mu.Unlock()
}

func (p *AuditEntryPublisher) recordFailed() {
	p.metrics.entriesFailed.Add(context.Background(), 1)

	p.stats.mu.Lock()
	p.stats.failed++
	p.stats.mu.Unlock()
}
