// Package worker processes queued mappings batches in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/metrics"
)

var (
	// ErrNotRunning is returned when enqueueing on a stopped pool
	ErrNotRunning = errors.New("batch worker pool is not running")
	// ErrQueueFull is returned when no queue slot is free
	ErrQueueFull = errors.New("batch queue is full")
	// ErrStopped is returned when starting a pool that has been stopped
	ErrStopped = errors.New("batch worker pool has been stopped")
)

// BatchProcessor processes one stored batch
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, id uint) error
}

// Config holds pool settings
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// DefaultConfig returns default pool settings
func DefaultConfig() Config {
	return Config{
		Workers:   2,
		QueueSize: 100,
		Timeout:   10 * time.Minute,
	}
}

// Pool runs batches on a fixed number of goroutines
type Pool struct {
	processor BatchProcessor
	log       logger.Logger
	queue     chan uint
	workers   int
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	stopped   bool
}

// NewPool creates a pool. Zero config values fall back to DefaultConfig.
func NewPool(processor BatchProcessor, config Config, log logger.Logger) *Pool {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		processor: processor,
		log:       log,
		queue:     make(chan uint, config.QueueSize),
		workers:   config.Workers,
		timeout:   config.Timeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.isRunning {
		return fmt.Errorf("batch worker pool is already running")
	}
	p.isRunning = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("Batch worker pool started", logger.Int("workers", p.workers))
	return nil
}

// Stop cancels in-flight batches and waits for the workers to exit.
// Batches still queued are dropped and stay pending. A stopped pool cannot be restarted.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}
	p.isRunning = false
	p.stopped = true
	p.cancel()
	close(p.queue)

	p.wg.Wait()
	metrics.BatchQueueDepth.Set(0)
	p.log.Info("Batch worker pool stopped")
	return nil
}

// Enqueue queues a batch for processing without blocking
func (p *Pool) Enqueue(id uint) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.isRunning {
		return ErrNotRunning
	}

	select {
	case p.queue <- id:
		metrics.BatchQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case batchID, ok := <-p.queue:
			if !ok {
				return
			}
			metrics.BatchQueueDepth.Dec()
			p.process(batchID)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) process(batchID uint) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := p.processor.ProcessBatch(ctx, batchID); err != nil {
		p.log.Error("Queued batch failed", logger.Uint("batch_id", batchID), logger.Error(err))
		return
	}
	p.log.Info("Queued batch processed",
		logger.Uint("batch_id", batchID),
		logger.Duration("duration", time.Since(start)))
}
