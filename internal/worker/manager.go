package worker

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"readingclub/internal/metrics"
	"readingclub/internal/queue"
)

const (
	DefaultWorkerCount   = 2
	DefaultBatchSize     = 10
	DefaultBlockTimeout  = 5 * time.Second
	DefaultMaxAttempts   = 5
	DefaultRetryInterval = 30 * time.Second

	readErrorBackoff = time.Second
)

// EventHandler processes one stream event. *Handler is the production implementation.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.Event) error
}

// ManagerConfig sizes the delivery worker pool.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration // XREADGROUP block

	// MaxAttempts caps deliveries of one entry by one worker; the entry is
	// acknowledged and dropped after the last failure.
	MaxAttempts int
	// RetryInterval is how often a worker replays its failed entries.
	RetryInterval time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:   DefaultWorkerCount,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		RetryInterval: DefaultRetryInterval,
	}
}

// Manager runs a pool of delivery workers in one consumer group on the
// notification stream. Delivery is at least once: a failed entry stays in
// the worker's pending list until it succeeds or runs out of attempts.
type Manager struct {
	consumer queue.Consumer
	handler  EventHandler
	cfg      ManagerConfig

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	def := DefaultManagerConfig()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = def.BlockTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	return &Manager{consumer: consumer, handler: handler, cfg: cfg}
}

// Start creates the consumer group if needed and launches the workers.
// Stop must be called to release them.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.consumer.EnsureGroup(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for i := 1; i <= m.cfg.WorkerCount; i++ {
		w := &deliveryWorker{
			id:       i,
			name:     "worker-" + strconv.Itoa(i),
			m:        m,
			attempts: make(map[string]int),
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(runCtx)
		}()
	}

	log.Printf("[Delivery] %d workers consuming %s as %s",
		m.cfg.WorkerCount, queue.StreamNotifications, queue.ConsumerGroupDelivery)
	return nil
}

// Stop cancels the workers and waits for in-flight batches to finish.
// Failed entries stay pending and are replayed on the next Start.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	log.Printf("[Delivery] workers stopped")
}

// Pending reports unacknowledged deliveries across the group.
func (m *Manager) Pending(ctx context.Context) (int64, error) {
	return m.consumer.Pending(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery)
}

// deliveryWorker is owned by one goroutine; attempts needs no lock.
type deliveryWorker struct {
	id       int
	name     string
	m        *Manager
	attempts map[string]int // failed entry id -> failures so far
}

func (w *deliveryWorker) run(ctx context.Context) {
	// Entries this consumer read before a crash stay pending under its name.
	w.replay(ctx)
	lastReplay := time.Now()

	for ctx.Err() == nil {
		if len(w.attempts) > 0 && time.Since(lastReplay) >= w.m.cfg.RetryInterval {
			w.replay(ctx)
			lastReplay = time.Now()
		}

		block := w.m.cfg.BlockTimeout
		if len(w.attempts) > 0 && w.m.cfg.RetryInterval < block {
			block = w.m.cfg.RetryInterval
		}
		msgs, err := w.m.consumer.Read(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery,
			w.name, w.m.cfg.BatchSize, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Delivery-%d] read failed: %v", w.id, err)
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		w.deliver(ctx, msgs)
	}
}

// replay walks this consumer's pending list once, oldest first.
func (w *deliveryWorker) replay(ctx context.Context) {
	after := "0"
	for ctx.Err() == nil {
		msgs, err := w.m.consumer.ReadPending(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery,
			w.name, after, w.m.cfg.BatchSize)
		if err != nil {
			log.Printf("[Delivery-%d] pending read failed: %v", w.id, err)
			return
		}
		if len(msgs) == 0 {
			return
		}
		log.Printf("[Delivery-%d] replaying %d pending events", w.id, len(msgs))
		w.deliver(ctx, msgs)
		after = msgs[len(msgs)-1].ID
	}
}

func (w *deliveryWorker) deliver(ctx context.Context, msgs []queue.Message) {
	for _, msg := range msgs {
		err := w.m.handler.HandleEvent(ctx, msg.Event)
		if err != nil && !w.giveUp(msg, err) {
			continue
		}
		delete(w.attempts, msg.ID)
		if err := w.m.consumer.Ack(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery, msg.ID); err != nil {
			log.Printf("[Delivery-%d] ack %s failed: %v", w.id, msg.ID, err)
		}
	}
}

// giveUp records a failure and reports whether the entry should be
// acknowledged anyway. The notification row is committed either way;
// clients resync their unread count on reconnect.
func (w *deliveryWorker) giveUp(msg queue.Message, err error) bool {
	if errors.Is(err, ErrUnknownEvent) {
		return true
	}
	w.attempts[msg.ID]++
	n := w.attempts[msg.ID]
	if n < w.m.cfg.MaxAttempts {
		log.Printf("[Delivery-%d] %s (%s) failed, attempt %d/%d: %v",
			w.id, msg.ID, msg.Event.Type, n, w.m.cfg.MaxAttempts, err)
		return false
	}
	log.Printf("[Delivery-%d] dropping %s (%s) after %d attempts: %v", w.id, msg.ID, msg.Event.Type, n, err)
	metrics.EventsDelivered.WithLabelValues(msg.Event.Type, "dropped").Inc()
	return true
}
