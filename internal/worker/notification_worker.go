package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-service/internal/events"
)

var (
	// ErrQueueFull is returned to the dispatcher when the notification backlog is saturated.
	ErrQueueFull = errors.New("notification queue full")
	// ErrWorkerStopped is returned for events published after Stop.
	ErrWorkerStopped = errors.New("notification worker stopped")
)

// Deliverer sends the notification for a single event.
type Deliverer interface {
	Deliver(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification delivery off the request path. Events are buffered and
// drained by a fixed number of goroutines.
type NotificationWorker struct {
	deliverer Deliverer
	logger    *zap.Logger
	queue     chan events.Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotificationWorker builds a worker with the given backlog size.
func NewNotificationWorker(deliverer Deliverer, logger *zap.Logger, queueSize int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &NotificationWorker{
		deliverer: deliverer,
		logger:    logger,
		queue:     make(chan events.Event, queueSize),
	}
}

// Subscribe registers the worker for every ticket event.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketMessageAppended,
		events.EventTicketStatusChanged,
	} {
		dispatcher.Subscribe(eventType, w.Enqueue)
	}
}

// Enqueue buffers event without blocking the publisher.
func (w *NotificationWorker) Enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the delivery goroutines. They exit once Stop drains the queue.
func (w *NotificationWorker) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Stop refuses new events and waits for buffered ones to be delivered.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.deliverer.Deliver(ctx, event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}
