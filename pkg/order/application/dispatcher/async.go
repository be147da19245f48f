package dispatcher

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront/pkg/order/domain/service"
)

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrClosed    = errors.New("dispatcher is closed")
)

type Handler func(ctx context.Context, event service.Event) error

type aggregateEvent interface {
	AggregateID() uuid.UUID
}

// AsyncDispatcher hands events to a fixed set of workers. Events of one aggregate
// always land on the same worker, so they are handled in the order they were dispatched.
type AsyncDispatcher struct {
	queues   []chan service.Event
	handlers []Handler
	logger   logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(workers, queueSize int, logger logrus.FieldLogger, handlers ...Handler) *AsyncDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &AsyncDispatcher{
		queues:   make([]chan service.Event, workers),
		handlers: handlers,
		logger:   logger,
	}
	for i := range d.queues {
		d.queues[i] = make(chan service.Event, queueSize)
		d.wg.Add(1)
		go d.work(d.queues[i])
	}
	return d
}

// Dispatch never blocks: when the worker queue is full the event is dropped.
func (d *AsyncDispatcher) Dispatch(event service.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queues[d.shard(event)] <- event:
		return nil
	default:
		return errors.Wrapf(ErrQueueFull, "dropping %s", event.Type())
	}
}

// Close stops accepting events and waits until queued ones are handled.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *AsyncDispatcher) work(queue <-chan service.Event) {
	defer d.wg.Done()
	for event := range queue {
		for _, handle := range d.handlers {
			if err := handle(context.Background(), event); err != nil {
				d.logger.WithError(err).WithField("event", event.Type()).Error("event handler failed")
			}
		}
	}
}

func (d *AsyncDispatcher) shard(event service.Event) int {
	e, ok := event.(aggregateEvent)
	if !ok || len(d.queues) == 1 {
		return 0
	}
	id := e.AggregateID()
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return int(h.Sum32() % uint32(len(d.queues)))
}
