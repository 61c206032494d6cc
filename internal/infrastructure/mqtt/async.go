package mqtt

import (
	"sync"
	"sync/atomic"
)

// Publisher is the synchronous publish surface of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

type outbound struct {
	topic   string
	payload []byte
}

// AsyncPublisher decouples callers from broker round-trips.
//
// Messages are handed to a single worker goroutine through a bounded queue,
// so they reach the broker in the order they were enqueued. Enqueue never
// blocks: when the queue is full the message is dropped and counted.
type AsyncPublisher struct {
	pub    Publisher
	qos    byte
	logger Logger

	queue chan outbound
	wg    sync.WaitGroup

	// mu guards closed against a concurrent send on a closed channel.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncPublisher starts the worker. size is the queue capacity.
func NewAsyncPublisher(pub Publisher, qos byte, size int, logger Logger) *AsyncPublisher {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = noopLogger{}
	}

	a := &AsyncPublisher{
		pub:    pub,
		qos:    qos,
		logger: logger,
		queue:  make(chan outbound, size),
	}

	a.wg.Add(1)
	go a.run()

	return a
}

// Enqueue schedules payload for publication on topic.
func (a *AsyncPublisher) Enqueue(topic string, payload []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrPublisherClosed
	}

	select {
	case a.queue <- outbound{topic: topic, payload: payload}:
		return nil
	default:
		a.dropped.Add(1)
		a.logger.Warn("publish queue full, dropping message", "topic", topic)
		return ErrQueueFull
	}
}

func (a *AsyncPublisher) run() {
	defer a.wg.Done()

	for msg := range a.queue {
		if err := a.pub.Publish(msg.topic, msg.payload, a.qos, false); err != nil {
			a.failed.Add(1)
			a.logger.Warn("async publish failed", "topic", msg.topic, "error", err)
		}
	}
}

// Close stops accepting messages, flushes what is queued and waits for the worker.
// It is safe to call more than once.
func (a *AsyncPublisher) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
}

// Dropped returns how many messages were rejected because the queue was full.
func (a *AsyncPublisher) Dropped() uint64 {
	return a.dropped.Load()
}

// Failed returns how many dequeued messages the broker client rejected.
func (a *AsyncPublisher) Failed() uint64 {
	return a.failed.Load()
}
