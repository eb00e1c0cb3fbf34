package queue

import (
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler consumes one batch of accepted listings.
type Handler func([]*models.Listing) error

// ListingQueue is an in-memory queue of accepted-listing batches between the
// scan cycle and whatever delivers them.
type ListingQueue struct {
	items    chan []*models.Listing
	done     chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	logger   *logrus.Logger
	handlers []Handler
}

// NewListingQueue creates a new listing queue with the specified buffer size
func NewListingQueue(bufferSize int, logger *logrus.Logger) *ListingQueue {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ListingQueue{
		items:    make(chan []*models.Listing, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]Handler, 0),
	}
}

// Push adds a batch to the queue without blocking.
func (q *ListingQueue) Push(listings []*models.Listing) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- listings:
		q.logger.WithField("batch_size", len(listings)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *ListingQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue. Calling it twice is a no-op.
func (q *ListingQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.process()
}

func (q *ListingQueue) process() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			q.drain()
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

// drain hands over whatever was queued before Close.
func (q *ListingQueue) drain() {
	for {
		select {
		case batch := <-q.items:
			q.processBatch(batch)
		default:
			return
		}
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *ListingQueue) processBatch(batch []*models.Listing) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops accepting batches, delivers those already queued, and waits
// for the worker to finish.
func (q *ListingQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of batches in the queue
func (q *ListingQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *ListingQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
