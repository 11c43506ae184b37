package pubsub

import "sync"

// Hub fans values out to any number of subscribers. Publish never blocks:
// every subscriber owns an unbounded queue drained by its own goroutine, so
// a slow reader only delays itself and still sees values in publish order.
type Hub[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber[T]
	closed bool
}

type subscriber[T any] struct {
	mu    sync.Mutex
	queue []T
	wake  chan struct{}
	done  chan struct{}
	out   chan T
	once  sync.Once
}

// NewHub creates an empty hub
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]*subscriber[T])}
}

// Subscribe registers a new subscriber. The returned channel is closed after
// Unsubscribe or Close.
func (h *Hub[T]) Subscribe() (int, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &subscriber[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan T),
	}

	if h.closed {
		close(s.out)
		return -1, s.out
	}

	h.nextID++
	id := h.nextID
	h.subs[id] = s
	go s.pump()

	return id, s.out
}

// Unsubscribe stops delivery to id and closes its channel. Unknown ids are ignored.
func (h *Hub[T]) Unsubscribe(id int) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		s.stop()
	}
}

// Publish enqueues v for every current subscriber
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		s.push(v)
	}
}

// Len returns the number of active subscribers
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close unsubscribes everybody. Later Subscribe calls get a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[int]*subscriber[T])
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber[T]) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}
