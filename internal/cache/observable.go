package cache

import "sync"

const subscriberBuffer = 32

// Observable is the read side of a Holder.
type Observable[T any] interface {
	// Value returns the latest value.
	Value() T
	// Subscribe delivers the latest value immediately followed by every later
	// update. A subscriber that falls behind loses the oldest pending values,
	// never the newest. Call cancel to stop receiving.
	Subscribe() (updates <-chan T, cancel func())
}

// Holder is a single-writer, many-reader cell with replay-latest semantics.
type Holder[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]chan T
	nextID int
	closed bool
}

func NewHolder[T any](initial T) *Holder[T] {
	return &Holder[T]{value: initial, subs: make(map[int]chan T)}
}

func (h *Holder[T]) Value() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Store replaces the value and fans it out.
func (h *Holder[T]) Store(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = v
	for _, ch := range h.subs {
		offer(ch, v)
	}
}

func (h *Holder[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, subscriberBuffer)
	if h.closed {
		ch <- h.value
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- h.value

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription. Later Stores only update the value.
func (h *Holder[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// offer sends without blocking, dropping the oldest queued value when full.
// Only Store sends, under h.mu, so the retry cannot race another sender.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
