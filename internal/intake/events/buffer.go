package events

import "sync"

// RingBuffer is a bounded, thread-safe queue of events. When full, the oldest
// events are dropped to make room for new ones.
type RingBuffer struct {
	mu       sync.Mutex
	events   []Submitted
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		events:   make([]Submitted, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary. It reports whether
// an event was dropped.
func (b *RingBuffer) Enqueue(e Submitted) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.events[b.head] = e
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// Requeue puts events back at the front in their original order. Events that
// no longer fit are dropped from the end of the slice.
func (b *RingBuffer) Requeue(events []Submitted) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.capacity - b.count
	if len(events) > room {
		b.dropped += int64(len(events) - room)
		events = events[:room]
	}
	for i := len(events) - 1; i >= 0; i-- {
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.events[b.tail] = events[i]
		b.count++
	}
}

// DequeueBatch removes up to n events from the front of the buffer.
func (b *RingBuffer) DequeueBatch(n int) []Submitted {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]Submitted, n)
	for i := 0; i < n; i++ {
		result[i] = b.events[b.tail]
		b.events[b.tail] = Submitted{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Len returns the current number of events in the buffer.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped events.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
