package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Mailbox is a latest-wins single slot. Put replaces whatever is pending,
// so the consumer only ever sees the freshest item.
type Mailbox[T any] struct {
	mu     sync.Mutex
	item   T
	full   bool
	notify chan struct{}

	drops atomic.Uint64
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Put stores item, discarding an unconsumed predecessor. It reports
// whether something was replaced.
func (m *Mailbox[T]) Put(item T) bool {
	m.mu.Lock()
	replaced := m.full
	if replaced {
		m.drops.Add(1)
	}
	m.item = item
	m.full = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return replaced
}

func (m *Mailbox[T]) TryTake() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.take()
}

func (m *Mailbox[T]) take() (T, bool) {
	var zero T
	if !m.full {
		return zero, false
	}
	item := m.item
	m.item = zero
	m.full = false
	return item, true
}

// TakeWait waits up to timeout for an item.
func (m *Mailbox[T]) TakeWait(ctx context.Context, timeout time.Duration) (T, bool) {
	if item, ok := m.TryTake(); ok {
		return item, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-m.notify:
			if item, ok := m.TryTake(); ok {
				return item, true
			}
		case <-timer.C:
			var zero T
			return zero, false
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Len is 0 or 1.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return 1
	}
	return 0
}

// Drain empties the slot and reports whether it held an item.
func (m *Mailbox[T]) Drain() bool {
	m.mu.Lock()
	_, had := m.take()
	m.mu.Unlock()

	select {
	case <-m.notify:
	default:
	}
	return had
}

// Drops counts items replaced before they were consumed.
func (m *Mailbox[T]) Drops() uint64 {
	return m.drops.Load()
}
