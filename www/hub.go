package www

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"remy/pipeline"
)

// subscriberBuffer is how many events a slow client may fall behind
// before it starts missing them.
const subscriberBuffer = 64

// Events is the source the hub fans out. *pipeline.Publisher satisfies it.
type Events interface {
	Next(ctx context.Context, timeout time.Duration) (pipeline.Event, bool)
}

// Hub fans published results out to every connected stream client. It
// only pulls from the publisher while someone is listening, so results
// produced with no client attached wait for the first one.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan []byte]struct{}
	waiting chan struct{}

	log *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		subs:    make(map[chan []byte]struct{}),
		waiting: make(chan struct{}),
		log:     logger,
	}
}

// Subscribe returns a channel of JSON-encoded events and a function that
// must be called to release it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if len(h.subs) == 1 {
		close(h.waiting)
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			if len(h.subs) == 0 {
				h.waiting = make(chan struct{})
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Run pumps events until ctx is done.
func (h *Hub) Run(ctx context.Context, events Events) {
	for {
		h.mu.Lock()
		waiting := h.waiting
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-waiting:
		}

		ev, ok := events.Next(ctx, 250*time.Millisecond)
		if !ok {
			continue
		}
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("failed to encode event", "error", err)
			continue
		}
		h.broadcast(data)
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			h.log.Warn("dropping event for slow client")
		}
	}
}
