package llm

import "sync"

type Exchange struct {
	User      string
	Assistant string
}

// History is the rolling conversation memory fed back into replies.
type History interface {
	Record(user, assistant string)
	Exchanges() []Exchange
	Reset()
}

// RollingHistory keeps the most recent exchanges up to a fixed size.
type RollingHistory struct {
	mu        sync.Mutex
	max       int
	exchanges []Exchange
}

func NewRollingHistory(max int) *RollingHistory {
	if max < 1 {
		max = 1
	}
	return &RollingHistory{max: max}
}

func (h *RollingHistory) Record(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, Exchange{User: user, Assistant: assistant})
	if over := len(h.exchanges) - h.max; over > 0 {
		h.exchanges = append([]Exchange(nil), h.exchanges[over:]...)
	}
}

func (h *RollingHistory) Exchanges() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Exchange(nil), h.exchanges...)
}

func (h *RollingHistory) Reset() {
	h.mu.Lock()
	h.exchanges = nil
	h.mu.Unlock()
}
