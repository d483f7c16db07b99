// Package notify fans lifecycle notices out to live subscribers.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

const defaultBuffer = 16

// Hub delivers each notice to every subscriber without blocking the caller.
// A subscriber whose buffer is full misses the notice.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.Notice
	closed bool
}

func NewHub(logger *slog.Logger, buffer int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{logger: logger, buffer: buffer, subs: make(map[int]chan domain.Notice)}
}

func (h *Hub) Notify(_ context.Context, notice domain.Notice) {
	level := slog.LevelInfo
	if notice.IsError() {
		level = slog.LevelWarn
	}
	h.logger.Log(context.Background(), level, "notice",
		"kind", notice.Kind,
		"message", notice.Message,
		"card_id", notice.CardID,
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- notice:
		default:
			h.logger.Debug("notice_dropped", "subscriber", id, "kind", notice.Kind)
		}
	}
}

// Subscribe returns a notice channel and a func that releases it. The
// channel is closed on release or when the hub closes.
func (h *Hub) Subscribe() (<-chan domain.Notice, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Notice, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

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

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
