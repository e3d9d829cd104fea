package session

import (
	"sync"

	clog "github.com/charmbracelet/log"

	"cookterm/internal/shellint"
)

// MessageType identifies a hub message payload.
type MessageType string

const (
	// MessageEvent carries a decoded shell-integration event.
	MessageEvent MessageType = "event"
	// MessageOutput carries raw shell output.
	MessageOutput MessageType = "output"
)

// Message is what hub subscribers receive.
type Message struct {
	Type   MessageType     `json:"type"`
	Event  *shellint.Event `json:"event,omitempty"`
	Output []byte          `json:"-"`
}

// Hub fans messages out to subscribers. Slow subscribers lose messages
// rather than stalling the shell.
type Hub struct {
	mu    sync.Mutex
	subs  map[chan Message]struct{}
	depth int
	log   *clog.Logger
}

func newHub(log *clog.Logger) *Hub {
	return &Hub{subs: make(map[chan Message]struct{}), depth: 256, log: log}
}

// Subscribe returns a message channel and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, h.depth)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug("hub subscribe", "subs", n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
			h.log.Debug("hub unsubscribe")
		})
	}
}

func (h *Hub) publish(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dropped := 0
	for ch := range h.subs {
		select {
		case ch <- m:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.log.Warn("hub dropped message", "type", m.Type, "subs", dropped)
	}
}
