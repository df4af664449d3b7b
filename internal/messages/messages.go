// Package messages records user-facing alerts so they can be reviewed later
// on the Messages tab.
package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/maloquacious/backdrop/internal/logger"
	"github.com/maloquacious/backdrop/internal/store"
)

// Key is the storage key holding the JSON-encoded history.
const Key = "error_history"

// DefaultLimit is how many messages are kept when no limit is configured.
const DefaultLimit = 10

// Message is one recorded alert.
type Message struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}

// Age describes how long ago the message was recorded, relative to now.
func (m Message) Age(now time.Time) string {
	return humanize.RelTime(m.CreatedAt, now, "ago", "from now")
}

// History is a bounded, newest-first list of messages kept in a store.KeyValue.
type History struct {
	kv    store.KeyValue
	limit int
	log   logger.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewHistory returns a History keeping at most limit messages.
func NewHistory(kv store.KeyValue, limit int, log logger.Logger) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = logger.Default
	}
	return &History{kv: kv, limit: limit, log: log, now: time.Now}
}

// List returns the recorded messages, newest first. Unreadable history is
// logged and reported as empty.
func (h *History) List(ctx context.Context) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listLocked(ctx)
}

func (h *History) listLocked(ctx context.Context) []Message {
	raw, found, err := h.kv.Get(ctx, Key)
	if err != nil {
		h.log.Warn("messages: read history: %v", err)
		return nil
	}
	if !found || raw == "" {
		return nil
	}
	var list []Message
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		h.log.Warn("messages: decode history: %v", err)
		return nil
	}
	return list
}

// Add records a new message at the front of the history and returns the
// updated list.
func (h *History) Add(ctx context.Context, title, body string) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := Message{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		CreatedAt: h.now().UTC(),
	}
	list := append([]Message{msg}, h.listLocked(ctx)...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}

	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	if err := h.kv.Set(ctx, Key, string(data)); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return list, nil
}

// Clear removes every recorded message.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.kv.Remove(ctx, Key); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
