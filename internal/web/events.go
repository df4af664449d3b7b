package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/maloquacious/backdrop/internal/background"
)

// broker fans background snapshots out to connected event streams. Each
// client holds at most one pending snapshot; a newer one replaces it.
type broker struct {
	mu      sync.Mutex
	clients map[chan background.Snapshot]struct{}
	closed  chan struct{}
	once    sync.Once
}

func newBroker() *broker {
	return &broker{
		clients: map[chan background.Snapshot]struct{}{},
		closed:  make(chan struct{}),
	}
}

func (b *broker) subscribe() chan background.Snapshot {
	ch := make(chan background.Snapshot, 1)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) unsubscribe(ch chan background.Snapshot) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// publish never blocks; it runs inside background.Store.Set.
func (b *broker) publish(snap background.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (b *broker) close() {
	b.once.Do(func() { close(b.closed) })
}

// backgroundEvent is what event streams see of a snapshot.
type backgroundEvent struct {
	Token string `json:"token,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.events.subscribe()
	defer s.events.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(snap background.Snapshot) error {
		data, err := json.Marshal(backgroundEvent{Token: backgroundToken(snap)})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: background\ndata: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(s.Background.Get()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.events.closed:
			return
		case snap := <-ch:
			if err := send(snap); err != nil {
				s.Log.Debug("web: event stream closed: %v", err)
				return
			}
		}
	}
}
