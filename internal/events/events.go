// Package events fans out transfer progress as JSON messages to any
// number of subscribed websocket clients. The transfer engine never
// imports gorilla/websocket directly; it publishes plain Event values
// to a Hub, and this package owns the wire format and the connection
// bookkeeping.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Kind identifies the sort of thing that happened.
type Kind string

const (
	KindHandshakeEstablished Kind = "handshake_established"
	KindUploadOpen           Kind = "upload_open"
	KindDownloadOpen         Kind = "download_open"
	KindFileClosed           Kind = "file_closed"
	KindRekey                Kind = "rekey"
	KindError                Kind = "error"
	KindConnectionClosed     Kind = "connection_closed"
)

// Event is one line of the live feed, marshaled to JSON for every
// subscriber exactly as received.
type Event struct {
	Kind      Kind      `json:"kind"`
	RemoteID  string    `json:"remote_id"`
	Path      string    `json:"path,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans out published events to every currently-subscribed
// listener. Publish never blocks on a slow subscriber: each has a
// bounded buffer, and a subscriber that falls behind is dropped rather
// than allowed to stall the server's transfer goroutines.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHub returns an empty Hub ready to accept subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Publish encodes e and delivers it to every current subscriber.
func (h *Hub) Publish(e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- body:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// subscribe registers a new listener channel and returns it along with
// an unsubscribe function.
func (h *Hub) subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
}
