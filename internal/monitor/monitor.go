// Package monitor streams per-block scope-meter frames (peak/RMS per
// output channel, active voice count) to connected websocket clients,
// so an external UI can show a running render's levels without polling.
package monitor

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Frame is one block's worth of meter data, broadcast to every
// connected client as JSON.
type Frame struct {
	Channels []ChannelLevel `json:"channels"`
	Voices   int            `json:"voices"`
	Elapsed  string         `json:"elapsed"`
}

// ChannelLevel is the peak and RMS amplitude observed in one output
// channel over the most recently rendered block.
type ChannelLevel struct {
	Channel int     `json:"channel"`
	Peak    float64 `json:"peak"`
	RMS     float64 `json:"rms"`
}

// NewFrame computes peak/RMS for each channel's block of samples.
func NewFrame(blocks [][]float64, voices int, elapsed time.Duration) Frame {
	levels := make([]ChannelLevel, len(blocks))
	for ch, block := range blocks {
		var peak, sumSq float64
		for _, s := range block {
			a := s
			if a < 0 {
				a = -a
			}
			if a > peak {
				peak = a
			}
			sumSq += s * s
		}
		rms := 0.0
		if len(block) > 0 {
			rms = math.Sqrt(sumSq / float64(len(block)))
		}
		levels[ch] = ChannelLevel{Channel: ch, Peak: peak, RMS: rms}
	}
	now := time.Now()
	return Frame{Channels: levels, Voices: voices, Elapsed: humanize.RelTime(now.Add(-elapsed), now, "ago", "")}
}

// client wraps one upgraded connection with the send-side mutex
// gorilla/websocket requires: concurrent writers to one *Conn are not
// safe.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub is a broadcast server: one render session owns one Hub, any
// number of monitor UIs connect as clients.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades an incoming request to a websocket connection and
// registers it as a monitor client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		conn.Close()
	}()

	// Monitor clients are read-only consumers of the meter stream; any
	// inbound message just keeps the connection alive until it errors
	// or closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends frame to every connected client, dropping and
// unregistering any that errors on write.
func (h *Hub) Broadcast(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("monitor: encode frame: %w", err)
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var lastErr error
	var dead []string
	for _, c := range clients {
		if err := c.send(payload); err != nil {
			lastErr = err
			dead = append(dead, c.id)
		}
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, id := range dead {
			delete(h.clients, id)
		}
		h.mu.Unlock()
	}
	return lastErr
}

// ClientCount reports how many monitor UIs are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
