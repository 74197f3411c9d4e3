package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/infra/metrics"
)

// ─── Live Synthesis Feed (websocket) ────────────────────────────────────────

const (
	liveWriteWait = 10 * time.Second
	livePongWait  = 60 * time.Second
	livePingEvery = (livePongWait * 9) / 10
	liveBuffer    = 8
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// LiveMessage is one frame on the live feed.
type LiveMessage struct {
	Type      string              `json:"type"` // hello | synthesis
	Synthesis *domain.AISynthesis `json:"synthesis"`
	Loading   bool                `json:"loading"`
	Insights  []domain.Insight    `json:"insights,omitempty"`
}

// LiveHub fans every stored synthesis out to connected websocket clients.
// Slow clients miss frames rather than block the orchestrator.
type LiveHub struct {
	pulse *pulse.Pulse
	unsub func()

	mu      sync.Mutex
	clients map[chan LiveMessage]struct{}
}

// NewLiveHub subscribes a hub to the engine's publish stream.
func NewLiveHub(p *pulse.Pulse) *LiveHub {
	h := &LiveHub{pulse: p, clients: make(map[chan LiveMessage]struct{})}
	h.unsub = p.Orchestrator().Subscribe(h.Broadcast)
	return h
}

// Broadcast pushes syn to every client without blocking.
func (h *LiveHub) Broadcast(syn domain.AISynthesis) {
	msg := LiveMessage{Type: "synthesis", Synthesis: &syn, Insights: h.pulse.Insights("")}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close detaches the hub from the engine.
func (h *LiveHub) Close() {
	if h.unsub != nil {
		h.unsub()
	}
}

func (h *LiveHub) add() chan LiveMessage {
	ch := make(chan LiveMessage, liveBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	metrics.LiveSubscribers.Inc()
	return ch
}

func (h *LiveHub) remove(ch chan LiveMessage) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	metrics.LiveSubscribers.Dec()
}

// HandleLive upgrades to a websocket, sends a hello frame with the current
// state, then streams each new synthesis until the client goes away.
func (h *LiveHub) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := h.add()
	defer h.remove(ch)

	if err := conn.SetReadDeadline(time.Now().Add(livePongWait)); err != nil {
		log.Printf("[api] live set read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	// Reader: drains control frames and notices disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello := LiveMessage{Type: "hello", Loading: h.pulse.Loading(), Insights: h.pulse.Insights("")}
	if syn, ok := h.pulse.Synthesis(); ok {
		hello.Synthesis = &syn
	}
	if err := writeLive(conn, hello); err != nil {
		return
	}

	ticker := time.NewTicker(livePingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if err := writeLive(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeLive(conn *websocket.Conn, msg LiveMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
