package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

const writeTimeout = 5 * time.Second

// Snapshot is one push frame: the feed's latest state. Frames are whole
// snapshots, not deltas, so a dropped frame costs nothing and the latest
// one always wins.
type Snapshot struct {
	OrgID         string         `json:"orgId"`
	Unread        int            `json:"unread"`
	Notifications []Notification `json:"notifications"`
	At            time.Time      `json:"at"`
}

// Hub tracks live websocket subscribers per organization and pushes feed
// snapshots to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]struct{} // orgID -> connections
}

// NewHub creates an empty stream hub. checkOrigin decides which browser
// origins may subscribe; nil allows all (tests, same-origin deployments).
func NewHub(checkOrigin func(r *http.Request) bool, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
		subs:   make(map[string]map[*websocket.Conn]struct{}),
	}
}

// HandleStream upgrades the request and registers the subscriber.
// GET /orgs/{orgID}/notifications/stream
func (h *Hub) HandleStream(orgID string, w http.ResponseWriter, r *http.Request) {
	if orgID == "" {
		http.Error(w, "missing org id", 400)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "org_id", orgID, "error", err)
		return
	}

	h.mu.Lock()
	if h.subs[orgID] == nil {
		h.subs[orgID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[orgID][conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("notification stream opened", "org_id", orgID)

	// Reads only serve to detect the peer closing.
	go func() {
		defer h.drop(orgID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Subscribed returns the org ids with at least one live subscriber.
func (h *Hub) Subscribed() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for orgID, conns := range h.subs {
		if len(conns) > 0 {
			out = append(out, orgID)
		}
	}
	return out
}

// Push sends a snapshot to every subscriber of the org. Connections that
// fail to accept the write are dropped.
func (h *Hub) Push(snapshot Snapshot) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[snapshot.OrgID]))
	for conn := range h.subs[snapshot.OrgID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(snapshot); err != nil {
			h.logger.Warn("stream push failed, dropping subscriber", "org_id", snapshot.OrgID, "error", err)
			h.drop(snapshot.OrgID, conn)
		}
	}
}

// Close drops every subscriber, used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for orgID, conns := range h.subs {
		for conn := range conns {
			conn.Close()
		}
		delete(h.subs, orgID)
	}
}

func (h *Hub) drop(orgID string, conn *websocket.Conn) {
	h.mu.Lock()
	if conns, ok := h.subs[orgID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, orgID)
		}
	}
	h.mu.Unlock()
	conn.Close()
}
