package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/careview/backend/internal/auth"
	"github.com/careview/backend/internal/notifications"
	"github.com/careview/backend/pkg/logger"
	"github.com/careview/backend/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 16 // 64 KiB

	// DefaultPingInterval is how often the hub pings every live socket.
	DefaultPingInterval = 30 * time.Second

	// DefaultSweepInterval is how often idle sockets are checked.
	DefaultSweepInterval = time.Minute

	// DefaultIdleTimeout is the inactivity window after which a socket is
	// terminated without a close handshake.
	DefaultIdleTimeout = 5 * time.Minute
)

// Message is the envelope every hub push uses on the wire.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// inbound is the client-to-server envelope.
type inbound struct {
	Type string `json:"type"`
	Data struct {
		RoomName       string `json:"roomName"`
		NotificationID string `json:"notificationId"`
	} `json:"data"`
}

// Stats is a point-in-time snapshot of hub occupancy.
type Stats struct {
	TotalConnections  int            `json:"totalConnections"`
	ConnectionsByRole map[string]int `json:"connectionsByRole"`
	ActiveRooms       int            `json:"activeRooms"`
}

// Config tunes hub timers; zero values use the defaults above.
type Config struct {
	PingInterval  time.Duration
	SweepInterval time.Duration
	IdleTimeout   time.Duration
	Clock         func() time.Time
}

// Hub tracks one authenticated socket per user and a set of ad-hoc rooms, and
// offers targeted delivery primitives that report how many sockets accepted a
// message. It also implements notifications.Sink so freshly created
// notifications are pushed to their owner's live socket.
type Hub struct {
	sessions      *auth.SessionService
	notifications *notifications.Store
	upgrader      websocket.Upgrader
	log           *zap.Logger

	pingInterval  time.Duration
	sweepInterval time.Duration
	idleTimeout   time.Duration
	now           func() time.Time

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	user      *auth.Session
	sessionID string

	writeMu sync.Mutex

	activityMu   sync.Mutex
	lastActivity time.Time
}

// NewHub constructs a hub over the supplied session registry and notification
// store.
func NewHub(sessions *auth.SessionService, store *notifications.Store, cfg Config) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Hub{
		sessions:      sessions,
		notifications: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:           logger.WithModule("realtime"),
		pingInterval:  cfg.PingInterval,
		sweepInterval: cfg.SweepInterval,
		idleTimeout:   cfg.IdleTimeout,
		now:           cfg.Clock,
		clients:       make(map[string]*client),
		rooms:         make(map[string]map[string]struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the ping and idle-sweep timers. Stop ends them.
func (h *Hub) Start() {
	go h.run()
}

// Stop shuts the timers down and closes every tracked socket.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) run() {
	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	sweep := time.NewTicker(h.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ping.C:
			h.pingAll()
		case <-sweep.C:
			h.sweepIdle()
		}
	}
}

// Serve upgrades the request to a websocket and authenticates it. Sockets
// carrying no token, or a token that does not resolve to a live session, are
// closed with a policy-violation code before any message flows.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	token := extractToken(r)
	if token == "" {
		closeWith(conn, websocket.ClosePolicyViolation, "authentication token missing")
		return
	}

	authCtx := h.sessions.VerifyToken(r.Context(), token)
	if authCtx == nil {
		closeWith(conn, websocket.ClosePolicyViolation, "authentication token invalid")
		return
	}

	c := &client{
		hub:          h,
		conn:         conn,
		user:         authCtx.User,
		sessionID:    authCtx.SessionID,
		lastActivity: h.now(),
	}

	h.register(c)

	c.send(Message{Type: "connection", Data: map[string]interface{}{
		"status":    "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}})
	c.send(Message{Type: "unread_count", Data: map[string]interface{}{
		"count": h.notifications.UnreadCount(r.Context(), c.user.UserID),
	}})

	h.log.Info("websocket connected",
		zap.String("user_id", c.user.UserID),
		zap.String("role", c.user.Role))

	c.readLoop()
}

// register tracks the client under its user ID, displacing any previous
// socket for the same user.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	previous := h.clients[c.user.UserID]
	h.clients[c.user.UserID] = c
	h.mu.Unlock()

	if previous != nil {
		_ = previous.conn.Close()
	}

	metrics.WebsocketConnections.WithLabelValues(c.user.Role).Inc()
}

// removeClient untracks c. The map is only cleared when it still points at c,
// so a socket displaced by a fresh login cannot evict its replacement on the
// way out.
func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	current, ok := h.clients[c.user.UserID]
	if ok && current == c {
		delete(h.clients, c.user.UserID)
		h.leaveAllRoomsLocked(c.user.UserID)
		metrics.WebsocketConnections.WithLabelValues(c.user.Role).Dec()
	}
	h.mu.Unlock()
}

func (c *client) readLoop() {
	defer func() {
		c.hub.removeClient(c)
		_ = c.conn.Close()
		c.hub.log.Info("websocket disconnected", zap.String("user_id", c.user.UserID))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.touch()
		c.hub.handleMessage(c, payload)
	}
}

func (c *client) touch() {
	c.activityMu.Lock()
	c.lastActivity = c.hub.now()
	c.activityMu.Unlock()
}

func (c *client) idleSince() time.Time {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	return c.lastActivity
}

// send writes one envelope, serialised per client by the write mutex.
func (c *client) send(m Message) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(m); err != nil {
		c.hub.log.Warn("websocket send failed",
			zap.String("user_id", c.user.UserID), zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) handleMessage(c *client, payload []byte) {
	var msg inbound
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.log.Warn("invalid websocket payload",
			zap.String("user_id", c.user.UserID), zap.Error(err))
		return
	}

	switch msg.Type {
	case "ping":
		c.send(Message{Type: "pong", Data: map[string]interface{}{
			"timestamp": h.now().UTC().Format(time.RFC3339),
		}})

	case "join_room":
		if msg.Data.RoomName != "" {
			h.joinRoom(c, msg.Data.RoomName)
		}

	case "leave_room":
		if msg.Data.RoomName != "" {
			h.leaveRoom(c, msg.Data.RoomName)
		}

	case "mark_notification_read":
		if msg.Data.NotificationID != "" {
			ctx := context.Background()
			h.notifications.MarkAsRead(ctx, msg.Data.NotificationID, c.user.UserID)
			c.send(Message{Type: "unread_count", Data: map[string]interface{}{
				"count": h.notifications.UnreadCount(ctx, c.user.UserID),
			}})
		}

	default:
		h.log.Warn("unknown websocket message type",
			zap.String("type", msg.Type), zap.String("user_id", c.user.UserID))
	}
}

func (h *Hub) joinRoom(c *client, room string) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[c.user.UserID] = struct{}{}
	metrics.WebsocketRooms.Set(float64(len(h.rooms)))
	h.mu.Unlock()

	c.send(Message{Type: "room_joined", Data: map[string]interface{}{
		"roomName":  room,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}})
}

func (h *Hub) leaveRoom(c *client, room string) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if ok {
		delete(members, c.user.UserID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
		metrics.WebsocketRooms.Set(float64(len(h.rooms)))
	}
	h.mu.Unlock()

	if ok {
		c.send(Message{Type: "room_left", Data: map[string]interface{}{
			"roomName":  room,
			"timestamp": h.now().UTC().Format(time.RFC3339),
		}})
	}
}

func (h *Hub) leaveAllRoomsLocked(userID string) {
	for room, members := range h.rooms {
		delete(members, userID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	metrics.WebsocketRooms.Set(float64(len(h.rooms)))
}

// SendToUser delivers one message to the user's socket. Returns false when the
// user has no registered socket or the write fails.
func (h *Hub) SendToUser(userID string, m Message) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		metrics.PushesDelivered.WithLabelValues("skipped").Inc()
		return false
	}

	if !c.send(m) {
		metrics.PushesDelivered.WithLabelValues("skipped").Inc()
		return false
	}
	metrics.PushesDelivered.WithLabelValues("sent").Inc()
	return true
}

// Broadcast delivers m to every tracked socket, returning the number of
// successful writes.
func (h *Hub) Broadcast(m Message) int {
	sent := 0
	for _, c := range h.snapshot() {
		if c.send(m) {
			sent++
		}
	}
	return sent
}

// SendToRole delivers m to every socket whose session carries the role.
func (h *Hub) SendToRole(role string, m Message) int {
	sent := 0
	for _, c := range h.snapshot() {
		if c.user.Role != role {
			continue
		}
		if c.send(m) {
			sent++
		}
	}
	return sent
}

// SendToRoom delivers m to every member of the room currently holding a
// socket. A room nobody occupies yields 0.
func (h *Hub) SendToRoom(room string, m Message) int {
	h.mu.RLock()
	members := make([]string, 0, len(h.rooms[room]))
	for userID := range h.rooms[room] {
		members = append(members, userID)
	}
	h.mu.RUnlock()

	sent := 0
	for _, userID := range members {
		if h.SendToUser(userID, m) {
			sent++
		}
	}
	return sent
}

// NotificationCreated pushes a freshly created notification and the updated
// unread counter to the owner's live socket, if any.
func (h *Hub) NotificationCreated(ctx context.Context, n *notifications.Notification) {
	if !h.SendToUser(n.UserID, Message{Type: "notification", Data: n}) {
		return
	}
	h.SendToUser(n.UserID, Message{Type: "unread_count", Data: map[string]interface{}{
		"count": h.notifications.UnreadCount(ctx, n.UserID),
	}})
}

// StatsSnapshot reports current connection and room occupancy.
func (h *Hub) StatsSnapshot() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		TotalConnections:  len(h.clients),
		ConnectionsByRole: make(map[string]int),
		ActiveRooms:       len(h.rooms),
	}
	for _, c := range h.clients {
		stats.ConnectionsByRole[c.user.Role]++
	}
	return stats
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) pingAll() {
	for _, c := range h.snapshot() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
	}
}

// sweepIdle terminates sockets idle past the timeout without a close
// handshake; the read loop's error path untracks them.
func (h *Hub) sweepIdle() {
	cutoff := h.now().Add(-h.idleTimeout)
	for _, c := range h.snapshot() {
		if c.idleSince().Before(cutoff) {
			h.log.Info("closing idle websocket", zap.String("user_id", c.user.UserID))
			_ = c.conn.Close()
		}
	}
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
