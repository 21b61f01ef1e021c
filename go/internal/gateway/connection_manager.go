// Package gateway is the websocket edge: it owns client connections, delivers
// frames to them, and tracks which room group each connection belongs to.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Handler receives the lifecycle and inbound frames of every connection.
// Handle is called from the connection's read loop, one frame at a time.
type Handler interface {
	Connect(connectionID string)
	Handle(ctx context.Context, connectionID string, raw []byte)
	Disconnect(connectionID string)
}

// ConnectionManager manages websocket connections and their room groups.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	groups      map[string]map[string]*Connection

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// Connection represents a websocket connection to a client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Manager *ConnectionManager

	ConnectedAt time.Time

	send    chan []byte
	groups  map[string]bool // guarded by Manager.mu
	limiter *rate.Limiter

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int

	// RateLimit and RateBurst bound inbound frames per connection.
	RateLimit rate.Limit
	RateBurst int

	// AllowedOrigins is matched against the Origin header. "*" allows any.
	AllowedOrigins []string
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    25 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		RateLimit:       20,
		RateBurst:       40,
		AllowedOrigins:  []string{"*"},
	}
}

// NewConnectionManager creates a new websocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	cm := &ConnectionManager{
		connections: make(map[string]*Connection),
		groups:      make(map[string]map[string]*Connection),
		config:      config,
	}
	cm.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     cm.checkOrigin,
	}
	return cm
}

func (cm *ConnectionManager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(cm.config.AllowedOrigins, "*") || slices.Contains(cm.config.AllowedOrigins, origin)
}

// UpgradeConnection upgrades an HTTP connection to websocket and starts its
// pumps. handler is told about the connection before any frame is read.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, handler Handler) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Manager:     cm,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, cm.config.SendBuffer),
		groups:      make(map[string]bool),
		limiter:     rate.NewLimiter(cm.config.RateLimit, cm.config.RateBurst),
		ctx:         ctx,
		cancel:      cancel,
	}

	cm.registerConnection(connection)

	go connection.writePump()
	handler.Connect(connection.ID)
	go connection.readPump(handler)

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager and every group.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[conn.ID] != conn {
		return
	}
	delete(cm.connections, conn.ID)
	for group := range conn.groups {
		cm.leaveLocked(conn, group)
	}
	close(conn.send)

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

// Send queues msg for one connection. Unknown connections are ignored.
func (cm *ConnectionManager) Send(connectionID string, msg []byte) {
	cm.mu.RLock()
	conn, ok := cm.connections[connectionID]
	var slow *Connection
	if ok && !conn.enqueue(msg) {
		slow = conn
	}
	cm.mu.RUnlock()

	if slow != nil {
		cm.dropSlow(slow)
	}
}

// Broadcast queues msg for every connection in group.
func (cm *ConnectionManager) Broadcast(group string, msg []byte) {
	cm.BroadcastExcept(group, "", msg)
}

// BroadcastExcept queues msg for every connection in group but exceptID.
func (cm *ConnectionManager) BroadcastExcept(group, exceptID string, msg []byte) {
	var slow []*Connection

	cm.mu.RLock()
	for id, conn := range cm.groups[group] {
		if id == exceptID {
			continue
		}
		if !conn.enqueue(msg) {
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		cm.dropSlow(conn)
	}
}

func (cm *ConnectionManager) dropSlow(conn *Connection) {
	log.Warn().
		Str("connection_id", conn.ID).
		Msg("connection send buffer full, closing connection")
	conn.close()
}

// JoinGroup adds the connection to group. Unknown connections are ignored.
func (cm *ConnectionManager) JoinGroup(connectionID, group string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.connections[connectionID]
	if !ok {
		return
	}
	if cm.groups[group] == nil {
		cm.groups[group] = make(map[string]*Connection)
	}
	cm.groups[group][connectionID] = conn
	conn.groups[group] = true
}

// LeaveGroup removes the connection from group.
func (cm *ConnectionManager) LeaveGroup(connectionID, group string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if conn, ok := cm.connections[connectionID]; ok {
		cm.leaveLocked(conn, group)
	}
}

func (cm *ConnectionManager) leaveLocked(conn *Connection, group string) {
	delete(conn.groups, group)
	if members, ok := cm.groups[group]; ok {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(cm.groups, group)
		}
	}
}

// Close disconnects every connection.
func (cm *ConnectionManager) Close() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}

// ConnectionStats is a monitoring snapshot of the manager.
type ConnectionStats struct {
	TotalConnections int            `json:"totalConnections"`
	ActiveGroups     int            `json:"activeGroups"`
	GroupSizes       map[string]int `json:"groupSizes"`
}

// Stats returns statistics about active connections.
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	sizes := make(map[string]int, len(cm.groups))
	for group, members := range cm.groups {
		sizes[group] = len(members)
	}
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveGroups:     len(cm.groups),
		GroupSizes:       sizes,
	}
}

// enqueue must be called with Manager.mu held, so send is not closed underneath it.
func (c *Connection) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	})
}

// writePump sends queued frames and keepalive pings to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client frames and hands them to the handler until the
// connection fails, then reports the disconnect.
func (c *Connection) readPump(handler Handler) {
	defer func() {
		c.close()
		handler.Disconnect(c.ID)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			return
		}

		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}

		handler.Handle(c.ctx, c.ID, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
