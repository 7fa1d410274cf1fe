package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/boardsync"
	"github.com/arnold/taskflow-api/internal/store"
)

// Event types sent over WebSocket
const (
	EventBoardSnapshot = "board_snapshot"
	EventSyncError     = "sync_error"
	EventBoardDeleted  = "board_deleted"
)

// ClientIDHeader carries the id a websocket client was given in its first
// snapshot, so its own REST edits are not echoed back to it.
const ClientIDHeader = "X-Client-Id"

const (
	writeWait   = 10 * time.Second
	sendBuffer  = 32
	openTimeout = 10 * time.Second
)

// WSEvent is the JSON message sent to connected clients
type WSEvent struct {
	Type     string      `json:"type"`
	BoardID  string      `json:"boardId"`
	UserID   string      `json:"userId,omitempty"`
	ClientID string      `json:"clientId,omitempty"`
	Origin   string      `json:"origin,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// connection is one client socket. Messages are queued on send and written
// by a single goroutine.
type connection struct {
	id       string
	userID   string
	clientID string
	send     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// newConnection uses clientID, or the connection id when it is empty.
func newConnection(userID, clientID string) *connection {
	c := &connection{
		id:       uuid.NewString(),
		userID:   userID,
		clientID: clientID,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
	if c.clientID == "" {
		c.clientID = c.id
	}
	return c
}

// enqueue queues msg, closing the connection if the client is not keeping up.
func (c *connection) enqueue(msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		log.WithField("conn", c.id).Warn("WS send buffer full, dropping connection")
		c.close()
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *connection) writePump(ws *websocket.Conn) {
	// Closing the socket unblocks the read loop.
	defer ws.Close()
	write := func(msg []byte) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.WithError(err).WithField("conn", c.id).Debug("WS write error")
			c.close()
			return false
		}
		return true
	}
	for {
		select {
		case msg := <-c.send:
			if !write(msg) {
				return
			}
		case <-c.done:
			for {
				select {
				case msg := <-c.send:
					if !write(msg) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// Hub manages WebSocket connections per board and relays session events
// to them. It implements boardsync.Notifier.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*connection]bool // boardID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*connection]bool)}
}

// register adds a connection to a board room
func (h *Hub) register(boardID string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[boardID] == nil {
		h.rooms[boardID] = make(map[*connection]bool)
	}
	h.rooms[boardID][conn] = true
	log.WithFields(log.Fields{"user": conn.userID, "board": boardID, "total": len(h.rooms[boardID])}).Debug("WS register")
}

// unregister removes a connection from a board room
func (h *Hub) unregister(boardID string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[boardID]; ok {
		delete(conns, conn)
		log.WithFields(log.Fields{"user": conn.userID, "board": boardID, "remaining": len(conns)}).Debug("WS unregister")
		if len(conns) == 0 {
			delete(h.rooms, boardID)
		}
	}
}

// Connections returns the number of clients on a board.
func (h *Hub) Connections(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}

// Broadcast sends an event to a board room. Connections matching skip are
// left out; connections failing keep are closed. Either may be nil.
func (h *Hub) Broadcast(boardID string, event WSEvent, skip func(*connection) bool, keep func(*connection) bool) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("WS broadcast marshal error")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.rooms[boardID]
	log.WithFields(log.Fields{"event": event.Type, "board": boardID, "connections": len(conns)}).Debug("WS broadcast")
	for c := range conns {
		if keep != nil && !keep(c) {
			c.close()
			continue
		}
		if skip != nil && skip(c) {
			continue
		}
		c.enqueue(msg)
	}
}

// BoardChanged sends the new board to the room. A local change is not
// echoed to the client that made it, and users no longer on the board are
// disconnected.
func (h *Hub) BoardChanged(ch boardsync.Change) {
	event := WSEvent{
		Type:     EventBoardSnapshot,
		BoardID:  ch.BoardID,
		UserID:   ch.Actor,
		ClientID: ch.ClientID,
		Origin:   string(ch.Origin),
		Data:     ch.Board,
	}
	h.Broadcast(ch.BoardID, event,
		func(c *connection) bool {
			return ch.Origin == boardsync.OriginLocal && ch.ClientID != "" && c.clientID == ch.ClientID
		},
		func(c *connection) bool { return ch.Board.IsMember(c.userID) },
	)
}

// SyncError tells the room that a write from this server did not reach
// the store. Local state stays applied.
func (h *Hub) SyncError(boardID string, err error) {
	data := map[string]any{
		"error":            err.Error(),
		"permissionDenied": errors.Is(err, store.ErrPermissionDenied),
	}
	h.Broadcast(boardID, WSEvent{Type: EventSyncError, BoardID: boardID, Data: data}, nil, nil)
}

// BoardDeleted notifies the room and then closes it.
func (h *Hub) BoardDeleted(boardID string) {
	h.Broadcast(boardID, WSEvent{Type: EventBoardDeleted, BoardID: boardID}, nil, nil)
	h.mu.RLock()
	for c := range h.rooms[boardID] {
		c.close()
	}
	h.mu.RUnlock()
}

// snapshotMessage is the first message on a connection. It tells the
// client its id.
func snapshotMessage(boardID, clientID string, board any) []byte {
	msg, _ := json.Marshal(WSEvent{Type: EventBoardSnapshot, BoardID: boardID, ClientID: clientID, Data: board})
	return msg
}

// HandleWebSocket serves a board room: the current board first, then every
// change until the client goes away or the board is deleted.
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	boardID := c.Params("id")
	userID, _ := c.Locals("userId").(string)
	if userID == "" {
		c.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	s, release, err := h.sessions.Acquire(ctx, boardID)
	cancel()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).WithField("board", boardID).Error("WS open session")
		}
		c.Close()
		return
	}
	defer release()
	if !s.Current().IsMember(userID) {
		c.Close()
		return
	}

	conn := newConnection(userID, c.Query("clientId"))
	h.hub.register(boardID, conn)
	defer h.hub.unregister(boardID, conn)
	conn.enqueue(snapshotMessage(boardID, conn.clientID, s.Current()))

	written := make(chan struct{})
	go func() {
		defer close(written)
		conn.writePump(c)
	}()

	// Keep connection alive: read messages (client sends pings/keepalives)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	conn.close()
	<-written
}
