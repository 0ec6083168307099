package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marquee/internal/game"
)

const maxChatLength = 500

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub keeps the live sockets grouped by session and fans server events out
// to every seated player in a room.
type Hub struct {
	svc *game.Service
	log *slog.Logger

	mu    sync.Mutex
	rooms map[int64]map[*Client]bool
}

func NewHub(svc *game.Service, logger *slog.Logger) *Hub {
	return &Hub{
		svc:   svc,
		log:   logger,
		rooms: make(map[int64]map[*Client]bool),
	}
}

// ServeWs upgrades the request and seats the connection in its session room.
// The caller has already authenticated the user; membership is checked here
// so a token for another session's player cannot listen in.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, sessionID int64, userID, username string) {
	ok, err := h.svc.IsMember(r.Context(), sessionID, userID)
	if err != nil {
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not a session member", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "session_id", sessionID, "err", err)
		return
	}

	c := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 64),
		sessionID: sessionID,
		userID:    userID,
		username:  username,
	}
	h.join(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[c.sessionID] = room
	}
	room[c] = true
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.svc.SetConnected(ctx, c.sessionID, c.userID, true); err != nil {
		h.log.Error("mark connected failed", "session_id", c.sessionID, "user_id", c.userID, "err", err)
	}
	h.log.Info("player connected", "session_id", c.sessionID, "user_id", c.userID)

	h.broadcast(c.sessionID, EvtPlayerConnected, playerPayload{UserID: c.userID, Username: c.username})
	h.broadcastState(ctx, c.sessionID)
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.sessionID]
	if ok && room[c] {
		delete(room, c)
		close(c.send)
		if len(room) == 0 {
			delete(h.rooms, c.sessionID)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.svc.SetConnected(ctx, c.sessionID, c.userID, false); err != nil {
		h.log.Error("mark disconnected failed", "session_id", c.sessionID, "user_id", c.userID, "err", err)
	}
	h.log.Info("player disconnected", "session_id", c.sessionID, "user_id", c.userID)

	h.broadcast(c.sessionID, EvtPlayerDisconnected, playerPayload{UserID: c.userID, Username: c.username})
}

// broadcast sends one event to every socket in the room. A client whose send
// buffer is full is dropped; its pumps clean up on the closed channel.
func (h *Hub) broadcast(sessionID int64, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Error("encode broadcast failed", "type", msgType, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[sessionID] {
		select {
		case c.send <- data:
		default:
			delete(h.rooms[sessionID], c)
			close(c.send)
		}
	}
}

func (h *Hub) broadcastState(ctx context.Context, sessionID int64) {
	view, err := h.svc.SessionState(ctx, sessionID)
	if err != nil {
		h.log.Error("session state load failed", "session_id", sessionID, "err", err)
		return
	}
	h.broadcast(sessionID, EvtSessionState, view)
	if view.Status == game.SessionLobby && view.AllReady() {
		h.broadcast(sessionID, EvtAllReady, nil)
	}
}

func (h *Hub) sendTo(c *Client, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		h.log.Error("encode send failed", "type", msgType, "err", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// AnnounceReady mirrors a ready toggle into the room however it arrived,
// socket command or REST call.
func (h *Hub) AnnounceReady(ctx context.Context, sessionID int64, userID, username string, ready bool) {
	evt := EvtPlayerReady
	if !ready {
		evt = EvtPlayerUnready
	}
	h.broadcast(sessionID, evt, playerPayload{UserID: userID, Username: username})
	h.broadcastState(ctx, sessionID)
}

// AnnounceStart pushes game_started with the seated player list, then the
// full state so late decoders can reconcile from one frame.
func (h *Hub) AnnounceStart(sessionID int64, view game.SessionView) {
	h.broadcast(sessionID, EvtGameStarted, view)
	h.broadcast(sessionID, EvtSessionState, view)
}

// AnnounceEnd republishes the final state after the host ends the session.
func (h *Hub) AnnounceEnd(sessionID int64, view game.SessionView) {
	h.broadcast(sessionID, EvtSessionState, view)
}

// AnnounceWeek pushes an advance report to a session room. Used by the HTTP
// advance endpoint so socket listeners see ticks triggered over REST too.
func (h *Hub) AnnounceWeek(ctx context.Context, sessionID int64, report game.AdvanceReport) {
	h.broadcast(sessionID, EvtWeekAdvanced, report)
	h.broadcastState(ctx, sessionID)
}
