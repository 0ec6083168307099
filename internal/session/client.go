package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"marquee/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	handleTimeout  = 15 * time.Second
)

// Client is one player's socket inside a session room.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID int64
	userID    string
	username  string
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Error("websocket read failed", "session_id", c.sessionID, "user_id", c.userID, "err", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.sendTo(c, EvtError, errorEvent{Message: "malformed frame"})
			continue
		}
		c.handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	switch env.Type {
	case CmdReady, CmdUnready:
		ready := env.Type == CmdReady
		if _, err := c.hub.svc.SetReady(ctx, c.sessionID, c.userID, ready); err != nil {
			c.fail(err)
			return
		}
		c.hub.AnnounceReady(ctx, c.sessionID, c.userID, c.username, ready)

	case CmdStart:
		view, err := c.hub.svc.StartSession(ctx, c.sessionID, c.userID)
		if err != nil {
			c.fail(err)
			return
		}
		c.hub.AnnounceStart(c.sessionID, view)

	case CmdAdvance:
		report, err := c.hub.svc.AdvanceSessionWeek(ctx, c.sessionID, c.userID)
		if err != nil {
			c.fail(err)
			return
		}
		c.hub.AnnounceWeek(ctx, c.sessionID, report)

	case CmdChat:
		var p chatPayload
		if env.Payload != nil {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				c.hub.sendTo(c, EvtError, errorEvent{Message: "malformed chat payload"})
				return
			}
		}
		p.Text = truncateChat(strings.TrimSpace(p.Text))
		if p.Text == "" {
			return
		}
		c.hub.broadcast(c.sessionID, EvtChat, chatEvent{
			UserID:    c.userID,
			Username:  c.username,
			Text:      p.Text,
			Timestamp: time.Now().UTC(),
		})

	case CmdState:
		view, err := c.hub.svc.SessionState(ctx, c.sessionID)
		if err != nil {
			c.fail(err)
			return
		}
		c.hub.sendTo(c, EvtSessionState, view)

	default:
		c.hub.sendTo(c, EvtError, errorEvent{Message: "unknown message type"})
	}
}

// fail reports a command error back to the one client that issued it,
// translating domain sentinels into stable wire messages.
func (c *Client) fail(err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, game.ErrNotHost):
		msg = "only the host can do that"
	case errors.Is(err, game.ErrPlayersNotReady):
		msg = "not every player is ready"
	case errors.Is(err, game.ErrAdvanceInFlight):
		msg = "a week advance is already running"
	case errors.Is(err, game.ErrNotSessionMember):
		msg = "not a session member"
	case errors.Is(err, game.ErrSessionNotFound):
		msg = "session not found"
	case errors.Is(err, game.ErrSessionNotJoinable):
		msg = "session is not in the lobby"
	case errors.Is(err, game.ErrSessionNotActive):
		msg = "session has not started"
	default:
		c.hub.log.Error("session command failed", "session_id", c.sessionID, "user_id", c.userID, "err", err)
	}
	c.hub.sendTo(c, EvtError, errorEvent{Message: msg})
}
