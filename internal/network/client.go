package network

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bringtheheat/server/internal/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1024
	// Minimum spacing between actions from one connection.
	actionCooldown = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The game is served from the same origin in production; dev runs
	// the frontend on another port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PlayerAction represents an incoming command from the frontend.
type PlayerAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client holds one player's connection, session, and lobby snapshot
// subscription.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	session        engine.Session
	unwatch        func()
	lastActionTime time.Time
}

// ServeWS upgrades the HTTP request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed: " + err.Error())
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// readPump pumps actions from the websocket connection into the engine.
func (c *Client) readPump() {
	defer func() {
		if c.unwatch != nil {
			c.unwatch()
		}
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket read error: " + err.Error())
			}
			break
		}

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Error("Failed to parse PlayerAction from WebSocket. err: " + err.Error())
			continue
		}
		c.handlePlayerAction(action)
	}
}

// writePump pumps messages from the send channel to the websocket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handlePlayerAction(action PlayerAction) {
	if time.Since(c.lastActionTime) < actionCooldown {
		c.hub.logger.Warn("Rate limit exceeded for client action " + action.Type)
		return
	}
	c.lastActionTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch action.Type {
	case "CREATE_LOBBY", "JOIN_LOBBY":
		c.handleEnter(ctx, action)
		return
	}

	if c.session.PlayerID == "" {
		c.sendError("join a lobby first")
		return
	}

	var err error
	switch action.Type {
	case "START_GAME":
		err = c.hub.engine.StartGame(ctx, c.session)
	case "VOTE":
		var p struct {
			Node string `json:"node"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.CastVote(ctx, c.session, p.Node)
		}
	case "CHARGE":
		var p struct {
			Amount int `json:"amount"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.SubmitCharge(ctx, c.session, p.Amount)
		}
	case "DRAW":
		err = c.hub.engine.SubmitDraw(ctx, c.session)
	case "ATTACK":
		var p struct {
			Target int `json:"target"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.SubmitAttack(ctx, c.session, p.Target)
		}
	case "END_TURN":
		err = c.hub.engine.SubmitEndTurn(ctx, c.session)
	case "CONTINUE":
		err = c.hub.engine.Continue(ctx, c.session)
	case "BUY":
		var p struct {
			Index int `json:"index"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.Purchase(ctx, c.session, p.Index)
		}
	case "ADD_CARD_BEGIN":
		err = c.hub.engine.BeginAddCard(ctx, c.session)
	case "ADD_CARD":
		var p struct {
			Value int `json:"value"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.ChooseAddCard(ctx, c.session, p.Value)
		}
	case "REMOVE_CARD":
		var p struct {
			Value int `json:"value"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.RemoveCard(ctx, c.session, p.Value)
		}
	case "EVENT_CHOICE":
		var p struct {
			Choice string `json:"choice"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.ChooseEventEffect(ctx, c.session, p.Choice)
		}
	case "REWARD_CHOICE":
		var p struct {
			Choice string `json:"choice"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.ChooseReward(ctx, c.session, p.Choice)
		}
	case "REVIVE":
		var p struct {
			Target string `json:"target"`
		}
		if err = json.Unmarshal(action.Payload, &p); err == nil {
			err = c.hub.engine.Revive(ctx, c.session, p.Target)
		}
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: " + action.Type)
		return
	}

	if err != nil {
		c.sendError(err.Error())
	}
}

// handleEnter mints the client's session and wires the lobby snapshot
// feed.
func (c *Client) handleEnter(ctx context.Context, action PlayerAction) {
	var p struct {
		Code string `json:"code,omitempty"`
		Name string `json:"name"`
		Deck string `json:"deck"`
	}
	if err := json.Unmarshal(action.Payload, &p); err != nil {
		c.sendError("bad payload")
		return
	}

	var (
		sess engine.Session
		err  error
	)
	if action.Type == "CREATE_LOBBY" {
		sess, err = c.hub.engine.CreateLobby(ctx, p.Name, p.Deck)
	} else {
		sess, err = c.hub.engine.JoinLobby(ctx, p.Code, p.Name, p.Deck)
	}
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.session = sess
	c.hub.attach(c, sess.Lobby)
	if c.unwatch != nil {
		c.unwatch()
	}
	c.unwatch = c.hub.engine.WatchLobby(sess.Lobby, func(snapshot json.RawMessage) {
		c.sendMessage(Message{Type: "state", Timestamp: time.Now().Unix(), Payload: snapshot})
	})
	c.sendMessage(Message{Type: "session", Timestamp: time.Now().Unix(), Payload: sess})
}

func (c *Client) sendMessage(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		// Slow consumer; the pump will clean up on the next write.
	}
}

func (c *Client) sendError(text string) {
	c.sendMessage(Message{Type: "error", Timestamp: time.Now().Unix(), Payload: text})
}
