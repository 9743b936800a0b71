package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	room       *Room
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// PlayerID returns the room player this connection controls
func (c *Client) PlayerID() string {
	return c.playerID
}

// Detach drops the room binding after a server-side removal
func (c *Client) Detach() {
	c.room = nil
	c.playerID = ""
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
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
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
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

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgCreateRoom:
		c.handleCreateRoom(env.D)
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgLeaveRoom:
		c.handleLeaveRoom()
	case MsgToggleLock:
		c.inRoom(func(r *Room) error {
			_, err := r.ToggleLock(c.playerID)
			return err
		})
	case MsgKickPlayer:
		var msg KickMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return
		}
		c.inRoom(func(r *Room) error { return r.Kick(c.playerID, msg.PlayerID) })
	case MsgAddVirtual:
		var msg AddVirtualMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return
		}
		c.inRoom(func(r *Room) error {
			_, err := r.AddVirtual(c.playerID, msg.Profile)
			return err
		})
	case MsgStartGame:
		c.inRoom(func(r *Room) error { return r.Start(c.playerID) })
	case MsgMove:
		var msg TileMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return
		}
		c.inGame(func(r *Room) error { return r.HandleMove(c.playerID, msg.Pos) })
	case MsgDoor:
		var msg TileMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return
		}
		c.inGame(func(r *Room) error { return r.HandleDoor(c.playerID, msg.Pos) })
	case MsgCombat:
		var msg TileMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return
		}
		c.inGame(func(r *Room) error { return r.HandleCombat(c.playerID, msg.Pos) })
	case MsgAttack:
		c.inGame(func(r *Room) error { return r.HandleAttack(c.playerID) })
	case MsgEvade:
		c.inGame(func(r *Room) error { return r.HandleEvade(c.playerID) })
	case MsgEndTurn:
		c.inGame(func(r *Room) error { return r.HandleEndTurn(c.playerID) })
	case MsgToggleDebug:
		c.inGame(func(r *Room) error { return r.HandleToggleDebug(c.playerID) })
	case MsgSelectObject:
		var msg SelectObjectMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return
		}
		c.inGame(func(r *Room) error { return r.HandleSelectObject(c.playerID, msg.Drop) })
	}
}

// inRoom dispatches an action through the sender's room guard
func (c *Client) inRoom(action func(*Room) error) {
	room := c.room
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "not in a room"}})
		return
	}
	room.Dispatch(c, func() error { return action(room) })
}

// inGame additionally requires a started game
func (c *Client) inGame(action func(*Room) error) {
	room := c.room
	if room == nil || room.Game() == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "no game in progress"}})
		return
	}
	room.Dispatch(c, func() error { return action(room) })
}

func trimName(name string) string {
	if len(name) > maxNameLen {
		return name[:maxNameLen]
	}
	return name
}

func (c *Client) handleCreateRoom(data json.RawMessage) {
	var msg CreateRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.room != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "already in a room"}})
		return
	}
	m, err := c.hub.store.MapByID(msg.MapID)
	if err != nil {
		log.Printf("load map %s: %v", msg.MapID, err)
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "server error"}})
		return
	}
	if m == nil || !m.Visible {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "map not found"}})
		return
	}
	room := c.hub.rooms.CreateRoom(m)
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "too many active rooms"}})
		return
	}
	p, err := room.AddPlayer(c, trimName(msg.Name), msg.Avatar, msg.AttackD6, msg.BonusOnHealth)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.room = room
	c.playerID = p.ID
	if c.hub.journal != nil {
		c.hub.journal.Track(EvtRoomCreate, room.Code, m.ID)
	}
	c.SendJSON(Envelope{T: MsgCreated, Data: map[string]string{"code": room.Code, "pid": p.ID}})
	c.SendJSON(Envelope{T: MsgRoster, Data: room.Roster()})
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.room != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "already in a room"}})
		return
	}
	room := c.hub.rooms.Get(msg.Code)
	if room == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "room not found"}})
		return
	}
	p, err := room.AddPlayer(c, trimName(msg.Name), msg.Avatar, msg.AttackD6, msg.BonusOnHealth)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.room = room
	c.playerID = p.ID
	if c.hub.journal != nil {
		c.hub.journal.Track(EvtPlayerJoin, room.Code, p.ID)
	}
	c.SendJSON(Envelope{T: MsgJoined, Data: map[string]string{"code": room.Code, "pid": p.ID}})
	c.SendJSON(Envelope{T: MsgRoster, Data: room.Roster()})
}

func (c *Client) handleLeaveRoom() {
	room := c.room
	if room == nil {
		return
	}
	c.room = nil
	c.playerID = ""
	room.Leave(c)
}
