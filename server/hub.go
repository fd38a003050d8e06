package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"streamchat/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dev server, any origin
	},
}

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	user model.User
	room string // current room id, "" when not in a room
}

type frame struct {
	client *Client
	msg    model.Message
}

// Hub routes frames between connected clients. All routing state is owned
// by the Run goroutine; register, unregister and inbound are its inputs.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan frame
	users      chan chan []model.User
	store      *Store
}

func NewHub(store *Store) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan frame),
		users:      make(chan chan []model.User),
		store:      store,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.byUser[c.user.ID] = c
			h.deliver(c, model.Message{
				Type:      model.TypeSystem,
				Content:   fmt.Sprintf("Welcome, %s", c.user.Username),
				Timestamp: time.Now(),
			})
		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			if c.room != "" {
				h.leaveRoom(c, c.room)
			}
			delete(h.clients, c)
			delete(h.byUser, c.user.ID)
			close(c.send)
		case f := <-h.inbound:
			h.route(f.client, f.msg)
		case reply := <-h.users:
			out := make([]model.User, 0, len(h.byUser))
			for _, c := range h.byUser {
				out = append(out, c.user)
			}
			reply <- out
		}
	}
}

// Users snapshots the connected-user directory.
func (h *Hub) Users() []model.User {
	reply := make(chan []model.User, 1)
	h.users <- reply
	return <-reply
}

func (h *Hub) route(c *Client, msg model.Message) {
	switch msg.Type {
	case "join_room":
		h.joinRoom(c, msg.Content)
	case "leave_room":
		h.leaveRoom(c, msg.Content)
	case model.TypeText:
		switch {
		case msg.Room != "":
			h.roomText(c, msg)
		case msg.Recipient != "":
			h.privateText(c, msg)
		}
	default:
		log.Printf("ignoring frame with type %q from %s", msg.Type, c.user.ID)
	}
}

// joinRoom moves c into roomID. A join while already in another room
// implicitly leaves it first, mirroring the client's behavior so both sides
// agree the user occupies at most one room.
func (h *Hub) joinRoom(c *Client, roomID string) {
	if c.room == roomID {
		return
	}
	if c.room != "" {
		h.leaveRoom(c, c.room)
	}
	if !h.store.Join(roomID, c.user.ID) {
		h.deliver(c, model.Message{
			Type:      model.TypeSystem,
			Content:   "No such room",
			Timestamp: time.Now(),
		})
		return
	}
	c.room = roomID
	h.broadcast(roomID, model.Message{
		Type:      model.TypeJoin,
		Content:   fmt.Sprintf("%s joined the room", c.user.Username),
		Room:      roomID,
		Timestamp: time.Now(),
	})
}

func (h *Hub) leaveRoom(c *Client, roomID string) {
	if c.room != roomID {
		return
	}
	h.store.Leave(roomID, c.user.ID)
	c.room = ""
	h.broadcast(roomID, model.Message{
		Type:      model.TypeLeave,
		Content:   fmt.Sprintf("%s left the room", c.user.Username),
		Room:      roomID,
		Timestamp: time.Now(),
	})
}

func (h *Hub) roomText(c *Client, msg model.Message) {
	if c.room != msg.Room {
		return
	}
	msg.Sender = c.user.Username
	msg.SenderID = c.user.ID
	msg.Timestamp = time.Now()
	h.broadcast(msg.Room, msg)
}

// privateText reclassifies a recipient-addressed text frame and delivers it
// to both parties; the sender's copy is its echo.
func (h *Hub) privateText(c *Client, msg model.Message) {
	msg.Type = model.TypePrivate
	msg.Sender = c.user.Username
	msg.SenderID = c.user.ID
	msg.Timestamp = time.Now()
	if rc, ok := h.byUser[msg.Recipient]; ok {
		h.deliver(rc, msg)
	}
	h.deliver(c, msg)
}

func (h *Hub) broadcast(roomID string, msg model.Message) {
	for _, id := range h.store.Members(roomID) {
		if c, ok := h.byUser[id]; ok {
			h.deliver(c, msg)
		}
	}
}

func (h *Hub) deliver(c *Client, msg model.Message) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer; drop it.
		if c.room != "" {
			h.store.Leave(c.room, c.user.ID)
			c.room = ""
		}
		delete(h.clients, c)
		delete(h.byUser, c.user.ID)
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read: %v", err)
			}
			break
		}
		msg, err := model.Decode(raw)
		if err != nil {
			log.Printf("invalid frame from %s: %v", c.user.ID, err)
			continue
		}
		c.hub.inbound <- frame{client: c, msg: msg}
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
			// One JSON object per frame; the client decodes frame-wise.
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

// serveWs upgrades the connection and registers the client. Identity comes
// from the user_id and username query parameters.
func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	username := r.URL.Query().Get("username")
	if userID == "" || username == "" {
		http.Error(w, "user_id and username required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		user: model.User{ID: userID, Username: username},
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
