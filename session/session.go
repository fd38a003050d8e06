// Package session holds the client-side chat state: who is logged in, which
// room is current, which private conversation is open, and the cached
// history per peer. Inbound frames are classified here and routed to the
// display sink or the conversation store.
package session

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"streamchat/model"
)

// State is the session lifecycle position.
type State int

const (
	StateLoggedOut State = iota
	StateConnecting
	StateConnected
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged out"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in room"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrEmptyUsername  = errors.New("username required")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrNotInRoom      = errors.New("not in a room")
	ErrNoConversation = errors.New("no conversation open")
)

// Transport is the connection surface the session drives.
type Transport interface {
	Open(userID, username string)
	Send(v any) error
	Shutdown()
}

// Sink receives messages and notifications for display. Implementations are
// external to the core; the session only decides what to surface.
type Sink interface {
	// RoomMessage appends one message to the room timeline.
	RoomMessage(msg model.Message)
	// ConversationMessage appends one message to the open conversation.
	ConversationMessage(msg model.Message)
	// Notify fires an out-of-view notification.
	Notify(text string)
}

// Client is one logical login: identity, current room, open conversation
// and per-peer history. It is created once and reused across logins; Login
// resets it and Logout clears it.
//
// All calls are serialized by an internal mutex. Sink callbacks run after
// the lock is released, so implementations may block or call back into the
// session; frames delivered from a single goroutine reach the sink in
// arrival order.
type Client struct {
	mu   sync.Mutex
	tr   Transport
	sink Sink

	state   state
	convs   *Store
	dropped uint64
}

type state struct {
	phase       State
	self        model.User
	currentRoom string
	currentPeer *model.User
}

// New builds a logged-out client over the given transport. The sink may be
// attached later with SetSink, before the first login.
func New(tr Transport, sink Sink) *Client {
	return &Client{tr: tr, sink: sink, convs: NewStore()}
}

// SetSink attaches the display sink.
func (c *Client) SetSink(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Login allocates a fresh identity and opens the connection. Logging in
// while a session exists tears the old one down first; the transport epoch
// makes any of its pending reconnects stale.
func (c *Client) Login(username string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, ErrEmptyUsername
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != StateLoggedOut {
		c.logoutLocked()
	}
	self := model.User{ID: uuid.NewString(), Username: username}
	c.state = state{phase: StateConnecting, self: self}
	c.convs.Reset()
	c.tr.Open(self.ID, self.Username)
	return self, nil
}

// Logout ends the session from any state: identity, room, peer and cached
// conversations are cleared and the transport shut down.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutLocked()
}

func (c *Client) logoutLocked() {
	c.tr.Shutdown()
	c.state = state{phase: StateLoggedOut}
	c.convs.Reset()
}

// Ready marks the transport open. If a room was current when the connection
// dropped, membership is re-established by resending the join frame.
func (c *Client) Ready() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase == StateLoggedOut {
		return
	}
	if c.state.currentRoom != "" {
		c.sendLocked(model.JoinRoom(c.state.currentRoom))
		c.state.phase = StateInRoom
		return
	}
	c.state.phase = StateConnected
}

// Closed marks the transport dropped. The session stays logically alive so
// the reconnect policy applies; room and conversation state are retained.
func (c *Client) Closed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase == StateLoggedOut {
		return
	}
	c.state.phase = StateConnecting
}

// JoinRoom makes roomID current and tells the server. Joining the current
// room again is a no-op. Joining while in a different room first leaves the
// old one, so the server never sees the client in two rooms at once.
func (c *Client) JoinRoom(roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase == StateLoggedOut || c.state.phase == StateConnecting {
		return ErrNotLoggedIn
	}
	if roomID == c.state.currentRoom {
		return nil
	}
	if c.state.currentRoom != "" {
		c.sendLocked(model.LeaveRoom(c.state.currentRoom))
	}
	c.sendLocked(model.JoinRoom(roomID))
	c.state.currentRoom = roomID
	c.state.phase = StateInRoom
	return nil
}

// LeaveRoom exits the current room.
func (c *Client) LeaveRoom() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != StateInRoom {
		return ErrNotInRoom
	}
	c.sendLocked(model.LeaveRoom(c.state.currentRoom))
	c.state.currentRoom = ""
	c.state.phase = StateConnected
	return nil
}

// SendMessage broadcasts content to the current room. Content that trims to
// empty is dropped without transmitting anything.
func (c *Client) SendMessage(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.phase != StateInRoom {
		return ErrNotInRoom
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	c.sendLocked(model.RoomText(content, c.state.currentRoom))
	return nil
}

// OpenConversation makes peer's conversation current and replays its cached
// history to the sink. Replay is a pure read; opening twice surfaces the
// same sequence twice.
func (c *Client) OpenConversation(peer model.User) error {
	c.mu.Lock()
	if c.state.phase == StateLoggedOut {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	p := peer
	c.state.currentPeer = &p
	history := c.convs.History(peer.ID)
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		for _, msg := range history {
			sink.ConversationMessage(msg)
		}
	}
	return nil
}

// CloseConversation clears the open conversation, if any.
func (c *Client) CloseConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.currentPeer = nil
}

// SendPrivate sends content to the open conversation's peer. The frame goes
// out as "text" with a recipient; the server reclassifies it to "private"
// and echoes it back, which is when it enters the conversation store.
func (c *Client) SendPrivate(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.currentPeer == nil {
		return ErrNoConversation
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	c.sendLocked(model.PrivateText(content, c.state.currentPeer.ID))
	return nil
}

// HandleRaw classifies one inbound frame and routes it. Undecodable frames
// and unknown types are dropped, logged and counted; they never escalate.
// Frames racing a logout are discarded: the session they belong to is gone.
func (c *Client) HandleRaw(raw []byte) {
	msg, err := model.Decode(raw)
	if err != nil {
		c.drop("undecodable payload: %v", err)
		return
	}

	c.mu.Lock()
	if c.state.phase == StateLoggedOut {
		c.mu.Unlock()
		return
	}
	sink := c.sink
	var effects []func(Sink)
	switch msg.Type {
	case model.TypeText, model.TypeJoin, model.TypeLeave, model.TypeSystem:
		effects = append(effects, func(s Sink) { s.RoomMessage(msg) })
	case model.TypePrivate:
		effects = c.recordPrivateLocked(msg)
	default:
		c.dropped++
		log.Printf("dropped message with unknown type %q", msg.Type)
	}
	c.mu.Unlock()

	// Sink calls run outside the lock so implementations may block or read
	// session state without wedging the client.
	if sink == nil {
		return
	}
	for _, effect := range effects {
		effect(sink)
	}
}

// recordPrivateLocked files msg under the other party and returns the sink
// calls to make once the lock is released: surfacing it if that conversation
// is open, and a notification when one is due.
func (c *Client) recordPrivateLocked(msg model.Message) []func(Sink) {
	peerID := msg.SenderID
	if msg.SenderID == c.state.self.ID {
		peerID = msg.Recipient
	}
	c.convs.Record(peerID, msg)

	var effects []func(Sink)
	open := c.state.currentPeer
	if open != nil && open.ID == peerID {
		effects = append(effects, func(s Sink) { s.ConversationMessage(msg) })
	}

	// Notify unless the viewer authored the message or already has the
	// sender's conversation in front of them.
	if msg.SenderID == c.state.self.ID {
		return effects
	}
	if open != nil && open.ID == msg.SenderID {
		return effects
	}
	text := fmt.Sprintf("Private message from %s", msg.Sender)
	return append(effects, func(s Sink) { s.Notify(text) })
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.phase
}

// Self returns the session identity; the zero User when logged out.
func (c *Client) Self() model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.self
}

// CurrentRoom returns the current room id, or "" when none is joined.
func (c *Client) CurrentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.currentRoom
}

// CurrentPeer returns the open conversation's peer, or nil.
func (c *Client) CurrentPeer() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.currentPeer == nil {
		return nil
	}
	p := *c.state.currentPeer
	return &p
}

// Dropped returns how many inbound frames were discarded as undecodable or
// of unknown type.
func (c *Client) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Client) drop(format string, args ...any) {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
	log.Printf("dropped "+format, args...)
}

// sendLocked transmits fire-and-forget; write failures are logged and the
// reconnect policy is left to repair the transport.
func (c *Client) sendLocked(msg model.Message) {
	if err := c.tr.Send(msg); err != nil {
		log.Printf("send %s: %v", msg.Type, err)
	}
}
