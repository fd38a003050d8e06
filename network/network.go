// Package network owns the websocket transport: dialing, the read pump,
// outbound writes, and the fixed-interval reconnect policy.
package network

import (
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// DefaultReconnectDelay is how long a dropped connection waits before the
// next dial. Retries are indefinite and fixed-interval: availability is
// preferred over sparing an unreachable server.
const DefaultReconnectDelay = 3 * time.Second

// Conn manages a single websocket connection to the chat server and redials
// it whenever it drops while a session is active. The handle is exclusively
// owned here; callers interact only through Open, Send and Shutdown.
//
// OnReady, OnPayload and OnClosed fire from the connection's goroutines, one
// event at a time. Set them before the first Open.
type Conn struct {
	OnReady   func()
	OnPayload func(raw []byte)
	OnClosed  func()

	scheme string // ws or wss
	host   string
	delay  time.Duration

	mu       sync.Mutex
	ws       *websocket.Conn
	userID   string
	username string
	// epoch is bumped by every Open and Shutdown. Scheduled redials capture
	// the epoch they belong to and compare at fire time, so a logout or a
	// fresh login during the delay window invalidates them.
	epoch uint64
}

// New builds a Conn for the given http(s) base URL. The websocket scheme is
// derived from the base the same way a browser client would pick ws vs wss.
func New(baseURL string, delay time.Duration) (*Conn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Conn{scheme: scheme, host: u.Host, delay: delay}, nil
}

// Open starts a connection for the given identity. It returns immediately;
// dial errors go into the retry path instead of surfacing to the caller.
// A previous connection, if any, is torn down first.
func (c *Conn) Open(userID, username string) {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.userID = userID
	c.username = username
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.mu.Unlock()

	go c.dial(epoch)
}

// Shutdown closes the transport and invalidates any pending redial.
func (c *Conn) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.userID = ""
	c.username = ""
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

// Send marshals v and writes one text frame. It is a no-op when no transport
// is open; outbound traffic is fire-and-forget.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Connected reports whether a transport is currently open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

func (c *Conn) endpoint(userID, username string) string {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("username", username)
	u := url.URL{Scheme: c.scheme, Host: c.host, Path: "/api/ws", RawQuery: q.Encode()}
	return u.String()
}

func (c *Conn) dial(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.userID == "" {
		c.mu.Unlock()
		return
	}
	addr := c.endpoint(c.userID, c.username)
	c.mu.Unlock()

	ws, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		log.Printf("dial %s: %v", redact(addr), err)
		c.scheduleRedial(epoch)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		// A logout or a newer login won the race; this transport is stale.
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	if c.OnReady != nil {
		c.OnReady()
	}
	c.readPump(ws, epoch)
}

// readPump delivers inbound frames until the connection drops, then fires
// OnClosed and hands off to the reconnect policy.
func (c *Conn) readPump(ws *websocket.Conn, epoch uint64) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read: %v", err)
			}
			break
		}
		if c.OnPayload != nil {
			c.OnPayload(raw)
		}
	}

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	stale := epoch != c.epoch
	c.mu.Unlock()
	if stale {
		return
	}

	if c.OnClosed != nil {
		c.OnClosed()
	}
	c.scheduleRedial(epoch)
}

// scheduleRedial arms exactly one redial for this epoch. Session liveness is
// re-checked when the timer fires, not when it is armed.
func (c *Conn) scheduleRedial(epoch uint64) {
	time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		live := epoch == c.epoch && c.userID != ""
		c.mu.Unlock()
		if live {
			c.dial(epoch)
		}
	})
}

// redact trims the query string off an endpoint before logging it.
func redact(addr string) string {
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		return addr[:i]
	}
	return addr
}
