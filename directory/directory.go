// Package directory consumes the server's room and user directory. The
// snapshots it produces are read-only reference data; fetch failures leave
// the previous snapshot in place.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"streamchat/model"
)

// ErrEmptyName rejects room creation before anything reaches the server.
var ErrEmptyName = errors.New("room name required")

// DefaultPollInterval matches the reference refresh cadence.
const DefaultPollInterval = 30 * time.Second

// Client calls the directory REST API.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient builds a directory client for the given http base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Rooms fetches the room directory.
func (c *Client) Rooms(ctx context.Context) ([]model.Room, error) {
	var body struct {
		Rooms []model.Room `json:"rooms"`
	}
	if err := c.get(ctx, "/api/rooms", &body); err != nil {
		return nil, err
	}
	return body.Rooms, nil
}

// Users fetches the user directory.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var body struct {
		Users []model.User `json:"users"`
	}
	if err := c.get(ctx, "/api/users", &body); err != nil {
		return nil, err
	}
	return body.Users, nil
}

// CreateRoom asks the server to create a room. Only success or failure is
// reported; the new room shows up on the next directory refresh.
func (c *Client) CreateRoom(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rooms", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create room: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("get %s: decode: %w", path, err)
	}
	return nil
}

// Poller refreshes both directories on a fixed interval and hands fresh
// snapshots to its callbacks. On failure nothing is delivered, so consumers
// keep displaying the last-known snapshot; a failed refresh never ends the
// session.
type Poller struct {
	dir      *Client
	interval time.Duration

	OnRooms func(rooms []model.Room)
	OnUsers func(users []model.User)
}

// NewPoller builds a poller over dir. A non-positive interval falls back to
// DefaultPollInterval.
func NewPoller(dir *Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{dir: dir, interval: interval}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	if rooms, err := p.dir.Rooms(ctx); err != nil {
		log.Printf("directory: %v", err)
	} else if p.OnRooms != nil {
		p.OnRooms(rooms)
	}
	if users, err := p.dir.Users(ctx); err != nil {
		log.Printf("directory: %v", err)
	} else if p.OnUsers != nil {
		p.OnUsers(users)
	}
}
