package main

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"streamchat/model"
)

// Store holds rooms and their membership for the lifetime of the process.
// Nothing is persisted: history beyond the session is out of scope.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

type roomState struct {
	id      string
	name    string
	members map[string]bool // user ids
}

func NewStore() *Store {
	s := &Store{rooms: make(map[string]*roomState)}
	// A default room so a fresh server is immediately usable.
	s.rooms["general"] = &roomState{id: "general", name: "General", members: make(map[string]bool)}
	return s
}

// CreateRoom adds a room under a fresh id and returns its directory entry.
func (s *Store) CreateRoom(name string) model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &roomState{id: uuid.NewString(), name: name, members: make(map[string]bool)}
	s.rooms[r.id] = r
	return model.Room{ID: r.id, Name: r.name}
}

// Rooms returns the directory snapshot, sorted by name for stable output.
func (s *Store) Rooms() []model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, model.Room{ID: r.id, Name: r.name, UserCount: len(r.members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Join adds userID to roomID. It reports whether the room exists.
func (s *Store) Join(roomID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	r.members[userID] = true
	return true
}

// Leave removes userID from roomID.
func (s *Store) Leave(roomID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		delete(r.members, userID)
	}
}

// Members returns the ids of everyone in roomID.
func (s *Store) Members(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}
