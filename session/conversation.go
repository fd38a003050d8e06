package session

import "streamchat/model"

// Store caches private conversation history for the lifetime of one
// session, keyed by the other party's id, never by self. Sequences are
// append-only in arrival order; nothing is reordered or deduplicated.
// The store is not synchronized; Client serializes access to it.
type Store struct {
	convs map[string][]model.Message
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{convs: make(map[string][]model.Message)}
}

// Record appends msg to peerID's conversation, creating it if absent.
func (s *Store) Record(peerID string, msg model.Message) {
	s.convs[peerID] = append(s.convs[peerID], msg)
}

// History returns a copy of peerID's conversation in arrival order.
func (s *Store) History(peerID string) []model.Message {
	seq := s.convs[peerID]
	out := make([]model.Message, len(seq))
	copy(out, seq)
	return out
}

// Reset drops all cached conversations; called at session boundaries.
func (s *Store) Reset() {
	s.convs = make(map[string][]model.Message)
}
