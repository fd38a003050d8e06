package model

import (
	"encoding/json"
	"time"
)

// Type discriminates messages on the wire.
type Type string

const (
	TypeText    Type = "text"
	TypeJoin    Type = "join"
	TypeLeave   Type = "leave"
	TypeSystem  Type = "system"
	TypePrivate Type = "private"
)

// Known reports whether t is part of the protocol vocabulary.
func (t Type) Known() bool {
	switch t {
	case TypeText, TypeJoin, TypeLeave, TypeSystem, TypePrivate:
		return true
	}
	return false
}

// Message is one chat frame. Sender and SenderID are set on addressed
// variants (room text, private); Room on room-scoped messages; Recipient on
// private ones. Join, leave and system announcements carry no sender.
type Message struct {
	Type      Type      `json:"type"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Room      string    `json:"room,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// User identifies a chat participant.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Room is directory reference data; the client never mutates it.
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserCount int    `json:"user_count"`
}

// Decode parses one inbound frame.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// JoinRoom is the control frame sent to enter a room.
func JoinRoom(roomID string) Message {
	return Message{Type: "join_room", Content: roomID}
}

// LeaveRoom is the control frame sent to exit a room.
func LeaveRoom(roomID string) Message {
	return Message{Type: "leave_room", Content: roomID}
}

// RoomText is an outbound room broadcast.
func RoomText(content, roomID string) Message {
	return Message{Type: TypeText, Content: content, Room: roomID}
}

// PrivateText is an outbound private message. Intent is marked by the
// presence of Recipient; the server reclassifies the frame to "private" on
// receipt, so the outbound type stays "text".
func PrivateText(content, recipientID string) Message {
	return Message{Type: TypeText, Content: content, Recipient: recipientID}
}
