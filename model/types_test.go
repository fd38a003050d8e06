package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	raw := `{"type":"private","content":"hi","sender":"Bob","sender_id":"u2","recipient":"u1","timestamp":"2026-08-29T12:00:00Z"}`
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Type != TypePrivate || msg.Sender != "Bob" || msg.Recipient != "u1" {
		t.Errorf("decoded %+v", msg)
	}
	want := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msg.Timestamp, want)
	}

	if _, err := Decode([]byte(`{broken`)); err == nil {
		t.Error("Decode should fail on malformed input")
	}
}

func TestTypeKnown(t *testing.T) {
	for _, typ := range []Type{TypeText, TypeJoin, TypeLeave, TypeSystem, TypePrivate} {
		if !typ.Known() {
			t.Errorf("Known(%q) = false", typ)
		}
	}
	if Type("typing").Known() {
		t.Error(`Known("typing") = true`)
	}
}

func TestOutboundFrames(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{name: "join", msg: JoinRoom("r1"), want: `{"type":"join_room","content":"r1"}`},
		{name: "leave", msg: LeaveRoom("r1"), want: `{"type":"leave_room","content":"r1"}`},
		{name: "room text", msg: RoomText("hello", "r1"), want: `{"type":"text","content":"hello","room":"r1"}`},
		// Private intent is the recipient field, not the type tag.
		{name: "private text", msg: PrivateText("hi", "u2"), want: `{"type":"text","content":"hi","recipient":"u2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("frame = %s, want %s", data, tt.want)
			}
			if strings.Contains(string(data), "timestamp") {
				t.Errorf("outbound frame should not carry a timestamp: %s", data)
			}
		})
	}
}
