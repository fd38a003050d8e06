package session

import (
	"strings"
	"testing"

	"streamchat/model"
)

func TestConversationKeying(t *testing.T) {
	c, _, _ := newTestClient(t)
	self := login(t, c, "alice")

	// Inbound from a peer files under the sender; the self-authored echo
	// files under the recipient. Never under self.
	c.HandleRaw(privateFrame(t, "Bob", "u2", self.ID, "hi"))
	c.HandleRaw(privateFrame(t, "alice", self.ID, "u2", "hey back"))

	history := c.convs.History("u2")
	if len(history) != 2 {
		t.Fatalf("history under u2 has %d messages, want 2", len(history))
	}
	if history[0].Content != "hi" || history[1].Content != "hey back" {
		t.Errorf("history order = %q, %q; want arrival order", history[0].Content, history[1].Content)
	}
	if got := c.convs.History(self.ID); len(got) != 0 {
		t.Errorf("%d messages filed under self, want 0", len(got))
	}
}

func TestNotificationSuppression(t *testing.T) {
	tests := []struct {
		name       string
		openPeer   string // "" for none
		senderID   string
		fromSelf   bool
		wantNotify bool
	}{
		{name: "no conversation open", senderID: "u2", wantNotify: true},
		{name: "sender's conversation open", openPeer: "u2", senderID: "u2", wantNotify: false},
		{name: "different conversation open", openPeer: "u3", senderID: "u2", wantNotify: true},
		{name: "self-authored echo never notifies", fromSelf: true, wantNotify: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, sink := newTestClient(t)
			self := login(t, c, "alice")
			if tt.openPeer != "" {
				if err := c.OpenConversation(model.User{ID: tt.openPeer, Username: "peer"}); err != nil {
					t.Fatalf("OpenConversation: %v", err)
				}
			}

			if tt.fromSelf {
				c.HandleRaw(privateFrame(t, "alice", self.ID, "u2", "echo"))
			} else {
				c.HandleRaw(privateFrame(t, "Bob", tt.senderID, self.ID, "hi"))
			}

			if got := len(sink.notifications) > 0; got != tt.wantNotify {
				t.Errorf("notified = %v, want %v (notifications: %v)", got, tt.wantNotify, sink.notifications)
			}
		})
	}
}

func TestOpenConversationSurfacesLiveMessages(t *testing.T) {
	c, _, sink := newTestClient(t)
	self := login(t, c, "alice")

	if err := c.OpenConversation(model.User{ID: "u2", Username: "Bob"}); err != nil {
		t.Fatalf("OpenConversation: %v", err)
	}
	c.HandleRaw(privateFrame(t, "Bob", "u2", self.ID, "hi"))

	if len(sink.convo) != 1 {
		t.Fatalf("conversation sink got %d messages, want 1", len(sink.convo))
	}
	if len(sink.notifications) != 0 {
		t.Errorf("open conversation must suppress the notification, got %v", sink.notifications)
	}

	// A message for a different peer stays out of the open view.
	c.HandleRaw(privateFrame(t, "Carol", "u3", self.ID, "hello"))
	if len(sink.convo) != 1 {
		t.Errorf("conversation sink got %d messages, want still 1", len(sink.convo))
	}
}

func TestIdempotentReplay(t *testing.T) {
	c, _, sink := newTestClient(t)
	self := login(t, c, "alice")
	peer := model.User{ID: "u2", Username: "Bob"}

	c.HandleRaw(privateFrame(t, "Bob", "u2", self.ID, "one"))
	c.HandleRaw(privateFrame(t, "Bob", "u2", self.ID, "two"))

	replay := func() []string {
		sink.convo = nil
		if err := c.OpenConversation(peer); err != nil {
			t.Fatalf("OpenConversation: %v", err)
		}
		var out []string
		for _, msg := range sink.convo {
			out = append(out, msg.Content)
		}
		return out
	}

	first := replay()
	second := replay()
	if strings.Join(first, ",") != "one,two" {
		t.Errorf("first replay = %v, want [one two]", first)
	}
	if strings.Join(second, ",") != strings.Join(first, ",") {
		t.Errorf("second replay = %v, want same as first %v", second, first)
	}
}

func TestSendPrivate(t *testing.T) {
	c, tr, _ := newTestClient(t)
	login(t, c, "alice")

	if err := c.SendPrivate("hi"); err != ErrNoConversation {
		t.Fatalf("SendPrivate without a conversation = %v, want ErrNoConversation", err)
	}

	if err := c.OpenConversation(model.User{ID: "u2", Username: "Bob"}); err != nil {
		t.Fatalf("OpenConversation: %v", err)
	}
	if err := c.SendPrivate("hi"); err != nil {
		t.Fatalf("SendPrivate: %v", err)
	}

	frames := tr.frames()
	if len(frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(frames))
	}
	// Outbound intent is marked by the recipient field; the type stays
	// "text" and the server reclassifies on receipt.
	want := model.Message{Type: model.TypeText, Content: "hi", Recipient: "u2"}
	if frames[0] != want {
		t.Errorf("sent %+v, want %+v", frames[0], want)
	}

	before := len(tr.frames())
	if err := c.SendPrivate("  "); err != nil {
		t.Fatalf("SendPrivate(blank): %v", err)
	}
	if after := len(tr.frames()); after != before {
		t.Errorf("blank private transmitted %d extra frames", after-before)
	}
}

func TestPrivateEndToEnd(t *testing.T) {
	c, _, sink := newTestClient(t)
	self := login(t, c, "alice")

	raw := `{"type":"private","sender":"Bob","sender_id":"u2","recipient":"` + self.ID + `","content":"hi","timestamp":"2026-08-29T12:00:00Z"}`
	c.HandleRaw([]byte(raw))

	history := c.convs.History("u2")
	if len(history) != 1 || history[0].Content != "hi" {
		t.Fatalf("history under u2 = %+v, want the received message", history)
	}
	if len(sink.notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(sink.notifications))
	}
	if !strings.Contains(sink.notifications[0], "Bob") {
		t.Errorf("notification %q should name the sender", sink.notifications[0])
	}
}

func TestCloseConversation(t *testing.T) {
	c, _, sink := newTestClient(t)
	self := login(t, c, "alice")

	c.OpenConversation(model.User{ID: "u2", Username: "Bob"})
	c.CloseConversation()
	if c.CurrentPeer() != nil {
		t.Fatal("CurrentPeer should be nil after close")
	}

	// With the conversation closed, the next message notifies again.
	c.HandleRaw(privateFrame(t, "Bob", "u2", self.ID, "hi"))
	if len(sink.notifications) != 1 {
		t.Errorf("got %d notifications, want 1", len(sink.notifications))
	}
}
