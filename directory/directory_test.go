package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"streamchat/model"
)

func TestRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"rooms": []model.Room{
				{ID: "general", Name: "General", UserCount: 3},
				{ID: "r2", Name: "Random", UserCount: 0},
			},
		})
	}))
	defer srv.Close()

	rooms, err := NewClient(srv.URL).Rooms(context.Background())
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rooms))
	}
	if rooms[0].ID != "general" || rooms[0].UserCount != 3 {
		t.Errorf("rooms[0] = %+v", rooms[0])
	}
}

func TestUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"users": []model.User{{ID: "u1", Username: "alice"}},
		})
	}))
	defer srv.Close()

	users, err := NewClient(srv.URL).Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("users = %+v", users)
	}
}

func TestCreateRoom(t *testing.T) {
	t.Run("posts the name", func(t *testing.T) {
		var got struct {
			Name string `json:"name"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/rooms" {
				http.NotFound(w, r)
				return
			}
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		if err := NewClient(srv.URL).CreateRoom(context.Background(), "  Lounge "); err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if got.Name != "Lounge" {
			t.Errorf("posted name = %q, want %q", got.Name, "Lounge")
		}
	})

	t.Run("rejects an empty name locally", func(t *testing.T) {
		requests := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))
		defer srv.Close()

		if err := NewClient(srv.URL).CreateRoom(context.Background(), "   "); !errors.Is(err, ErrEmptyName) {
			t.Fatalf("CreateRoom(blank) = %v, want ErrEmptyName", err)
		}
		if requests != 0 {
			t.Error("an invalid name must not reach the server")
		}
	})

	t.Run("surfaces server failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusInternalServerError)
		}))
		defer srv.Close()

		if err := NewClient(srv.URL).CreateRoom(context.Background(), "Lounge"); err == nil {
			t.Fatal("CreateRoom should fail on a 500")
		}
	})
}

func TestPollerDeliversOnlyFreshSnapshots(t *testing.T) {
	// First poll succeeds, everything after fails: the consumer keeps the
	// last-known snapshot because no replacement arrives.
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/rooms" && polls.Add(1) == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"rooms": []model.Room{{ID: "general", Name: "General"}},
			})
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var snapshots atomic.Int32
	p := NewPoller(NewClient(srv.URL), 30*time.Millisecond)
	p.OnRooms = func(rooms []model.Room) { snapshots.Add(1) }

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if polls.Load() < 2 {
		t.Fatalf("server saw %d polls, want at least 2", polls.Load())
	}
	if got := snapshots.Load(); got != 1 {
		t.Errorf("delivered %d snapshots, want 1 (failures keep the old one)", got)
	}
}
