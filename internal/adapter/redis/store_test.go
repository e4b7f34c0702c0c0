package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"tictactoe/internal/domain"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(mr.Addr(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s := NewStore(c)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStoreCreateUser(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	alice := &domain.User{ID: "u1", Username: "alice", Status: domain.UserOnline}
	if err := s.CreateUser(ctx, alice); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != "u1" || got.Status != domain.UserOnline {
		t.Errorf("unexpected user: %+v", got)
	}

	err = s.CreateUser(ctx, &domain.User{ID: "u2", Username: "alice"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if mr.Exists("ttt:user:u2") {
		t.Error("losing registration wrote its user")
	}
	if owner, _ := mr.Get("ttt:username:alice"); owner != "u1" {
		t.Errorf("username claim moved to %q", owner)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveUser(ctx, &domain.User{ID: "missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSaveSession(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	for _, u := range []*domain.User{{ID: "a", Username: "alice"}, {ID: "b", Username: "bob"}} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}

	g := domain.NewSession("g1", "a", "b", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	g.Status = domain.StatusFinished
	g.Winner = "a"
	a := &domain.User{ID: "a", Username: "alice", Status: domain.UserOnline, Score: 1}
	b := &domain.User{ID: "b", Username: "bob", Status: domain.UserOnline, Score: -1}
	if err := s.SaveSession(ctx, g, a, b); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	for _, key := range []string{"ttt:games", "ttt:games:user:a", "ttt:games:user:b"} {
		if ok, _ := mr.SIsMember(key, "g1"); !ok {
			t.Errorf("g1 missing from %s", key)
		}
	}
	stored, err := s.GetSession(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Winner != "a" || stored.Status != domain.StatusFinished {
		t.Errorf("unexpected game: %+v", stored)
	}
	if u, _ := s.GetUser(ctx, "b"); u == nil || u.Score != -1 {
		t.Errorf("user not saved with the game: %+v", u)
	}

	next := *g
	next.Winner = ""
	err = s.SaveSession(ctx, &next, a, &domain.User{ID: "ghost"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	stored, _ = s.GetSession(ctx, "g1")
	if stored.Winner != "a" {
		t.Errorf("failed save overwrote the game: %+v", stored)
	}
}

func TestStoreQuerySessions(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g1 := domain.NewSession("g1", "a", "b", base)
	g2 := domain.NewSession("g2", "b", "a", base.Add(time.Minute))
	g3 := domain.NewSession("g3", "c", "d", base.Add(2*time.Minute))
	g3.Status = domain.StatusInProgress
	for _, g := range []*domain.Session{g1, g2, g3} {
		if err := s.SaveSession(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter domain.SessionFilter
		want   []string
	}{
		{"participant index", domain.SessionFilter{Participant: "a"}, []string{"g2", "g1"}},
		{"invitee pending", domain.SessionFilter{Invitee: "a", Status: domain.StatusPending}, []string{"g2"}},
		{"status over all games", domain.SessionFilter{Status: domain.StatusInProgress}, []string{"g3"}},
		{"unknown user", domain.SessionFilter{Participant: "nobody"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.QuerySessions(ctx, tc.filter)
			if err != nil {
				t.Fatalf("QuerySessions: %v", err)
			}
			var ids []string
			for _, g := range got {
				ids = append(ids, g.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("got %v, want %v", ids, tc.want)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestStoreAppend(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	for _, action := range []string{"sent", "accepted"} {
		ev := domain.AuditEvent{Type: domain.AuditGameRequests, Data: map[string]any{"action": action}, CreatedAt: time.Now().UTC()}
		if err := s.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	list, err := mr.List("ttt:audit")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	events, err := decodeAll[domain.AuditEvent]([]any{list[0]})
	if err != nil {
		t.Fatal(err)
	}
	if events[0].Data["action"] != "accepted" {
		t.Errorf("expected newest event first, got %+v", events[0])
	}
}
