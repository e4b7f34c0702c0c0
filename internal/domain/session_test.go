package domain_test

import (
	"errors"
	"testing"
	"time"

	"tictactoe/internal/domain"
)

func TestStatusTransitions(t *testing.T) {
	all := []domain.Status{
		domain.StatusPending, domain.StatusInProgress, domain.StatusFinished,
		domain.StatusDraw, domain.StatusRejected,
	}
	allowed := map[domain.Status][]domain.Status{
		domain.StatusPending:    {domain.StatusInProgress, domain.StatusRejected},
		domain.StatusInProgress: {domain.StatusFinished, domain.StatusDraw},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestSessionTransitionRejectsTerminal(t *testing.T) {
	s := domain.NewSession("g1", "alice", "bob", time.Now())
	if err := s.Transition(domain.StatusRejected); err != nil {
		t.Fatalf("reject pending: %v", err)
	}
	err := s.Transition(domain.StatusInProgress)
	if !errors.Is(err, domain.ErrState) {
		t.Fatalf("expected ErrState, got %v", err)
	}
	if s.Status != domain.StatusRejected {
		t.Fatalf("status changed to %s", s.Status)
	}
}

func TestSessionPlayers(t *testing.T) {
	s := domain.NewSession("g1", "alice", "bob", time.Now())
	if s.CurrentTurn != domain.X || s.Status != domain.StatusPending {
		t.Fatalf("unexpected new session: %+v", s)
	}
	if s.SymbolOf("alice") != domain.X || s.SymbolOf("bob") != domain.O || s.SymbolOf("eve") != domain.Empty {
		t.Fatal("SymbolOf mismatch")
	}
	if s.PlayerOf(domain.O) != "bob" || s.PlayerOf(domain.Empty) != "" {
		t.Fatal("PlayerOf mismatch")
	}
}

func TestSessionFilter(t *testing.T) {
	s := domain.NewSession("g1", "alice", "bob", time.Now())
	tests := []struct {
		name string
		f    domain.SessionFilter
		want bool
	}{
		{"zero", domain.SessionFilter{}, true},
		{"participant X", domain.SessionFilter{Participant: "alice"}, true},
		{"participant O", domain.SessionFilter{Participant: "bob"}, true},
		{"stranger", domain.SessionFilter{Participant: "eve"}, false},
		{"invitee", domain.SessionFilter{Invitee: "bob", Status: domain.StatusPending}, true},
		{"inviter is not invitee", domain.SessionFilter{Invitee: "alice"}, false},
		{"status mismatch", domain.SessionFilter{Status: domain.StatusDraw}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Match(s); got != tc.want {
				t.Fatalf("Match = %v; want %v", got, tc.want)
			}
		})
	}
}
