package adapthttp

import (
	"fmt"
	"net/http"

	"tictactoe/internal/domain"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) handleSendRequest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		To string `json:"to"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	g, err := s.requests.SendRequest(r.Context(), from, body.To)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	g, err := s.requests.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// requireInvitee checks that the caller is the invited player of the game.
func (s *Server) requireInvitee(w http.ResponseWriter, r *http.Request, gameID string) bool {
	caller, ok := requireUser(w, r)
	if !ok {
		return false
	}
	g, err := s.requests.Get(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if g.PlayerO != caller {
		writeError(w, fmt.Errorf("%w: only the invited player can answer game %s", domain.ErrAuthorization, gameID))
		return false
	}
	return true
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !s.requireInvitee(w, r, id) {
		return
	}
	g, err := s.requests.AcceptRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !s.requireInvitee(w, r, id) {
		return
	}
	g, err := s.requests.RejectRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.X == nil || body.Y == nil {
		writeError(w, fmt.Errorf("%w: x and y are required", domain.ErrValidation))
		return
	}
	g, err := s.moves.ApplyMove(r.Context(), ps.ByName("id"), user, *body.X, *body.Y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	g, err := s.moves.Pass(r.Context(), ps.ByName("id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
