package adapthttp

import (
	"net/http"

	"tictactoe/internal/domain"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Username string `json:"username"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	u, err := s.users.Register(r.Context(), body.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(users)})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	u, err := s.users.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetByUsername(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	u, err := s.users.GetByUsername(r.Context(), ps.ByName("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !requireSelf(w, r, id) {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	status, err := domain.ParseUserStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := s.users.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUserGames(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	games, err := s.requests.GamesFor(r.Context(), ps.ByName("id"), domain.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(games)})
}

func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !requireSelf(w, r, id) {
		return
	}
	games, err := s.requests.PendingFor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(games)})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	users, err := s.users.Leaderboard(r.Context(), intQuery(r, "limit", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(users)})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
