// Package adapthttp implements the HTTP and WebSocket adapter for the game
// engine.
package adapthttp

import (
	"net/http"
	"strings"

	"tictactoe/internal/app"
	"tictactoe/internal/logger"
	"tictactoe/internal/notify"

	"github.com/julienschmidt/httprouter"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	requests  *app.RequestService
	moves     *app.MoveService
	users     *app.UserService
	bus       *notify.Bus
	publicURL string
}

// New creates a Server wired to the engine's services. publicURL is the
// externally visible base used in share links; when empty it is derived from
// each request.
func New(eng *app.Engine, bus *notify.Bus, publicURL string) *Server {
	return &Server{
		requests:  eng.Requests,
		moves:     eng.Moves,
		users:     eng.Users,
		bus:       bus,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()

	mux.GET("/api/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.GET("/api/users", s.handleListUsers)
	mux.POST("/api/users", s.handleRegister)
	mux.GET("/api/users/:id", s.handleGetUser)
	mux.PUT("/api/users/:id/status", s.handleUpdateStatus)
	mux.GET("/api/users/:id/games", s.handleUserGames)
	mux.GET("/api/users/:id/requests", s.handlePendingRequests)
	mux.GET("/api/usernames/:username", s.handleGetByUsername)
	mux.GET("/api/leaderboard", s.handleLeaderboard)

	mux.POST("/api/games", s.handleSendRequest)
	mux.GET("/api/games/:id", s.handleGetGame)
	mux.POST("/api/games/:id/accept", s.handleAccept)
	mux.POST("/api/games/:id/reject", s.handleReject)
	mux.POST("/api/games/:id/moves", s.handleMove)
	mux.POST("/api/games/:id/pass", s.handlePass)
	mux.GET("/api/games/:id/qr", s.handleQR)

	mux.GET("/ws/games/:id", s.handleGameStream)
	mux.GET("/ws/users/:id/requests", s.handleRequestStream)
	mux.GET("/ws/status", s.handleStatusStream)

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logger.Error("handler panic", logger.Fields{"path": r.URL.Path, "panic": v})
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}

	return s.loggingMiddleware(withNoCache(mux))
}
