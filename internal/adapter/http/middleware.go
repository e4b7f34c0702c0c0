package adapthttp

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"tictactoe/internal/domain"
	"tictactoe/internal/logger"
)

// UserHeader carries the acting user's id, set by a trusted forward-auth
// proxy in front of the service.
const UserHeader = "X-User-ID"

var errNoUser = errors.New("missing " + UserHeader + " header")

// actingUser returns the caller's user id.
func actingUser(r *http.Request) (string, error) {
	id := r.Header.Get(UserHeader)
	if id == "" {
		return "", errNoUser
	}
	return id, nil
}

// requireUser writes 401 when the caller is anonymous.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := actingUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return "", false
	}
	return id, true
}

// requireSelf rejects callers acting on another user's resources.
func requireSelf(w http.ResponseWriter, r *http.Request, userID string) bool {
	caller, ok := requireUser(w, r)
	if !ok {
		return false
	}
	if caller != userID {
		writeError(w, fmt.Errorf("%w: %s cannot act for %s", domain.ErrAuthorization, caller, userID))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http", logger.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Microsecond).String(),
			"user":     r.Header.Get(UserHeader),
		})
	})
}
