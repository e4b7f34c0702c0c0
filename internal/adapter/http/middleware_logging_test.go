package adapthttp

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddleware(t *testing.T) {
	s := &Server{}
	// Create a dummy handler
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("OK"))
	})

	// Wrap it
	handler := s.loggingMiddleware(nextHandler)

	// Capture log output
	var buf bytes.Buffer
	originalOutput := log.Writer()
	originalFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(originalOutput)
		log.SetFlags(originalFlags)
	}()

	req := httptest.NewRequest("GET", "/test-path", nil)
	req.Header.Set(UserHeader, "u1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// Check response
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}

	// Check log
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if line["method"] != "GET" || line["path"] != "/test-path" || line["status"] != float64(418) || line["user"] != "u1" {
		t.Errorf("Log output missing expected fields. Got: %v", line)
	}
}

func TestActingUser(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := actingUser(req); err == nil {
		t.Fatal("expected error without header")
	}
	req.Header.Set(UserHeader, "u1")
	if id, err := actingUser(req); err != nil || id != "u1" {
		t.Fatalf("got %q, %v", id, err)
	}
}
