package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(orig)
		log.SetFlags(flags)
		verbose.Store(false)
	})
	return &buf
}

func TestInfoWritesJSON(t *testing.T) {
	buf := capture(t)

	Info("game accepted", Fields{"game": "g1", "error": errors.New("boom")})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %q: %v", buf.String(), err)
	}
	if line["level"] != "INFO" || line["msg"] != "game accepted" || line["game"] != "g1" {
		t.Fatalf("unexpected line: %v", line)
	}
	if line["error"] != "boom" {
		t.Fatalf("error not stringified: %v", line["error"])
	}
}

func TestDebugGatedByVerbose(t *testing.T) {
	buf := capture(t)

	Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug written while quiet: %q", buf.String())
	}

	verbose.Store(true)
	Debug("shown", nil)
	if !bytes.Contains(buf.Bytes(), []byte(`"shown"`)) {
		t.Fatalf("debug missing in verbose mode: %q", buf.String())
	}
}
