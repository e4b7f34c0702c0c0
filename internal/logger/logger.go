// Package logger writes one JSON object per line through the standard log
// package.
package logger

import (
	"encoding/json"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// Fields are structured key/value pairs attached to a line.
type Fields map[string]any

var verbose atomic.Bool

// Init routes log output to stdout and enables Debug lines when v is set.
func Init(v bool) {
	log.SetOutput(os.Stdout)
	log.SetFlags(0)
	verbose.Store(v)
}

// Verbose reports whether Debug lines are emitted.
func Verbose() bool {
	return verbose.Load()
}

// Debug logs only in verbose mode.
func Debug(msg string, fields Fields) {
	if !verbose.Load() {
		return
	}
	write("DEBUG", msg, fields)
}

func Info(msg string, fields Fields) {
	write("INFO", msg, fields)
}

func Error(msg string, fields Fields) {
	write("ERROR", msg, fields)
}

func Fatal(msg string, fields Fields) {
	write("FATAL", msg, fields)
	os.Exit(1)
}

func write(level, msg string, fields Fields) {
	line := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		line[k] = v
	}
	line["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	line["level"] = level
	line["msg"] = msg

	b, err := json.Marshal(line)
	if err != nil {
		log.Printf(`{"level":"ERROR","msg":"logger: marshal failed","error":%q}`, err.Error())
		return
	}
	log.Print(string(b))
}
