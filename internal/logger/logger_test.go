package logger

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

// captureStdout runs f with os.Stdout redirected to a pipe and returns the output.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	f()

	_ = w.Close()
	b, _ := io.ReadAll(r)
	_ = r.Close()
	return string(b)
}

func logLine(t *testing.T, f func()) map[string]any {
	t.Helper()
	out := captureStdout(t, f)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || lines[len(lines)-1] == "" {
		t.Fatalf("no output captured")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("invalid json log: %v\n%s", err, out)
	}
	return payload
}

func TestNew_TagsServiceAndLevel(t *testing.T) {
	payload := logLine(t, func() {
		log := New("enrich-worker")
		log.Info().Msg("starting")
	})
	if svc, _ := payload["service"].(string); svc != "enrich-worker" {
		t.Fatalf("expected service=\"enrich-worker\", got %v", payload["service"])
	}
	if lvl, _ := payload["level"].(string); lvl != "info" {
		t.Fatalf("expected level=\"info\", got %v", payload["level"])
	}
	if _, ok := payload["time"]; !ok {
		t.Fatalf("expected timestamp field: %v", payload)
	}
}

func TestNew_StackOnPlainError(t *testing.T) {
	payload := logLine(t, func() {
		log := New("enrich-worker")
		log.Error().Stack().Err(errors.New("model call failed")).Msg("enrichment degraded")
	})
	if _, ok := payload["stack"]; !ok {
		t.Fatalf("expected stack field for plain error: %v", payload)
	}
}

func TestNew_StackOnWrappedError(t *testing.T) {
	payload := logLine(t, func() {
		log := New("enrich-worker")
		err := pkgerrors.Wrap(errors.New("connection refused"), "queue lease")
		log.Error().Stack().Err(err).Msg("worker cycle failed")
	})
	if _, ok := payload["stack"]; !ok {
		t.Fatalf("expected stack field for wrapped error: %v", payload)
	}
}
