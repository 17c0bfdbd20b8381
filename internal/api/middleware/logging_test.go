package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerNormalizesRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/rtc/poll/team-standup?since=3", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, `"route":"/rtc/poll/:room"`) {
		t.Fatalf("log line missing normalized route: %s", line)
	}
	if !strings.Contains(line, `"path":"/rtc/poll/team-standup"`) {
		t.Fatalf("log line missing raw path: %s", line)
	}
	if !strings.Contains(line, `"status":204`) {
		t.Fatalf("log line missing status: %s", line)
	}
}
