package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfo(t *testing.T) {
	l := New(LoggingConfig{Service: "test", Level: "not-a-level", Format: "json"})
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", l.GetLevel())
	}
}

func TestWithFieldsCarriesService(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggingConfig{Service: "portal", Level: "info", Format: "json", Output: &buf})

	l.WithFields(map[string]interface{}{"kind": "postgres.pool"}).Info("resource resolved")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["service"] != "portal" {
		t.Fatalf("service = %v, want portal", record["service"])
	}
	if record["kind"] != "postgres.pool" {
		t.Fatalf("kind = %v, want postgres.pool", record["kind"])
	}
}

func TestLogRequestSeverity(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "info"},
		{404, "warning"},
		{500, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(LoggingConfig{Service: "portal", Level: "debug", Format: "json", Output: &buf})
		l.LogRequest("req-1", "GET", "/api/v1/bible/versions", tt.status, 12*time.Millisecond, nil)

		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("status %d: log line %q missing level %s", tt.status, buf.String(), tt.level)
		}
	}
}
