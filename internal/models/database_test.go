package models

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestQueryLogWriter_LogsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	w := queryLogWriter{log: zerolog.New(&buf).Level(zerolog.InfoLevel)}

	w.Printf("%s [%.3fms] %s", "SLOW SQL >= 200ms", 250.0, "SELECT 1")

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "SELECT 1") {
		t.Errorf("unexpected log line %q", out)
	}
}

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		dsn      string
		expected string
	}{
		{"taskboard.db", "taskboard.db?_foreign_keys=1&_busy_timeout=5000"},
		{"file:x?mode=memory", "file:x?mode=memory&_foreign_keys=1&_busy_timeout=5000"},
		{"a.db?_fk=1", "a.db?_fk=1&_busy_timeout=5000"},
		{"a.db?_foreign_keys=1&_busy_timeout=100", "a.db?_foreign_keys=1&_busy_timeout=100"},
	}

	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.expected {
			t.Errorf("sqliteDSN(%q) = %q, expected %q", tt.dsn, got, tt.expected)
		}
	}
}
