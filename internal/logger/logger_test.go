package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		logDebug  bool
		wantJSON  bool
		wantEmpty bool
	}{
		{name: "json info drops debug", level: "info", format: "json", logDebug: true, wantEmpty: true},
		{name: "json debug", level: "debug", format: "json", logDebug: true, wantJSON: true},
		{name: "text warn", level: "warning", format: "text"},
		{name: "unknown level is info", level: "verbose", format: "json", wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.level, tt.format)

			if tt.logDebug {
				l.Debug("job finished", "job", "detect_overdue")
			} else {
				l.Warn("job finished", "job", "detect_overdue")
			}

			if tt.wantEmpty {
				assert.Empty(t, buf.String())
				return
			}
			if !tt.wantJSON {
				assert.Contains(t, buf.String(), "job=detect_overdue")
				return
			}
			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, "detect_overdue", rec["job"])
		})
	}
}
