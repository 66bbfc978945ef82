package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"msync/internal/bt"
	"msync/internal/config"
)

func TestTeamsNotifier_Send(t *testing.T) {
	var got map[string]string
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding card: %v", err)
		}
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	n := NewTeamsNotifier(srv.URL, srv.Client())
	err := n.Send(context.Background(), "Backup of 'photos' finished with 2 errors", "first\nsecond")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	want := map[string]string{
		"@type":    "MessageCard",
		"@context": "http://schema.org/extensions",
		"title":    "Backup of 'photos' finished with 2 errors",
		"text":     "first  \nsecond",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("card[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestTeamsNotifier_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTeamsNotifier(srv.URL, srv.Client()).Send(context.Background(), "t", "b")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("Send() error = %v, want status 400", err)
	}
}

func TestTeamsNotifier_SendCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewTeamsNotifier(srv.URL, srv.Client()).Send(ctx, "t", "b"); err == nil {
		t.Error("Send() expected error for cancelled context")
	}
}

type recordingLogger struct {
	bt.NopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.warnings = append(l.warnings, msg)
}

func TestLogNotifier_Send(t *testing.T) {
	logger := &recordingLogger{}
	if err := NewLogNotifier(logger).Send(context.Background(), "t", "b"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(logger.warnings) != 1 {
		t.Errorf("warnings = %v, want one", logger.warnings)
	}
}

func TestNewNotifierFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.NotificationConfig
		wantNil bool
		wantErr bool
	}{
		{name: "teams", cfg: config.NotificationConfig{Type: "teams", Webhook: "https://example.com/hook"}},
		{name: "teams without webhook", cfg: config.NotificationConfig{Type: "teams"}, wantErr: true},
		{name: "log", cfg: config.NotificationConfig{Type: "log"}},
		{name: "none", cfg: config.NotificationConfig{Type: "none"}, wantNil: true},
		{name: "unknown", cfg: config.NotificationConfig{Type: "pager"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewNotifierFromConfig(tt.cfg, bt.NewNopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewNotifierFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (got == nil) != tt.wantNil {
				t.Errorf("NewNotifierFromConfig() = %v, wantNil %v", got, tt.wantNil)
			}
		})
	}
}
