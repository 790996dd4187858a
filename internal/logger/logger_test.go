package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zerolog.Level
	}{
		{name: "debug", opts: Options{Level: "debug"}, wantLevel: zerolog.DebugLevel},
		{name: "upper case", opts: Options{Level: "WARN"}, wantLevel: zerolog.WarnLevel},
		{name: "unknown falls back", opts: Options{Level: "loud"}, wantLevel: zerolog.InfoLevel},
		{name: "empty falls back", opts: Options{}, wantLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewWithOptions(tt.opts)
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("Expected level %s, got %s", tt.wantLevel, log.GetLevel())
			}
		})
	}
}

func TestNewWithOptions_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Format: "json", Level: "info", Output: buf})

	log.Debug().Msg("hidden")
	log.Info().Str("rate", "41.5").Msg("rate saved")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("Expected debug event to be filtered, got: %s", output)
	}
	if !strings.Contains(output, `"rate":"41.5"`) {
		t.Errorf("Expected JSON field in output, got: %s", output)
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"job_id": "123",
		"days":   30,
	})
	log.Info().Msg("sync queued")

	output := buf.String()
	if !strings.Contains(output, `"job_id":"123"`) || !strings.Contains(output, `"days":30`) {
		t.Errorf("Expected output to contain fields, got: %s", output)
	}
}

func TestWithUser(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithUser(NewWithWriter(buf), "tg_42")
	log.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"user_id":"tg_42"`) {
		t.Errorf("Expected user_id field, got: %s", buf.String())
	}

	buf.Reset()
	log = WithUser(NewWithWriter(buf), "")
	log.Info().Msg("anonymous")
	if strings.Contains(buf.String(), "user_id") {
		t.Errorf("Expected no user_id field, got: %s", buf.String())
	}
}
