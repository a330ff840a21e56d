package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	logger, err := New(Options{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("command_dispatch", zap.String("command", "help"))
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"command_dispatch"`) || !strings.Contains(string(b), `"command":"help"`) {
		t.Fatalf("unexpected log contents: %s", b)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_TO_CONSOLE", "")
	t.Setenv("LOG_CALLER", "")
	o := OptionsFromEnv()
	if o.Level != "warn" || o.Format != "json" || o.File != "" || !o.Console {
		t.Fatalf("unexpected options: %+v", o)
	}
}
