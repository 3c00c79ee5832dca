package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relay.log")
	logger, err := Build(Options{Level: "debug", Format: "json", File: path, ToFile: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	logger.Info("relay_pairing", zap.String("room_id", "room_1"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	if !strings.Contains(line, `"msg":"relay_pairing"`) || !strings.Contains(line, `"room_id":"room_1"`) {
		t.Fatalf("unexpected log line: %s", line)
	}
}

func TestBuildRespectsLevel(t *testing.T) {
	logger, err := Build(Options{Level: "warn", Console: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error should be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
