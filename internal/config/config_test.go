package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"SAKURA_CONFIG", "BOT_USERNAME", "SERVER_ADDRESS", "BOT_OFFLINE", "BOT_PREFIX", "SUPER_OPERATORS",
	"BLUEMAP_API_URL", "LOOKUP_MAX_ATTEMPTS", "LOOKUP_RETRY_DELAY", "LOOKUP_TIMEOUT", "WAYPOINT_DELAY",
	"BRIDGE_BASE_URL", "BRIDGE_WS_URL", "BRIDGE_EGRESS", "CHAT_RATE", "CHAT_BURST",
	"REDIS_URL", "DATABASE_URL", "METRICS_ADDR", "MESSAGES_DIR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BLUEMAP_API_URL", "http://map.local:8100")
	t.Setenv("BRIDGE_WS_URL", "ws://bridge.local/events")
	t.Setenv("BRIDGE_BASE_URL", "http://bridge.local")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommandPrefix != "%" {
		t.Errorf("prefix: %q", cfg.CommandPrefix)
	}
	if len(cfg.SuperOperators) != 2 || cfg.SuperOperators[0] != "NOI_zl" {
		t.Errorf("super operators: %v", cfg.SuperOperators)
	}
	if cfg.LookupMaxAttempts != 3 || cfg.LookupRetryDelay != 2*time.Second || cfg.WaypointDelay != 5*time.Second {
		t.Errorf("lookup/waypoint defaults: %+v", cfg)
	}
	if cfg.BridgeEgress != "auto" {
		t.Errorf("egress: %q", cfg.BridgeEgress)
	}
	if port, _ := cfg.ServerPort(); port != 25565 {
		t.Errorf("default port: %d", port)
	}
}

func TestLoadRequiresBlueMap(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_WS_URL", "ws://bridge.local/events")
	t.Setenv("BRIDGE_BASE_URL", "http://bridge.local")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without BLUEMAP_API_URL")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("SUPER_OPERATORS", " Alice , ,Bob")
	t.Setenv("BOT_PREFIX", "!")
	t.Setenv("LOOKUP_MAX_ATTEMPTS", "5")
	t.Setenv("WAYPOINT_DELAY", "1500ms")
	t.Setenv("BRIDGE_EGRESS", "WS")
	t.Setenv("SERVER_ADDRESS", "mc.example.com:25570")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.SuperOperators) != 2 || cfg.SuperOperators[0] != "Alice" || cfg.SuperOperators[1] != "Bob" {
		t.Errorf("super operators: %v", cfg.SuperOperators)
	}
	if cfg.CommandPrefix != "!" || cfg.LookupMaxAttempts != 5 || cfg.WaypointDelay != 1500*time.Millisecond {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
	if cfg.BridgeEgress != "ws" {
		t.Errorf("egress: %q", cfg.BridgeEgress)
	}
	if cfg.ServerHost() != "mc.example.com" {
		t.Errorf("host: %q", cfg.ServerHost())
	}
	if port, err := cfg.ServerPort(); err != nil || port != 25570 {
		t.Errorf("port: %d %v", port, err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")
	content := `
bot:
  username: SakuraBot
  server_address: play.example.net
  is_offline: false
  super_operators: [Owner]
bluemap:
  api_url: http://map.example.net
bridge:
  base_url: http://127.0.0.1:9000
  ws_url: ws://127.0.0.1:9000/events
  egress: http
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAKURA_CONFIG", path)
	t.Setenv("BLUEMAP_API_URL", "http://override.example.net")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BotUsername != "SakuraBot" || cfg.Offline {
		t.Errorf("bot section not applied: %+v", cfg)
	}
	if len(cfg.SuperOperators) != 1 || cfg.SuperOperators[0] != "Owner" {
		t.Errorf("super operators: %v", cfg.SuperOperators)
	}
	if cfg.BlueMapURL != "http://override.example.net" {
		t.Errorf("env should override file: %q", cfg.BlueMapURL)
	}
	if cfg.BridgeEgress != "http" {
		t.Errorf("egress: %q", cfg.BridgeEgress)
	}
	if cfg.ServerHost() != "play.example.net" {
		t.Errorf("host: %q", cfg.ServerHost())
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("SAKURA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{
			CommandPrefix:     "%",
			SuperOperators:    []string{"a"},
			BlueMapURL:        "http://m",
			BridgeWSURL:       "ws://b",
			BridgeBaseURL:     "http://b",
			BridgeEgress:      "auto",
			LookupMaxAttempts: 3,
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	cases := map[string]func(c *AppConfig){
		"prefix too long":   func(c *AppConfig) { c.CommandPrefix = "%%" },
		"no supers":         func(c *AppConfig) { c.SuperOperators = nil },
		"zero attempts":     func(c *AppConfig) { c.LookupMaxAttempts = 0 },
		"bad egress":        func(c *AppConfig) { c.BridgeEgress = "smtp" },
		"http without base": func(c *AppConfig) { c.BridgeEgress = "http"; c.BridgeBaseURL = "" },
		"bad port":          func(c *AppConfig) { c.ServerAddress = "host:abc" },
	}
	for name, mutate := range cases {
		c := base()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	ws := base()
	ws.BridgeEgress = "ws"
	ws.BridgeBaseURL = ""
	if err := ws.Validate(); err != nil {
		t.Errorf("ws egress should not need base url: %v", err)
	}
	unicode := base()
	unicode.CommandPrefix = "＃"
	if err := unicode.Validate(); err != nil {
		t.Errorf("single non-ASCII rune prefix should be valid: %v", err)
	}
}
