package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "config.yaml"
	defaultServerPort = 25565
)

// DefaultSuperOperators are used when neither the config file nor SUPER_OPERATORS set any.
var DefaultSuperOperators = []string{"NOI_zl", "Mc＿MintyCool"}

type AppConfig struct {
	BotUsername   string
	ServerAddress string
	Offline       bool

	CommandPrefix  string
	SuperOperators []string

	BlueMapURL        string
	LookupMaxAttempts int
	LookupRetryDelay  time.Duration
	LookupTimeout     time.Duration

	WaypointDelay time.Duration

	BridgeBaseURL string
	BridgeWSURL   string
	BridgeEgress  string

	ChatRate  float64
	ChatBurst int

	RedisURL    string
	DatabaseURL string
	MetricsAddr string
	MessagesDir string
}

// fileConfig mirrors the on-disk YAML layout.
type fileConfig struct {
	Bot struct {
		Username       string   `yaml:"username"`
		ServerAddress  string   `yaml:"server_address"`
		Offline        *bool    `yaml:"is_offline"`
		Prefix         string   `yaml:"prefix"`
		SuperOperators []string `yaml:"super_operators"`
	} `yaml:"bot"`
	BlueMap struct {
		APIURL string `yaml:"api_url"`
	} `yaml:"bluemap"`
	Bridge struct {
		BaseURL string `yaml:"base_url"`
		WSURL   string `yaml:"ws_url"`
		Egress  string `yaml:"egress"`
	} `yaml:"bridge"`
}

func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		Offline:           true,
		CommandPrefix:     "%",
		LookupMaxAttempts: 3,
		LookupRetryDelay:  2 * time.Second,
		LookupTimeout:     10 * time.Second,
		WaypointDelay:     5 * time.Second,
		BridgeEgress:      "auto",
		ChatRate:          2,
		ChatBurst:         4,
	}

	path := strings.TrimSpace(os.Getenv("SAKURA_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if len(cfg.SuperOperators) == 0 {
		cfg.SuperOperators = append([]string(nil), DefaultSuperOperators...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile reads the YAML config. A missing default file is not an error.
func (c *AppConfig) applyFile(path string, required bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.BotUsername, fc.Bot.Username)
	setString(&c.ServerAddress, fc.Bot.ServerAddress)
	if fc.Bot.Offline != nil {
		c.Offline = *fc.Bot.Offline
	}
	setString(&c.CommandPrefix, fc.Bot.Prefix)
	if ops := cleanList(fc.Bot.SuperOperators); len(ops) > 0 {
		c.SuperOperators = ops
	}
	setString(&c.BlueMapURL, fc.BlueMap.APIURL)
	setString(&c.BridgeBaseURL, fc.Bridge.BaseURL)
	setString(&c.BridgeWSURL, fc.Bridge.WSURL)
	setString(&c.BridgeEgress, fc.Bridge.Egress)
	return nil
}

func (c *AppConfig) applyEnv() {
	setString(&c.BotUsername, os.Getenv("BOT_USERNAME"))
	setString(&c.ServerAddress, os.Getenv("SERVER_ADDRESS"))
	c.Offline = envBool("BOT_OFFLINE", c.Offline)
	setString(&c.CommandPrefix, os.Getenv("BOT_PREFIX"))
	if v := strings.TrimSpace(os.Getenv("SUPER_OPERATORS")); v != "" {
		c.SuperOperators = cleanList(strings.Split(v, ","))
	}

	setString(&c.BlueMapURL, os.Getenv("BLUEMAP_API_URL"))
	c.LookupMaxAttempts = envInt("LOOKUP_MAX_ATTEMPTS", c.LookupMaxAttempts)
	c.LookupRetryDelay = envDuration("LOOKUP_RETRY_DELAY", c.LookupRetryDelay)
	c.LookupTimeout = envDuration("LOOKUP_TIMEOUT", c.LookupTimeout)
	c.WaypointDelay = envDuration("WAYPOINT_DELAY", c.WaypointDelay)

	setString(&c.BridgeBaseURL, os.Getenv("BRIDGE_BASE_URL"))
	setString(&c.BridgeWSURL, os.Getenv("BRIDGE_WS_URL"))
	setString(&c.BridgeEgress, strings.ToLower(os.Getenv("BRIDGE_EGRESS")))

	if v := strings.TrimSpace(os.Getenv("CHAT_RATE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ChatRate = f
		}
	}
	c.ChatBurst = envInt("CHAT_BURST", c.ChatBurst)

	setString(&c.RedisURL, os.Getenv("REDIS_URL"))
	setString(&c.DatabaseURL, os.Getenv("DATABASE_URL"))
	setString(&c.MetricsAddr, os.Getenv("METRICS_ADDR"))
	setString(&c.MessagesDir, os.Getenv("MESSAGES_DIR"))
}

func (c *AppConfig) Validate() error {
	if c.BlueMapURL == "" {
		return errors.New("BLUEMAP_API_URL is required")
	}
	if c.BridgeWSURL == "" {
		return errors.New("BRIDGE_WS_URL is required")
	}
	if utf8.RuneCountInString(c.CommandPrefix) != 1 {
		return fmt.Errorf("BOT_PREFIX must be a single character, got %q", c.CommandPrefix)
	}
	if len(c.SuperOperators) == 0 {
		return errors.New("at least one super operator is required")
	}
	if c.LookupMaxAttempts < 1 {
		return fmt.Errorf("LOOKUP_MAX_ATTEMPTS must be >= 1, got %d", c.LookupMaxAttempts)
	}
	if c.LookupRetryDelay < 0 || c.WaypointDelay < 0 {
		return errors.New("delays must not be negative")
	}
	switch c.BridgeEgress {
	case "http", "ws", "auto":
	default:
		return fmt.Errorf("BRIDGE_EGRESS must be http, ws or auto, got %q", c.BridgeEgress)
	}
	if c.BridgeEgress != "ws" && c.BridgeBaseURL == "" {
		return fmt.Errorf("BRIDGE_BASE_URL is required for %s egress", c.BridgeEgress)
	}
	if c.ChatRate < 0 || c.ChatBurst < 0 {
		return errors.New("CHAT_RATE and CHAT_BURST must not be negative")
	}
	if _, err := c.ServerPort(); err != nil {
		return err
	}
	return nil
}

// ServerHost returns the host part of ServerAddress.
func (c *AppConfig) ServerHost() string {
	if h, _, err := net.SplitHostPort(c.ServerAddress); err == nil {
		return h
	}
	return c.ServerAddress
}

// ServerPort returns the port of ServerAddress, 25565 when omitted.
func (c *AppConfig) ServerPort() (int, error) {
	if c.ServerAddress == "" || !strings.Contains(c.ServerAddress, ":") {
		return defaultServerPort, nil
	}
	_, p, err := net.SplitHostPort(c.ServerAddress)
	if err != nil {
		return 0, fmt.Errorf("SERVER_ADDRESS %q: %w", c.ServerAddress, err)
	}
	if p == "" {
		return defaultServerPort, nil
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("SERVER_ADDRESS %q: invalid port", c.ServerAddress)
	}
	return n, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func cleanList(in []string) []string {
	var out []string
	for _, p := range in {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
