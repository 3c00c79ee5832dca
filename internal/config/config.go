package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
	ToFile  bool   `yaml:"toFile"`
	Caller  bool   `yaml:"caller"`
}

type AppConfig struct {
	ListenAddr     string   `yaml:"listenAddr"`
	WSPath         string   `yaml:"wsPath"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	OpsAddr        string   `yaml:"opsAddr"`

	RedisURL    string `yaml:"redisUrl"`
	DatabaseURL string `yaml:"databaseUrl"`

	InitialClock  time.Duration `yaml:"initialClock"`
	Increment     time.Duration `yaml:"increment"`
	SweepInterval time.Duration `yaml:"sweepInterval"`

	PingInterval time.Duration `yaml:"pingInterval"`
	SendBuffer   int           `yaml:"sendBuffer"`

	ArchiveQueueSize int           `yaml:"archiveQueueSize"`
	ResultTTL        time.Duration `yaml:"resultTTL"`
	RecentResults    int           `yaml:"recentResults"`

	MessagesDir string `yaml:"messagesDir"`

	Log LogConfig `yaml:"log"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:       ":8080",
		WSPath:           "/ws",
		OpsAddr:          ":9090",
		InitialClock:     10 * time.Minute,
		SweepInterval:    time.Second,
		PingInterval:     30 * time.Second,
		SendBuffer:       64,
		ArchiveQueueSize: 256,
		ResultTTL:        24 * time.Hour,
		RecentResults:    100,
		Log: LogConfig{
			Level:   "info",
			Format:  "legacy",
			File:    "logs/relay.log",
			Console: true,
			ToFile:  true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// RELAY_CONFIG_FILE, and environment overrides, in that order.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("RELAY_CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.ListenAddr, "RELAY_LISTEN_ADDR")
	setString(&cfg.WSPath, "RELAY_WS_PATH")
	if v, ok := lookup("RELAY_OPS_ADDR"); ok {
		// "off" disables the ops listener.
		if strings.EqualFold(v, "off") {
			v = ""
		}
		cfg.OpsAddr = v
	}
	if v, ok := lookup("RELAY_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitList(v)
	}

	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MessagesDir, "RELAY_MESSAGES_DIR")

	if err := setMillis(&cfg.InitialClock, "RELAY_INITIAL_MS"); err != nil {
		return err
	}
	if err := setMillis(&cfg.Increment, "RELAY_INCREMENT_MS"); err != nil {
		return err
	}
	if err := setDuration(&cfg.SweepInterval, "RELAY_SWEEP_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.PingInterval, "RELAY_PING_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.ResultTTL, "RELAY_RESULT_TTL"); err != nil {
		return err
	}
	if err := setInt(&cfg.SendBuffer, "RELAY_SEND_BUFFER"); err != nil {
		return err
	}
	if err := setInt(&cfg.ArchiveQueueSize, "RELAY_ARCHIVE_QUEUE"); err != nil {
		return err
	}
	if err := setInt(&cfg.RecentResults, "RELAY_RECENT_RESULTS"); err != nil {
		return err
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.File, "LOG_FILE")
	for key, dst := range map[string]*bool{
		"LOG_TO_CONSOLE": &cfg.Log.Console,
		"LOG_TO_FILE":    &cfg.Log.ToFile,
		"LOG_CALLER":     &cfg.Log.Caller,
	} {
		if err := setBool(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects values the relay cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("ws path %q must start with /", c.WSPath))
	}
	if c.InitialClock <= 0 {
		errs = append(errs, errors.New("initial clock must be positive"))
	}
	if c.Increment < 0 {
		errs = append(errs, errors.New("increment must not be negative"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("sweep interval must not be negative"))
	}
	if c.SendBuffer <= 0 || c.ArchiveQueueSize <= 0 || c.RecentResults <= 0 {
		errs = append(errs, errors.New("buffer sizes must be positive"))
	}
	if c.ResultTTL <= 0 {
		errs = append(errs, errors.New("result ttl must be positive"))
	}
	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setMillis(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = time.Duration(n) * time.Millisecond
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
