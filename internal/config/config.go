package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/edgetrack/internal/channel"
	"github.com/danmuck/edgetrack/internal/properties"
)

var ErrInvalidConfig = errors.New("config: invalid")

const (
	SinkLog  = "log"
	SinkHTTP = "http"
)

type AdminConfig struct {
	Addr        string
	CorsOrigins []string
	// Token, when set, is required on every mutating admin route.
	Token string
}

type StoreConfig struct {
	// Path of the leveldb directory; empty keeps flags in memory.
	Path string
}

type ChannelConfig struct {
	Sink     string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Queue    channel.QueueConfig
}

// TargetConfig declares one target created at startup.
type TargetConfig struct {
	Token  string `toml:"token"`
	Parent string `toml:"parent,omitempty"`
	// Enabled overrides the persisted flag when set.
	Enabled    *bool             `toml:"enabled,omitempty"`
	Properties map[string]string `toml:"properties,omitempty"`
}

type Config struct {
	Name     string
	LogLevel string
	Admin    AdminConfig
	Store    StoreConfig
	Channel  ChannelConfig
	Limits   properties.Limits
	Targets  []TargetConfig
}

func DefaultConfig() Config {
	return Config{
		Name:     "edgetrack",
		LogLevel: "info",
		Admin: AdminConfig{
			Addr: "127.0.0.1:9300",
		},
		Channel: ChannelConfig{
			Sink:    SinkLog,
			Timeout: 10 * time.Second,
			Queue:   channel.DefaultQueueConfig(),
		},
		Limits: properties.DefaultLimits(),
	}
}

type fileConfig struct {
	Name     string         `toml:"name"`
	LogLevel string         `toml:"log_level"`
	Admin    fileAdmin      `toml:"admin"`
	Store    fileStore      `toml:"store"`
	Channel  fileChannel    `toml:"channel"`
	Limits   fileLimits     `toml:"limits"`
	Targets  []TargetConfig `toml:"targets"`
}

type fileAdmin struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type fileStore struct {
	Path string `toml:"path"`
}

type fileChannel struct {
	Sink              string  `toml:"sink"`
	Endpoint          string  `toml:"endpoint"`
	APIKey            string  `toml:"api_key"`
	Timeout           string  `toml:"timeout"`
	Buffer            int     `toml:"buffer"`
	MaxAttempts       int     `toml:"max_attempts"`
	RatePerSecond     float64 `toml:"rate_per_second"`
	Burst             int     `toml:"burst"`
	BackoffInitial    string  `toml:"backoff_initial"`
	BackoffMax        string  `toml:"backoff_max"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	BackoffJitter     bool    `toml:"backoff_jitter"`
}

type fileLimits struct {
	MaxNameLength  int `toml:"max_name_length"`
	MaxValueLength int `toml:"max_value_length"`
	MaxProperties  int `toml:"max_properties"`
}

// Load reads path over DefaultConfig; only keys present in the file override defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown keys %v", ErrInvalidConfig, undecoded)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("admin", "addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.Admin.Addr)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = normalizeList(raw.Admin.CorsOrigins)
	}
	if meta.IsDefined("admin", "token") {
		cfg.Admin.Token = strings.TrimSpace(raw.Admin.Token)
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	if err := applyChannel(&cfg.Channel, raw.Channel, meta); err != nil {
		return Config{}, err
	}
	if meta.IsDefined("limits", "max_name_length") {
		cfg.Limits.MaxNameLength = raw.Limits.MaxNameLength
	}
	if meta.IsDefined("limits", "max_value_length") {
		cfg.Limits.MaxValueLength = raw.Limits.MaxValueLength
	}
	if meta.IsDefined("limits", "max_properties") {
		cfg.Limits.MaxProperties = raw.Limits.MaxProperties
	}
	if meta.IsDefined("targets") {
		cfg.Targets = raw.Targets
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyChannel(cfg *ChannelConfig, raw fileChannel, meta toml.MetaData) error {
	if meta.IsDefined("channel", "sink") {
		cfg.Sink = strings.ToLower(strings.TrimSpace(raw.Sink))
	}
	if meta.IsDefined("channel", "endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("channel", "api_key") {
		cfg.APIKey = raw.APIKey
	}
	if meta.IsDefined("channel", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse channel.timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("channel", "buffer") {
		cfg.Queue.Buffer = raw.Buffer
	}
	if meta.IsDefined("channel", "max_attempts") {
		cfg.Queue.MaxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("channel", "rate_per_second") {
		cfg.Queue.RatePerSecond = raw.RatePerSecond
	}
	if meta.IsDefined("channel", "burst") {
		cfg.Queue.Burst = raw.Burst
	}
	if meta.IsDefined("channel", "backoff_initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffInitial))
		if err != nil {
			return fmt.Errorf("parse channel.backoff_initial: %w", err)
		}
		cfg.Queue.Backoff.InitialDelay = d
	}
	if meta.IsDefined("channel", "backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffMax))
		if err != nil {
			return fmt.Errorf("parse channel.backoff_max: %w", err)
		}
		cfg.Queue.Backoff.MaxDelay = d
	}
	if meta.IsDefined("channel", "backoff_multiplier") {
		cfg.Queue.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("channel", "backoff_jitter") {
		cfg.Queue.Backoff.Jitter = raw.BackoffJitter
	}
	return nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Admin.Addr) == "" {
		return fmt.Errorf("%w: missing admin.addr", ErrInvalidConfig)
	}
	switch cfg.Channel.Sink {
	case SinkLog:
	case SinkHTTP:
		if strings.TrimSpace(cfg.Channel.Endpoint) == "" {
			return fmt.Errorf("%w: channel.endpoint required for http sink", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown channel.sink %q", ErrInvalidConfig, cfg.Channel.Sink)
	}
	if cfg.Channel.Queue.Buffer < 0 || cfg.Channel.Queue.MaxAttempts < 0 || cfg.Channel.Queue.RatePerSecond < 0 {
		return fmt.Errorf("%w: channel queue settings must not be negative", ErrInvalidConfig)
	}
	if _, err := OrderTargets(cfg.Targets); err != nil {
		return err
	}
	for i, tc := range cfg.Targets {
		if err := cfg.Limits.ValidateMap(tc.Properties); err != nil {
			return fmt.Errorf("%w: targets[%d] %q: %v", ErrInvalidConfig, i, tc.Token, err)
		}
	}
	return nil
}

// OrderTargets returns targets with every parent ahead of its children,
// otherwise preserving declaration order.
func OrderTargets(targets []TargetConfig) ([]TargetConfig, error) {
	byToken := make(map[string]TargetConfig, len(targets))
	for i, tc := range targets {
		token := tc.Token
		if strings.TrimSpace(token) == "" {
			return nil, fmt.Errorf("%w: targets[%d] missing token", ErrInvalidConfig, i)
		}
		if _, dup := byToken[token]; dup {
			return nil, fmt.Errorf("%w: duplicate target token %q", ErrInvalidConfig, token)
		}
		byToken[token] = tc
	}
	for _, tc := range targets {
		if tc.Parent != "" {
			if _, ok := byToken[tc.Parent]; !ok {
				return nil, fmt.Errorf("%w: target %q references undeclared parent %q", ErrInvalidConfig, tc.Token, tc.Parent)
			}
		}
	}

	out := make([]TargetConfig, 0, len(targets))
	placed := make(map[string]bool, len(targets))
	visiting := make(map[string]bool)
	var place func(token string) error
	place = func(token string) error {
		if placed[token] {
			return nil
		}
		if visiting[token] {
			return fmt.Errorf("%w: target parent cycle at %q", ErrInvalidConfig, token)
		}
		visiting[token] = true
		tc := byToken[token]
		if tc.Parent != "" {
			if err := place(tc.Parent); err != nil {
				return err
			}
		}
		visiting[token] = false
		placed[token] = true
		out = append(out, tc)
		return nil
	}
	for _, tc := range targets {
		if err := place(tc.Token); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
