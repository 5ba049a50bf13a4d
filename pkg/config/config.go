package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rubiojr/topicsync/pkg/core"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultServerURL         = "http://127.0.0.1:8420"
	DefaultListen            = "127.0.0.1:8420"
	DefaultInitialBackoff    = time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultReadTimeout       = 90 * time.Second
	DefaultRequestTimeout    = 15 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultListenerBuffer    = 32

	WebsocketPath = "/ws"
)

type Config struct {
	// Debug is a comma separated list of logger names, or "all".
	Debug  string       `toml:"debug,omitempty"`
	Client ClientConfig `toml:"client"`
	Server ServerConfig `toml:"server"`
}

// ClientConfig configures the realtime connection and the REST client used
// by a session.
type ClientConfig struct {
	ServerURL      string   `toml:"server_url"`
	Token          string   `toml:"token,omitempty"`
	TokenFile      string   `toml:"token_file,omitempty"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
	ReadTimeout    Duration `toml:"read_timeout"`
	RequestTimeout Duration `toml:"request_timeout"`
	ListenerBuffer int      `toml:"listener_buffer"`
	Topics         Topics   `toml:"topics"`
}

// Topics maps each entity collection to the server topic that invalidates it.
type Topics struct {
	Badges        string `toml:"badges"`
	ExtraWork     string `toml:"extra_work"`
	Notifications string `toml:"notifications"`
	Stats         string `toml:"stats"`
}

type ServerConfig struct {
	Listen            string   `toml:"listen"`
	StorageDir        string   `toml:"storage_dir"`
	Token             string   `toml:"token,omitempty"`
	HeartbeatInterval Duration `toml:"heartbeat_interval"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// DefaultTopics returns the topic names the reference backend publishes on.
func DefaultTopics() Topics {
	return Topics{
		Badges:        core.TopicBadges,
		ExtraWork:     core.TopicExtraWork,
		Notifications: core.TopicNotifications,
		Stats:         core.TopicStats,
	}
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{}
	cfg.Server.StorageDir = storageDir
	cfg.applyDefaults()
	return cfg, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.Server.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.Server.StorageDir = storageDir
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	c.Client.ApplyDefaults()
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.HeartbeatInterval.Duration <= 0 {
		c.Server.HeartbeatInterval = Duration{DefaultHeartbeatInterval}
	}
}

// ApplyDefaults fills every unset client field.
func (cc *ClientConfig) ApplyDefaults() {
	if cc.ServerURL == "" {
		cc.ServerURL = DefaultServerURL
	}
	if cc.InitialBackoff.Duration <= 0 {
		cc.InitialBackoff = Duration{DefaultInitialBackoff}
	}
	if cc.MaxBackoff.Duration < cc.InitialBackoff.Duration {
		cc.MaxBackoff = Duration{DefaultMaxBackoff}
	}
	if cc.ReadTimeout.Duration <= 0 {
		cc.ReadTimeout = Duration{DefaultReadTimeout}
	}
	if cc.RequestTimeout.Duration <= 0 {
		cc.RequestTimeout = Duration{DefaultRequestTimeout}
	}
	if cc.ListenerBuffer <= 0 {
		cc.ListenerBuffer = DefaultListenerBuffer
	}
	defaults := DefaultTopics()
	if cc.Topics.Badges == "" {
		cc.Topics.Badges = defaults.Badges
	}
	if cc.Topics.ExtraWork == "" {
		cc.Topics.ExtraWork = defaults.ExtraWork
	}
	if cc.Topics.Notifications == "" {
		cc.Topics.Notifications = defaults.Notifications
	}
	if cc.Topics.Stats == "" {
		cc.Topics.Stats = defaults.Stats
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid client.server_url %q: %w", c.Client.ServerURL, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("invalid client.server_url %q: scheme must be http or https", c.Client.ServerURL)
	}
	t := c.Client.Topics
	seen := map[string]string{}
	for field, name := range map[string]string{
		"badges":        t.Badges,
		"extra_work":    t.ExtraWork,
		"notifications": t.Notifications,
		"stats":         t.Stats,
	} {
		if other, ok := seen[name]; ok {
			return fmt.Errorf("client.topics.%s and client.topics.%s share topic %q", field, other, name)
		}
		seen[name] = field
	}
	return nil
}

// WebsocketURL derives the realtime endpoint from ServerURL (http -> ws,
// https -> wss).
func (cc ClientConfig) WebsocketURL() (string, error) {
	u, err := url.Parse(cc.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + WebsocketPath
	return u.String(), nil
}

// ResolveToken returns the credential to present to the server. A token file
// takes precedence over the inline token.
func (cc ClientConfig) ResolveToken() (string, error) {
	if cc.TokenFile == "" {
		return cc.Token, nil
	}
	data, err := os.ReadFile(cc.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.Server.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/topicsync", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0600)
}

// GetDefaultStorageDir returns the directory holding the backend database.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "topicsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns the configuration directory.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "topicsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
