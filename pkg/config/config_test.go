package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Client.ServerURL != DefaultServerURL {
		t.Fatalf("expected default server url, got %q", cfg.Client.ServerURL)
	}
	if cfg.Client.Topics != DefaultTopics() {
		t.Fatalf("expected default topics, got %+v", cfg.Client.Topics)
	}
	if cfg.Client.InitialBackoff.Duration != DefaultInitialBackoff || cfg.Client.MaxBackoff.Duration != DefaultMaxBackoff {
		t.Fatalf("unexpected backoff defaults: %v/%v", cfg.Client.InitialBackoff, cfg.Client.MaxBackoff)
	}
	if cfg.Server.StorageDir == "" {
		t.Fatal("expected storage dir to be set")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
debug = "realtime"

[client]
server_url = "https://example.com/app"
token = "abc"
initial_backoff = "250ms"
max_backoff = "5s"

[client.topics]
badges = "badge-changes"

[server]
listen = ":9999"
heartbeat_interval = "5s"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Debug != "realtime" {
		t.Fatalf("debug = %q", cfg.Debug)
	}
	if cfg.Client.InitialBackoff.Duration != 250*time.Millisecond || cfg.Client.MaxBackoff.Duration != 5*time.Second {
		t.Fatalf("unexpected backoff: %v/%v", cfg.Client.InitialBackoff, cfg.Client.MaxBackoff)
	}
	if cfg.Client.Topics.Badges != "badge-changes" || cfg.Client.Topics.Stats != "stats" {
		t.Fatalf("unexpected topics: %+v", cfg.Client.Topics)
	}
	if cfg.Server.Listen != ":9999" || cfg.Server.HeartbeatInterval.Duration != 5*time.Second {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}

	ws, err := cfg.Client.WebsocketURL()
	if err != nil {
		t.Fatal(err)
	}
	if ws != "wss://example.com/app/ws" {
		t.Fatalf("websocket url = %q", ws)
	}
}

func TestLoadConfigRejectsDuplicateTopics(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[client.topics]
badges = "same"
stats = "same"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), `"same"`) {
		t.Fatalf("expected duplicate topic error, got %v", err)
	}
}

func TestLoadConfigRejectsBadScheme(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[client]\nserver_url = \"ftp://x\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestResolveTokenPrefersFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cc := ClientConfig{Token: "inline", TokenFile: tokenFile}
	tok, err := cc.ResolveToken()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "from-file" {
		t.Fatalf("token = %q", tok)
	}

	cc.TokenFile = ""
	if tok, _ := cc.ResolveToken(); tok != "inline" {
		t.Fatalf("token = %q", tok)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	storage := t.TempDir()
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := &Config{}
	cfg.Server.StorageDir = storage
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("save template: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if loaded.Server.StorageDir != storage {
		t.Fatalf("storage dir = %q, want %q", loaded.Server.StorageDir, storage)
	}
	if loaded.Client.ReadTimeout.Duration != 90*time.Second {
		t.Fatalf("read timeout = %v", loaded.Client.ReadTimeout)
	}
}

func TestWatchCallsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("one"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	if err := Watch(ctx, path, func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("two"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange not called after write")
	}
}
