// Package config loads settings for the pixelpusher client and relay from defaults, an optional toml file,
// PIXELPUSHER_ environment variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PIXELPUSHER"

type Client struct {
	Client ClientSettings `mapstructure:"client"`
	Sync   SyncSettings   `mapstructure:"sync"`
	Log    LogSettings    `mapstructure:"log"`
}

type ClientSettings struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	DataDir  string `mapstructure:"data_dir"`
	Relay    string `mapstructure:"relay"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type SyncSettings struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Relay struct {
	Relay RelaySettings `mapstructure:"relay"`
	Log   LogSettings   `mapstructure:"log"`
}

type RelaySettings struct {
	Addr           string        `mapstructure:"addr"`
	Database       string        `mapstructure:"database"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	RenderOnExit   bool          `mapstructure:"render_on_exit"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
}

// SlogLevel parses the configured level name (debug, info, warn, error).
func (l LogSettings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// RelayURL returns the relay base url, or nil when the client runs offline. A bare host:port means plain http.
func (c ClientSettings) RelayURL() (*url.URL, error) {
	if c.Relay == "" {
		return nil, nil
	}
	raw := c.Relay
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid relay %q: %w", c.Relay, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid relay %q: missing host", c.Relay)
	}
	return u, nil
}

// ArchivePath is the sqlite file holding this client's documents.
func (c ClientSettings) ArchivePath() string {
	id := c.ID
	if id == "" {
		id = "default"
	}
	return filepath.Join(c.DataDir, "client-"+id+".sqlite3")
}

func dataHome() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "pixelpusher")
}

// LoadClient reads the client configuration. args are the command line arguments without the program name.
func LoadClient(args []string) (Client, error) {
	v := viper.New()
	v.SetDefault("client.id", "")
	v.SetDefault("client.name", "anonymous")
	v.SetDefault("client.data_dir", dataHome())
	v.SetDefault("client.relay", "")
	v.SetDefault("client.read_only", false)
	v.SetDefault("sync.interval", time.Second)
	v.SetDefault("log.level", "info")

	fs := pflag.NewFlagSet("pixelpusher", pflag.ContinueOnError)
	fs.String("id", "", "peer id announced to other clients (random when empty)")
	fs.String("name", "anonymous", "display name announced to other clients")
	fs.String("data-dir", dataHome(), "directory holding the local document archive")
	fs.String("relay", "", "relay host:port or url; empty runs offline")
	fs.Bool("read-only", false, "open documents without publishing local edits")
	fs.Duration("sync-interval", time.Second, "interval between sync messages and reconnects")
	fs.String("log-level", "info", "debug, info, warn or error")
	bindings := map[string]string{
		"client.id":        "id",
		"client.name":      "name",
		"client.data_dir":  "data-dir",
		"client.relay":     "relay",
		"client.read_only": "read-only",
		"sync.interval":    "sync-interval",
		"log.level":        "log-level",
	}

	var c Client
	if err := load(v, fs, bindings, "client", args, &c); err != nil {
		return Client{}, err
	}
	if c.Sync.Interval <= 0 {
		return Client{}, fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return Client{}, err
	}
	if _, err := c.Client.RelayURL(); err != nil {
		return Client{}, err
	}
	return c, nil
}

// LoadRelay reads the relay configuration. args are the command line arguments without the program name.
func LoadRelay(args []string) (Relay, error) {
	v := viper.New()
	v.SetDefault("relay.addr", "localhost:8080")
	v.SetDefault("relay.database", "relay.sqlite3")
	v.SetDefault("relay.sync_interval", time.Second)
	v.SetDefault("relay.backup_interval", 5*time.Second)
	v.SetDefault("relay.render_on_exit", false)
	v.SetDefault("log.level", "info")

	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	fs.String("addr", "localhost:8080", "the address to listen on")
	fs.String("database", "relay.sqlite3", "sqlite file the documents are backed up to")
	fs.Duration("sync-interval", time.Second, "interval between sync messages sent to each peer")
	fs.Duration("backup-interval", 5*time.Second, "interval between backups of changed documents")
	fs.Bool("render-on-exit", false, "render each document history to a temporary svg on shutdown")
	fs.String("log-level", "info", "debug, info, warn or error")
	bindings := map[string]string{
		"relay.addr":            "addr",
		"relay.database":        "database",
		"relay.sync_interval":   "sync-interval",
		"relay.backup_interval": "backup-interval",
		"relay.render_on_exit":  "render-on-exit",
		"log.level":             "log-level",
	}

	var r Relay
	if err := load(v, fs, bindings, "relay", args, &r); err != nil {
		return Relay{}, err
	}
	if r.Relay.SyncInterval <= 0 {
		return Relay{}, fmt.Errorf("relay.sync_interval must be positive, got %s", r.Relay.SyncInterval)
	}
	if r.Relay.BackupInterval <= 0 {
		return Relay{}, fmt.Errorf("relay.backup_interval must be positive, got %s", r.Relay.BackupInterval)
	}
	if _, err := r.Log.SlogLevel(); err != nil {
		return Relay{}, err
	}
	return r, nil
}

func load(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string, name string, args []string, out any) error {
	fs.String("config", "", "path to a toml config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	v.SetConfigType("toml")
	cfgPath, _ := fs.GetString("config")
	if cfgPath == "" {
		cfgPath = os.Getenv(envPrefix + "_CONFIG")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "pixelpusher"))
		v.SetConfigName(name)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
