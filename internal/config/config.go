package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/evanofslack/cloudflare-ddns/internal/zone"
	"gopkg.in/yaml.v3"
)

const (
	defaultSyncInterval   = 5 * time.Minute
	defaultIPEndpoint     = "https://checkip.amazonaws.com"
	defaultHTTPTimeout    = 30 * time.Second
	defaultHistoryPath    = "cloudflare-ddns.db"
	defaultMetricsAddress = ":9090"
	defaultLogLevel       = "info"
	defaultLogEnv         = "prod"

	envPrefix = "CLOUDFLARE_DDNS_"
	// Token variable read by earlier releases.
	legacyTokenEnv = "CLOUDFLARE_API_KEY"
)

type Config struct {
	SyncInterval time.Duration `yaml:"syncInterval"`
	HTTPTimeout  time.Duration `yaml:"httpTimeout"`
	HistoryPath  string        `yaml:"historyPath"`
	Log          Log           `yaml:"log"`
	IP           IP            `yaml:"ip"`
	DNS          DNS           `yaml:"dns"`
	Reconcile    Reconcile     `yaml:"reconcile"`
	Metrics      Metrics       `yaml:"metrics"`
}

type IP struct {
	Endpoint string `yaml:"endpoint"`
}

type DNS struct {
	Token  string   `yaml:"token"`
	Zones  []string `yaml:"zones"`
	APIURL string   `yaml:"apiUrl"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type Reconcile struct {
	DryRun           bool     `yaml:"dryRun"`
	ProtectedRecords []string `yaml:"protectedRecords"`
}

type Metrics struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
}

func (m Metrics) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			f.Close()
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaultHistoryPath
	}
	if cfg.IP.Endpoint == "" {
		cfg.IP.Endpoint = defaultIPEndpoint
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = defaultMetricsAddress
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
}

// Override from environment if set
func applyEnv(cfg *Config) {
	if token := os.Getenv(legacyTokenEnv); token != "" {
		cfg.DNS.Token = token
	}
	if token := os.Getenv(envPrefix + "TOKEN"); token != "" {
		cfg.DNS.Token = token
	}
	if zones := os.Getenv(envPrefix + "ZONES"); zones != "" {
		cfg.DNS.Zones = splitList(zones)
	}
	if apiURL := os.Getenv(envPrefix + "API_URL"); apiURL != "" {
		cfg.DNS.APIURL = apiURL
	}
	if syncInterval := os.Getenv(envPrefix + "INTERVAL"); syncInterval != "" {
		if interval, err := time.ParseDuration(syncInterval); err == nil {
			cfg.SyncInterval = interval
		} else {
			slog.Default().Warn("fail parse sync interval to duration from string", "interval", syncInterval, "error", err)
		}
	}
	if timeout := os.Getenv(envPrefix + "HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.HTTPTimeout = d
		} else {
			slog.Default().Warn("fail parse http timeout to duration from string", "timeout", timeout, "error", err)
		}
	}
	if endpoint := os.Getenv(envPrefix + "IP_ENDPOINT"); endpoint != "" {
		cfg.IP.Endpoint = endpoint
	}
	if historyPath := os.Getenv(envPrefix + "HISTORY_PATH"); historyPath != "" {
		cfg.HistoryPath = historyPath
	}
	if dryRun := os.Getenv(envPrefix + "DRYRUN"); dryRun != "" {
		switch strings.ToLower(dryRun) {
		case "true":
			cfg.Reconcile.DryRun = true
		case "false":
			cfg.Reconcile.DryRun = false
		default:
			slog.Default().Warn("fail parse dryrun to bool from string", "dryrun", dryRun)
		}
	}
	if protected := os.Getenv(envPrefix + "PROTECTED_RECORDS"); protected != "" {
		cfg.Reconcile.ProtectedRecords = splitList(protected)
	}
	if enabled := os.Getenv(envPrefix + "METRICS_ENABLED"); enabled != "" {
		switch strings.ToLower(enabled) {
		case "true":
			cfg.Metrics.Enabled = boolPtr(true)
		case "false":
			cfg.Metrics.Enabled = boolPtr(false)
		default:
			slog.Default().Warn("fail parse metrics enabled to bool from string", "enabled", enabled)
		}
	}
	if addr := os.Getenv(envPrefix + "METRICS_ADDRESS"); addr != "" {
		cfg.Metrics.Address = addr
	}
	if loglevel := os.Getenv(envPrefix + "LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv(envPrefix + "LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
}

// Validate reports missing settings that the daemon cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.DNS.Token == "" {
		errs = append(errs, errors.New("dns token is required"))
	}
	if len(c.DNS.Zones) == 0 {
		errs = append(errs, errors.New("at least one dns zone is required"))
	}
	if _, err := c.ZoneIDs(); err != nil {
		errs = append(errs, err)
	}
	if c.IP.Endpoint == "" {
		errs = append(errs, errors.New("ip endpoint is required"))
	}
	return errors.Join(errs...)
}

// ZoneIDs parses the configured zones in order.
func (c *Config) ZoneIDs() ([]zone.ID, error) {
	ids := make([]zone.ID, 0, len(c.DNS.Zones))
	for _, z := range c.DNS.Zones {
		id, err := zone.Parse(z)
		if err != nil {
			return nil, fmt.Errorf("zone %q: %w", z, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
