package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownRSE indicates the RSE has no storage definition.
	ErrUnknownRSE = errors.New("unknown RSE")
	// ErrInvalidConfig indicates the loaded configuration failed validation.
	ErrInvalidConfig = errors.New("invalid config")
)

const (
	// LFN2PFNHash is the default deterministic naming: scope/md5[0:2]/md5[2:4]/name.
	LFN2PFNHash = "hash"
	// LFN2PFNIdentity stores files as scope/name.
	LFN2PFNIdentity = "identity"
)

// Rucio holds catalogue server and account settings.
type Rucio struct {
	Host     string        `yaml:"host"`
	AuthHost string        `yaml:"auth_host"`
	Account  string        `yaml:"account"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RSE describes where a storage element keeps its files and how they are named.
type RSE struct {
	Name string `yaml:"-"`
	// Prefix is the storage root, s3://bucket/base or file:///base.
	Prefix string `yaml:"prefix"`
	// PFNPrefix is the base of the PFN registered in the catalogue, e.g.
	// root://host:1094//base. Empty means the catalogue derives it.
	PFNPrefix string `yaml:"pfn_prefix"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	PathStyle bool   `yaml:"path_style"`
	LFN2PFN   string `yaml:"lfn2pfn"`
}

// Config is the on-disk layout of config.yaml.
type Config struct {
	Rucio          Rucio          `yaml:"rucio"`
	RSEs           map[string]RSE `yaml:"rses"`
	LedgerDir      string         `yaml:"ledger_dir"`
	PushgatewayURL string         `yaml:"pushgateway_url"`
	LogLevel       string         `yaml:"log_level"`
}

// Default returns a config with every optional field set.
func Default() *Config {
	return &Config{
		Rucio:    Rucio{Timeout: 60 * time.Second},
		RSEs:     map[string]RSE{},
		LogLevel: "info",
	}
}

// DefaultPath returns RUCIO_TOOLS_CONFIG or ~/.config/rucio-tools/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("RUCIO_TOOLS_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rucio-tools", "config.yaml")
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.RSEs == nil {
		cfg.RSEs = map[string]RSE{}
	}
	return cfg, nil
}

// Load reads the config file (when present), then applies env overrides and
// validates the result. An explicit path must exist; the default path may not.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	cfg := Default()
	if path != "" {
		fc, err := LoadFile(path)
		switch {
		case err == nil:
			cfg = fc
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with RUCIO_* and RUCIO_TOOLS_* variables.
func (c *Config) ApplyEnv() {
	c.Rucio.Host = getEnv("RUCIO_HOST", c.Rucio.Host)
	c.Rucio.AuthHost = getEnv("RUCIO_AUTH_HOST", c.Rucio.AuthHost)
	c.Rucio.Account = getEnv("RUCIO_ACCOUNT", c.Rucio.Account)
	c.Rucio.Username = getEnv("RUCIO_USERNAME", c.Rucio.Username)
	c.Rucio.Password = getEnv("RUCIO_PASSWORD", c.Rucio.Password)
	c.Rucio.Token = getEnv("RUCIO_AUTH_TOKEN", c.Rucio.Token)
	c.Rucio.Timeout = getEnvDuration("RUCIO_TIMEOUT", c.Rucio.Timeout)
	c.LedgerDir = getEnv("RUCIO_TOOLS_LEDGER_DIR", c.LedgerDir)
	c.PushgatewayURL = getEnv("PUSHGATEWAY_URL", c.PushgatewayURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate checks RSE definitions and normalizes their naming algorithm.
func (c *Config) Validate() error {
	if c.Rucio.AuthHost == "" {
		c.Rucio.AuthHost = c.Rucio.Host
	}
	for name, rse := range c.RSEs {
		rse.Name = name
		if rse.LFN2PFN == "" {
			rse.LFN2PFN = LFN2PFNHash
		}
		if rse.LFN2PFN != LFN2PFNHash && rse.LFN2PFN != LFN2PFNIdentity {
			return fmt.Errorf("%w: rse %s: unknown lfn2pfn %q", ErrInvalidConfig, name, rse.LFN2PFN)
		}
		u, err := url.Parse(rse.Prefix)
		if err != nil || rse.Prefix == "" {
			return fmt.Errorf("%w: rse %s: bad prefix %q", ErrInvalidConfig, name, rse.Prefix)
		}
		if u.Scheme != "s3" && u.Scheme != "file" {
			return fmt.Errorf("%w: rse %s: unsupported scheme %q", ErrInvalidConfig, name, u.Scheme)
		}
		rse.Prefix = strings.TrimSuffix(rse.Prefix, "/")
		rse.PFNPrefix = strings.TrimSuffix(rse.PFNPrefix, "/")
		c.RSEs[name] = rse
	}
	return nil
}

// RSE returns the storage definition for name.
func (c *Config) RSE(name string) (RSE, error) {
	rse, ok := c.RSEs[name]
	if !ok {
		return RSE{}, fmt.Errorf("%w: %s", ErrUnknownRSE, name)
	}
	return rse, nil
}
