// Package config holds the settings shared by the CLI and the search
// pipeline, their defaults, and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/bingscrape/pkg/proxy"
	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultMaxRetries  = 3
	DefaultDelay       = 1 * time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultEndpoint    = "https://www.bing.com/search"
	DefaultFingerprint = "chrome"
	DefaultLimit       = 10
	DefaultFormat      = "text"
	DefaultMaxBodySize = 5 << 20

	// EnvPrefix namespaces environment overrides, e.g. BINGSCRAPE_DELAY=2s.
	EnvPrefix = "BINGSCRAPE"
)

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "csv", "yaml"}

// Config is the flat set of options for one CLI invocation.
type Config struct {
	// MaxRetries is the attempt ceiling for HTTP status failures.
	MaxRetries int `mapstructure:"max_retries"`
	// Delay is the minimum spacing between requests and the backoff base.
	Delay time.Duration `mapstructure:"delay"`
	// Jitter adds up to Jitter*Delay of random extra spacing.
	Jitter  float64       `mapstructure:"jitter"`
	Timeout time.Duration `mapstructure:"timeout"`

	Endpoint    string `mapstructure:"endpoint"`
	Fingerprint string `mapstructure:"fingerprint"`
	// Proxies are rotated per request. ProxyFile adds one URL per line.
	Proxies     []string `mapstructure:"proxies"`
	ProxyFile   string   `mapstructure:"proxy_file"`
	UserAgents  []string `mapstructure:"user_agents"`
	// MaxBodySize caps the results page in bytes. 0 selects DefaultMaxBodySize.
	MaxBodySize int64 `mapstructure:"max_body_size"`

	Limit       int    `mapstructure:"limit"`
	Format      string `mapstructure:"format"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Verbose     bool   `mapstructure:"verbose"`
}

// Default returns a Config populated with the defaults.
func Default() Config {
	return Config{
		MaxRetries:  DefaultMaxRetries,
		Delay:       DefaultDelay,
		Timeout:     DefaultTimeout,
		Endpoint:    DefaultEndpoint,
		Fingerprint: DefaultFingerprint,
		MaxBodySize: DefaultMaxBodySize,
		Limit:       DefaultLimit,
		Format:      DefaultFormat,
	}
}

// SetDefaults registers every default on v so unset keys resolve.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("jitter", d.Jitter)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("fingerprint", d.Fingerprint)
	v.SetDefault("proxies", []string{})
	v.SetDefault("proxy_file", d.ProxyFile)
	v.SetDefault("user_agents", []string{})
	v.SetDefault("max_body_size", d.MaxBodySize)
	v.SetDefault("limit", d.Limit)
	v.SetDefault("format", d.Format)
	v.SetDefault("metrics_port", d.MetricsPort)
	v.SetDefault("verbose", d.Verbose)
}

// NewViper returns a viper instance with defaults and BINGSCRAPE_* env
// bindings. When configFile is non-empty it is read as well.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and returns the first problem found as one of
// the sentinel errors in errors.go.
func (c Config) Validate() error {
	if c.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return ErrInvalidJitter
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return ErrInvalidMetricsPort
	}
	if !validFormat(c.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}
	if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	for _, raw := range c.Proxies {
		if _, err := proxy.Parse(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProxy, err)
		}
	}
	return nil
}

// ProxyList returns Proxies followed by the entries of ProxyFile.
func (c Config) ProxyList() ([]string, error) {
	list := append([]string(nil), c.Proxies...)
	if c.ProxyFile == "" {
		return list, nil
	}

	f, err := os.Open(c.ProxyFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	fromFile, err := proxy.ReadList(f)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", c.ProxyFile, err)
	}
	return append(list, fromFile...), nil
}

func validFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}
