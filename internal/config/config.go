// Package config loads client settings from a YAML file, NNAS_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/pkg/client"
	"github.com/jmerrifield20/nnas/pkg/device"
)

// EnvPrefix namespaces environment overrides: NNAS_ENDPOINT,
// NNAS_RATE_LIMIT_RPS, NNAS_DEVICE_SERIAL and so on.
const EnvPrefix = "NNAS"

// Config is the full client configuration.
type Config struct {
	Endpoint           string            `mapstructure:"endpoint"             validate:"omitempty,url"`
	CertPath           string            `mapstructure:"cert_path"`
	KeyPath            string            `mapstructure:"key_path"`
	CAPath             string            `mapstructure:"ca_path"`
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration     `mapstructure:"timeout"              validate:"gt=0"`
	CacheTTL           time.Duration     `mapstructure:"cache_ttl"            validate:"gte=0"`
	RateLimit          RateLimitConfig   `mapstructure:"rate_limit"`
	Retry              RetryConfig       `mapstructure:"retry"`
	Rules              string            `mapstructure:"rules"                validate:"omitempty,oneof=default account-server"`
	LookupPath         string            `mapstructure:"lookup_path"`
	Headers            map[string]string `mapstructure:"headers"`
	LogLevel           string            `mapstructure:"log_level"            validate:"omitempty,oneof=debug info warn error"`
	Device             DeviceConfig      `mapstructure:"device"`
}

// RateLimitConfig throttles outgoing requests. RPS of zero disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"   validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// RetryConfig bounds retries of dial failures and timeouts. Zero disables them.
type RetryConfig struct {
	MaxElapsed time.Duration `mapstructure:"max_elapsed" validate:"gte=0"`
}

// DeviceConfig is the device profile as it appears in the config file.
type DeviceConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	DeviceCert   string `mapstructure:"device_cert"`
	Environment  string `mapstructure:"environment"`
	Country      string `mapstructure:"country"`
	Region       string `mapstructure:"region"`
	SysVersion   string `mapstructure:"sys_version"`
	Serial       string `mapstructure:"serial"`
	DeviceID     string `mapstructure:"device_id"`
	DeviceType   string `mapstructure:"device_type"`
	PlatformID   string `mapstructure:"platform_id"`
}

// Profile converts the section to a device.Profile.
func (d DeviceConfig) Profile() device.Profile {
	return device.Profile{
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
		DeviceCert:   d.DeviceCert,
		Environment:  d.Environment,
		Country:      d.Country,
		Region:       d.Region,
		SysVersion:   d.SysVersion,
		Serial:       d.Serial,
		DeviceID:     d.DeviceID,
		DeviceType:   d.DeviceType,
		PlatformID:   d.PlatformID,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "")
	v.SetDefault("cert_path", "")
	v.SetDefault("key_path", "")
	v.SetDefault("ca_path", "")
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("timeout", "10s")
	v.SetDefault("cache_ttl", "0s")
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("retry.max_elapsed", "0s")
	v.SetDefault("rules", client.RulesDefault)
	v.SetDefault("lookup_path", client.DefaultLookupPath)
	v.SetDefault("headers", map[string]any{"X-Nintendo-FPD-Version": "0000"})
	v.SetDefault("log_level", "info")

	// Every device key needs a default so AutomaticEnv can see it.
	for _, key := range []string{
		"client_id", "client_secret", "device_cert", "environment", "country",
		"region", "sys_version", "serial", "device_id", "device_type", "platform_id",
	} {
		v.SetDefault("device."+key, "")
	}
}

// Load reads the config file at path, or ./nnas.yaml and ./configs/nnas.yaml
// when path is empty, then applies environment variables and any flags in
// flags that were set on the command line. A flag named "cert-path"
// overrides the key "cert_path". A missing default file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nnas")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	known := map[string]bool{}
	for _, k := range v.AllKeys() {
		known[k] = true
	}
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !known[key] || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("bind flag %q: %w", f.Name, bindErr)
		}
	})
	return err
}

// Validate checks field formats. It does not require the settings a client
// needs; see ValidateForClient.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ValidateForClient reports every setting missing for client construction.
func (c *Config) ValidateForClient() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.CertPath == "" {
		errs = append(errs, errors.New("cert_path is required"))
	}
	if c.KeyPath == "" {
		errs = append(errs, errors.New("key_path is required"))
	}
	return errors.Join(errs...)
}

// ClientOptions translates the config into client options. logger and reg
// may be nil.
func (c *Config) ClientOptions(logger *zap.Logger, reg prometheus.Registerer) ([]client.Option, error) {
	rules, err := client.RulesByName(c.Rules)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithRules(rules),
		client.WithLookupPath(c.LookupPath),
	}
	if c.Timeout > 0 {
		opts = append(opts, client.WithTimeout(c.Timeout))
	}
	if c.CAPath != "" {
		caPEM, err := os.ReadFile(c.CAPath)
		if err != nil {
			return nil, fmt.Errorf("read ca_path: %w", err)
		}
		opts = append(opts, client.WithRootCAs(caPEM))
	}
	if c.InsecureSkipVerify {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	for name, value := range c.Headers {
		// An empty value removes a default header.
		if value == "" {
			continue
		}
		opts = append(opts, client.WithHeader(http.CanonicalHeaderKey(name), value))
	}
	if c.CacheTTL > 0 {
		opts = append(opts, client.WithCacheTTL(c.CacheTTL))
	}
	if c.RateLimit.RPS > 0 {
		opts = append(opts, client.WithRateLimit(c.RateLimit.RPS, c.RateLimit.Burst))
	}
	if c.Retry.MaxElapsed > 0 {
		opts = append(opts, client.WithRetry(c.Retry.MaxElapsed))
	}
	if reg != nil {
		opts = append(opts, client.WithMetrics(reg))
	}
	return opts, nil
}

// ParseLogLevel maps log_level to a zap level. Empty means info.
func ParseLogLevel(level string) (zap.AtomicLevel, error) {
	if level == "" {
		level = "info"
	}
	return zap.ParseAtomicLevel(level)
}
