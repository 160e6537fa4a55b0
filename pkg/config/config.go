package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// ProviderConfig is one vCloud-compatible provider endpoint the
// controller can burst workloads onto.
type ProviderConfig struct {
	Name             string `mapstructure:"name"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	VerifySSL        bool   `mapstructure:"verify_ssl"`
	APIVersion       string `mapstructure:"api_version"`
	OrgName          string `mapstructure:"org_name"`
	VDCName          string `mapstructure:"vdc_name"`
	CatalogueName    string `mapstructure:"catalogue_name"`
	GatewayName      string `mapstructure:"gateway_name"`
	GatewayInterface string `mapstructure:"gateway_interface"`
	PipePath         string `mapstructure:"pipe_path"`
}

// SchedulerConfig holds the human-readable durations that govern the
// reconciliation loop. Durations are strings ("5m", "20s") so the YAML
// file reads naturally; Resolved parses them with str2duration.
type SchedulerConfig struct {
	DispatchDeadline  string `mapstructure:"dispatch_deadline"`
	ProvisioningDwell string `mapstructure:"provisioning_dwell"`
}

// GatewayConfig holds the provider HTTP gateway's ambient settings.
type GatewayConfig struct {
	RequestTimeout   string `mapstructure:"request_timeout"`
	BreakerThreshold uint32 `mapstructure:"breaker_threshold"`
	BreakerTimeout   string `mapstructure:"breaker_timeout"`
	MaxRetries       uint   `mapstructure:"max_retries"`
}

// Config is the controller's full runtime configuration, as unmarshaled
// from YAML by viper.
type Config struct {
	DBPath      string          `mapstructure:"db_path"`
	LogLevel    string          `mapstructure:"log_level"`
	LogJSON     bool            `mapstructure:"log_json"`
	MetricsAddr string          `mapstructure:"metrics_addr"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Gateway     GatewayConfig   `mapstructure:"gateway"`
	Providers   []ProviderConfig `mapstructure:"providers"`
}

// Resolved is Config with its string durations parsed, handed to the
// components that actually use them.
type Resolved struct {
	DBPath            string
	LogLevel          string
	LogJSON           bool
	MetricsAddr       string
	DispatchDeadline  time.Duration
	ProvisioningDwell time.Duration
	GatewayTimeout    time.Duration
	BreakerThreshold  uint32
	BreakerTimeout    time.Duration
	MaxRetries        uint
	Providers         []ProviderConfig
}

// Defaults returns the configuration used when a key is absent from the
// config file.
func Defaults() Config {
	return Config{
		DBPath:      "burst.db",
		LogLevel:    "info",
		LogJSON:     false,
		MetricsAddr: ":9273",
		Scheduler: SchedulerConfig{
			DispatchDeadline:  "5m",
			ProvisioningDwell: "20s",
		},
		Gateway: GatewayConfig{
			RequestTimeout:   "10s",
			BreakerThreshold: 5,
			BreakerTimeout:   "30s",
			MaxRetries:       3,
		},
	}
}

// Load reads path (or the working directory's burst.yaml if path is
// empty) into a *viper.Viper and unmarshals it into a Config, falling
// back to Defaults for anything unset.
func Load(path string) (*viper.Viper, *Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_json", d.LogJSON)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("scheduler.dispatch_deadline", d.Scheduler.DispatchDeadline)
	v.SetDefault("scheduler.provisioning_dwell", d.Scheduler.ProvisioningDwell)
	v.SetDefault("gateway.request_timeout", d.Gateway.RequestTimeout)
	v.SetDefault("gateway.breaker_threshold", d.Gateway.BreakerThreshold)
	v.SetDefault("gateway.breaker_timeout", d.Gateway.BreakerTimeout)
	v.SetDefault("gateway.max_retries", d.Gateway.MaxRetries)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("burst")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return v, &cfg, nil
}

// Resolve parses Config's human-readable durations into a Resolved.
func (c Config) Resolve() (Resolved, error) {
	dispatchDeadline, err := str2duration.ParseDuration(c.Scheduler.DispatchDeadline)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: scheduler.dispatch_deadline: %w", err)
	}
	dwell, err := str2duration.ParseDuration(c.Scheduler.ProvisioningDwell)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: scheduler.provisioning_dwell: %w", err)
	}
	gatewayTimeout, err := str2duration.ParseDuration(c.Gateway.RequestTimeout)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: gateway.request_timeout: %w", err)
	}
	breakerTimeout, err := str2duration.ParseDuration(c.Gateway.BreakerTimeout)
	if err != nil {
		return Resolved{}, fmt.Errorf("config: gateway.breaker_timeout: %w", err)
	}

	return Resolved{
		DBPath:            c.DBPath,
		LogLevel:          c.LogLevel,
		LogJSON:           c.LogJSON,
		MetricsAddr:       c.MetricsAddr,
		DispatchDeadline:  dispatchDeadline,
		ProvisioningDwell: dwell,
		GatewayTimeout:    gatewayTimeout,
		BreakerThreshold:  c.Gateway.BreakerThreshold,
		BreakerTimeout:    breakerTimeout,
		MaxRetries:        c.Gateway.MaxRetries,
		Providers:         c.Providers,
	}, nil
}

// Watch registers onChange to fire whenever the underlying config file
// is rewritten, re-unmarshaling and re-resolving before calling back.
// Only the provider list is meant to be consumed from a hot reload;
// db_path and metrics_addr require a restart to take effect.
func Watch(v *viper.Viper, onChange func(Resolved)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		resolved, err := cfg.Resolve()
		if err != nil {
			return
		}
		onChange(resolved)
	})
	v.WatchConfig()
}
