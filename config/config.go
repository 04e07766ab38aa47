// Package config loads guardctl settings from TOML or YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/guardcache"
	"github.com/unkn0wn-root/guardcache/retry"
	"github.com/unkn0wn-root/guardcache/soap"
)

// Duration is a time.Duration written as text ("250ms", "10m") in config files.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

type Config struct {
	Cache Cache `toml:"cache" yaml:"cache"`
	Redis Redis `toml:"redis" yaml:"redis"`
	Mongo Mongo `toml:"mongo" yaml:"mongo"`
	Lock  Lock  `toml:"lock" yaml:"lock"`
	Retry Retry `toml:"retry" yaml:"retry"`
	SOAP  SOAP  `toml:"soap" yaml:"soap"`
	Log   Log   `toml:"log" yaml:"log"`
}

type Cache struct {
	Namespace string `toml:"namespace" yaml:"namespace"`
	// Backend is one of memory, bigcache, sturdyc, redis, mongo or none.
	Backend string `toml:"backend" yaml:"backend"`
	// Codec is one of json, msgpack or cbor.
	Codec               string   `toml:"codec" yaml:"codec"`
	MaxValueBytes       int      `toml:"max_value_bytes" yaml:"max_value_bytes"`
	DefaultTTL          Duration `toml:"default_ttl" yaml:"default_ttl"`
	NullTTL             Duration `toml:"null_ttl" yaml:"null_ttl"`
	LockTimeout         Duration `toml:"lock_timeout" yaml:"lock_timeout"`
	DisableLockFallback bool     `toml:"disable_lock_fallback" yaml:"disable_lock_fallback"`
	MaxCost             int64    `toml:"max_cost" yaml:"max_cost"`
}

type Redis struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

type Mongo struct {
	URI        string `toml:"uri" yaml:"uri"`
	Database   string `toml:"database" yaml:"database"`
	Collection string `toml:"collection" yaml:"collection"`
}

type Lock struct {
	// Backend is one of local, redis or none.
	Backend    string   `toml:"backend" yaml:"backend"`
	Lease      Duration `toml:"lease" yaml:"lease"`
	RetryDelay Duration `toml:"retry_delay" yaml:"retry_delay"`
}

type Retry struct {
	Timeout            Duration `toml:"timeout" yaml:"timeout"`
	MaxRetries         int      `toml:"max_retries" yaml:"max_retries"`
	BaseDelay          Duration `toml:"base_delay" yaml:"base_delay"`
	MaxDelay           Duration `toml:"max_delay" yaml:"max_delay"`
	Jitter             Duration `toml:"jitter" yaml:"jitter"`
	RetryableStatus    []int    `toml:"retryable_status" yaml:"retryable_status"`
	NonRetryableStatus []int    `toml:"non_retryable_status" yaml:"non_retryable_status"`
}

type SOAP struct {
	WSDL          string            `toml:"wsdl" yaml:"wsdl"`
	Endpoint      string            `toml:"endpoint" yaml:"endpoint"`
	Headers       map[string]string `toml:"headers" yaml:"headers"`
	Username      string            `toml:"username" yaml:"username"`
	Password      string            `toml:"password" yaml:"password"`
	PasswordType  string            `toml:"password_type" yaml:"password_type"`
	CreateTimeout Duration          `toml:"create_timeout" yaml:"create_timeout"`
	CallTimeout   Duration          `toml:"call_timeout" yaml:"call_timeout"`
}

type Log struct {
	Level     string `toml:"level" yaml:"level"`
	Formatter string `toml:"formatter" yaml:"formatter"` // text, json or logfmt
}

func Default() Config {
	p := retry.DefaultPolicy()
	return Config{
		Cache: Cache{
			Namespace:   "guardctl",
			Backend:     "memory",
			Codec:       "json",
			DefaultTTL:  Duration{10 * time.Minute},
			NullTTL:     Duration{time.Minute},
			LockTimeout: Duration{10 * time.Second},
			MaxCost:     64 << 20,
		},
		Redis: Redis{Addr: "127.0.0.1:6379"},
		Mongo: Mongo{Database: "guardcache", Collection: "entries"},
		Lock:  Lock{Backend: "local", Lease: Duration{30 * time.Second}, RetryDelay: Duration{50 * time.Millisecond}},
		Retry: Retry{
			Timeout:    Duration{10 * time.Second},
			MaxRetries: p.MaxRetries,
			BaseDelay:  Duration{p.BaseDelay},
			MaxDelay:   Duration{p.MaxDelay},
			Jitter:     Duration{p.Jitter},
		},
		SOAP: SOAP{
			PasswordType:  string(soap.PasswordText),
			CreateTimeout: Duration{10 * time.Second},
			CallTimeout:   Duration{30 * time.Second},
		},
		Log: Log{Level: "info", Formatter: "text"},
	}
}

// Load reads path over Default, picking the format from the extension,
// then applies GUARDCACHE_* environment overrides. An empty path yields
// the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".toml":
			md, err := toml.Decode(string(data), &cfg)
			if err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", path, err)
			}
			if und := md.Undecoded(); len(und) > 0 {
				return Config{}, fmt.Errorf("config: %s: unknown key %q", path, und[0].String())
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", path, err)
			}
		default:
			return Config{}, fmt.Errorf("config: unsupported extension %q", ext)
		}
	}
	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvOverrides covers the settings usually injected as secrets.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GUARDCACHE_REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GUARDCACHE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("GUARDCACHE_MONGO_URI")); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("GUARDCACHE_SOAP_PASSWORD"); v != "" {
		cfg.SOAP.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("GUARDCACHE_CACHE_BACKEND")); v != "" {
		cfg.Cache.Backend = v
	}
	raw := strings.TrimSpace(os.Getenv("GUARDCACHE_DISABLE_LOCK_FALLBACK"))
	if raw == "" {
		return
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		cfg.Cache.DisableLockFallback = b
	}
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", "))
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Cache.Namespace) == "" {
		errs = append(errs, errors.New("cache.namespace is required"))
	}
	if err := oneOf("cache.backend", c.Cache.Backend, "memory", "bigcache", "sturdyc", "redis", "mongo", "none"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("cache.codec", c.Cache.Codec, "json", "msgpack", "cbor"); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("lock.backend", c.Lock.Backend, "local", "redis", "none"); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.DefaultTTL.Duration < 0 || c.Cache.NullTTL.Duration < 0 {
		errs = append(errs, errors.New("cache ttls must not be negative"))
	}
	if (c.Cache.Backend == "redis" || c.Lock.Backend == "redis") && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for redis backends"))
	}
	if c.Cache.Backend == "mongo" && c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required for the mongo backend"))
	}
	if c.Retry.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("retry.timeout must be positive"))
	}
	if err := c.Retry.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if c.SOAP.PasswordType != "" {
		if err := oneOf("soap.password_type", c.SOAP.PasswordType, string(soap.PasswordText), string(soap.PasswordDigest)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.SOAP.CallTimeout.Duration <= 0 {
		errs = append(errs, errors.New("soap.call_timeout must be positive"))
	}
	if err := oneOf("log.formatter", c.Log.Formatter, "text", "json", "logfmt"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policy converts the section to a retry.Policy. Status lists left empty
// keep the defaults.
func (r Retry) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = r.MaxRetries
	p.BaseDelay = r.BaseDelay.Duration
	p.MaxDelay = r.MaxDelay.Duration
	p.Jitter = r.Jitter.Duration
	if len(r.RetryableStatus) > 0 {
		p.RetryableStatus = r.RetryableStatus
	}
	if len(r.NonRetryableStatus) > 0 {
		p.NonRetryableStatus = r.NonRetryableStatus
	}
	return p
}

// Options converts the section to soap.Options. Security is set only when
// a username is configured.
func (s SOAP) Options(l guardcache.Logger) soap.Options {
	o := soap.Options{
		WSDL:          s.WSDL,
		Endpoint:      s.Endpoint,
		Headers:       s.Headers,
		CreateTimeout: s.CreateTimeout.Duration,
		Logger:        l,
	}
	if s.Username != "" {
		o.Security = &soap.Security{
			Username: s.Username,
			Password: s.Password,
			Type:     soap.PasswordType(s.PasswordType),
		}
	}
	return o
}
