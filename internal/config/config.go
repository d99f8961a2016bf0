// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. GRAPHSCOPE_ENDPOINT_URL.
const EnvPrefix = "GRAPHSCOPE"

// Endpoint dialects understood by the query layer.
const (
	EndpointWikidata = "wikidata"
	EndpointDBpedia  = "dbpedia"
)

// Config is the top-level graphscope configuration.
type Config struct {
	Endpoint   EndpointConfig   `mapstructure:"endpoint"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Properties PropertiesConfig `mapstructure:"properties"`
	View       ViewConfig       `mapstructure:"view"`
	Networking NetworkingConfig `mapstructure:"networking"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DataDir    string           `mapstructure:"data_dir"`
}

// EndpointConfig selects the SPARQL endpoint and its dialect.
type EndpointConfig struct {
	URL       string        `mapstructure:"url"`
	Type      string        `mapstructure:"type"`
	Lang      string        `mapstructure:"lang"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LimitsConfig bounds the load placed on the endpoint.
type LimitsConfig struct {
	RateLimit        time.Duration `mapstructure:"rate_limit"`
	SizeLimit        int           `mapstructure:"size_limit"`
	BatchSize        int           `mapstructure:"batch_size"`
	RelationMaxNodes int           `mapstructure:"relation_max_nodes"`
	Breaker          BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig controls when the query client stops calling a failing endpoint.
type BreakerConfig struct {
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

// FetchConfig toggles the detached follow-up fetches of an expansion.
type FetchConfig struct {
	Image   bool `mapstructure:"image"`
	Related bool `mapstructure:"related"`
}

// PropertiesConfig filters predicates out of property lists and relation discovery.
type PropertiesConfig struct {
	Exclude []string `mapstructure:"exclude"`
}

// ViewConfig holds presentation options forwarded to the render engine.
type ViewConfig struct {
	HideEdgeLabels  bool   `mapstructure:"hide_edge_labels"`
	SmoothEdges     bool   `mapstructure:"smooth_edges"`
	HideEdgesOnDrag bool   `mapstructure:"hide_edges_on_drag"`
	Animations      bool   `mapstructure:"animations"`
	FilterColor     string `mapstructure:"filter_color"`
	FilterRange     int    `mapstructure:"filter_range"`
}

// NetworkingConfig controls how the HTTP API listens for connections.
type NetworkingConfig struct {
	Listen      string          `mapstructure:"listen"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is the inbound per-IP API limit.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxStreams        int     `mapstructure:"max_streams"`
}

// StorageConfig selects the snapshot storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.url", "https://query.wikidata.org/sparql")
	v.SetDefault("endpoint.type", EndpointWikidata)
	v.SetDefault("endpoint.lang", "en")
	v.SetDefault("endpoint.auth_token", "")
	v.SetDefault("endpoint.timeout", "30s")
	v.SetDefault("endpoint.user_agent", "graphscope/0.1 (+https://github.com/sigil-dev/graphscope)")
	v.SetDefault("limits.rate_limit", "20ms")
	v.SetDefault("limits.size_limit", 100)
	v.SetDefault("limits.batch_size", 100)
	v.SetDefault("limits.relation_max_nodes", 1000)
	v.SetDefault("limits.breaker.failure_ratio", 0.8)
	v.SetDefault("limits.breaker.min_requests", 5)
	v.SetDefault("limits.breaker.cooldown", "30s")
	v.SetDefault("fetch.image", true)
	v.SetDefault("fetch.related", true)
	v.SetDefault("properties.exclude", []string{})
	v.SetDefault("view.hide_edge_labels", false)
	v.SetDefault("view.smooth_edges", false)
	v.SetDefault("view.hide_edges_on_drag", false)
	v.SetDefault("view.animations", false)
	v.SetDefault("view.filter_color", "#f59e0b")
	v.SetDefault("view.filter_range", 1)
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.rate_limit.requests_per_second", 20.0)
	v.SetDefault("networking.rate_limit.burst", 40)
	v.SetDefault("networking.rate_limit.max_streams", 8)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("data_dir", DefaultDataDir())
}

// SetupEnv binds GRAPHSCOPE_* environment variables to config keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix GRAPHSCOPE_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sigilerr.Errorf(sigilerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

var validate = validator.New()

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one. A malformed endpoint URL is not
// an error here; see Diagnostics.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateEndpoint()...)
	errs = append(errs, c.validateLimits()...)
	errs = append(errs, c.validateProperties()...)
	errs = append(errs, c.validateView()...)
	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)

	return errs
}

// Diagnostics reports problems that do not block startup. Queries proceed
// against whatever endpoint is configured.
func (c *Config) Diagnostics() []string {
	var out []string
	if err := validate.Var(c.Endpoint.URL, "required,url"); err != nil {
		out = append(out, "endpoint.url "+strconv.Quote(c.Endpoint.URL)+" is not a valid URL")
	} else if !strings.HasPrefix(c.Endpoint.URL, "http://") && !strings.HasPrefix(c.Endpoint.URL, "https://") {
		out = append(out, "endpoint.url "+strconv.Quote(c.Endpoint.URL)+" is not an http(s) URL")
	}
	return out
}

func (c *Config) validateEndpoint() []error {
	var errs []error

	validTypes := map[string]bool{EndpointWikidata: true, EndpointDBpedia: true}
	if !validTypes[c.Endpoint.Type] {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: endpoint.type must be one of [wikidata, dbpedia], got %q",
			c.Endpoint.Type,
		))
	}

	if err := validate.Var(c.Endpoint.Lang, "required,bcp47_language_tag"); err != nil {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: endpoint.lang must be a BCP 47 language tag, got %q",
			c.Endpoint.Lang,
		))
	}

	if c.Endpoint.Timeout < 0 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: endpoint.timeout must not be negative, got %s",
			c.Endpoint.Timeout,
		))
	}

	return errs
}

func (c *Config) validateLimits() []error {
	var errs []error

	if c.Limits.RateLimit < 0 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: limits.rate_limit must not be negative, got %s",
			c.Limits.RateLimit,
		))
	}

	for _, f := range []struct {
		key string
		val int
	}{
		{"limits.size_limit", c.Limits.SizeLimit},
		{"limits.batch_size", c.Limits.BatchSize},
		{"limits.relation_max_nodes", c.Limits.RelationMaxNodes},
	} {
		if f.val <= 0 {
			errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
				"config: %s must be greater than 0, got %d", f.key, f.val,
			))
		}
	}

	if r := c.Limits.Breaker.FailureRatio; r <= 0 || r > 1 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: limits.breaker.failure_ratio must be in (0, 1], got %g", r,
		))
	}

	return errs
}

func (c *Config) validateProperties() []error {
	var errs []error

	for i, pattern := range c.Properties.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
				"config: properties.exclude[%d] is not a valid glob, got %q", i, pattern,
			))
		}
	}

	return errs
}

func (c *Config) validateView() []error {
	var errs []error

	if err := validate.Var(c.View.FilterColor, "required,hexcolor"); err != nil {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: view.filter_color must be a hex colour, got %q", c.View.FilterColor,
		))
	}

	if c.View.FilterRange < 0 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: view.filter_range must not be negative, got %d", c.View.FilterRange,
		))
	}

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Networking.Listen)
		if err != nil {
			errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
				"config: networking.listen must be a valid host:port address, got %q: %w",
				c.Networking.Listen, err,
			))
		} else {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 0 || port > 65535 {
				errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
					"config: networking.listen port must be between 0 and 65535, got %d",
					port,
				))
			}
		}
	}

	rl := c.Networking.RateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: networking.rate_limit.requests_per_second must not be negative, got %g",
			rl.RequestsPerSecond,
		))
	}
	if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: networking.rate_limit.burst must be greater than 0 when a rate is set, got %d",
			rl.Burst,
		))
	}
	if rl.MaxStreams < 0 {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: networking.rate_limit.max_streams must not be negative, got %d",
			rl.MaxStreams,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, sigilerr.Errorf(sigilerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	return errs
}

// ExcludesProperty reports whether a predicate URI matches any
// properties.exclude glob.
func (c *Config) ExcludesProperty(uri string) bool {
	for _, pattern := range c.Properties.Exclude {
		if ok, _ := doublestar.Match(pattern, uri); ok {
			return true
		}
	}
	return false
}
