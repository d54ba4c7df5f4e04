// Package config loads runtime settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/normalizer"
	"github.com/bean-lens/beanlens/internal/queue"
)

// ErrInvalidConfig wraps every validation problem
var ErrInvalidConfig = errors.New("invalid config")

// Matching holds the fuzzy acceptance constants
type Matching struct {
	Threshold        float64            `yaml:"threshold"`
	MinMargin        float64            `yaml:"min_margin"`
	DomainThresholds map[string]float64 `yaml:"domain_thresholds"`
}

// Queue configures where unknown values are recorded
type Queue struct {
	Path                 string  `yaml:"path"`
	Source               string  `yaml:"source"`
	RemoteURL            string  `yaml:"remote_url"`
	RemoteToken          string  `yaml:"remote_token"`
	RemoteTimeoutSeconds float64 `yaml:"remote_timeout_seconds"`
}

// Receiver configures the webhook receiver
type Receiver struct {
	Addr           string `yaml:"addr"`
	Token          string `yaml:"token"`
	DatabaseURL    string `yaml:"database_url"`
	RecentCapacity int    `yaml:"recent_capacity"`
}

// Config is the full runtime configuration
type Config struct {
	DictionaryVersion string   `yaml:"dictionary_version"`
	DictionaryDir     string   `yaml:"dictionary_dir"`
	Locale            string   `yaml:"locale"`
	MinConfidence     float64  `yaml:"min_confidence"`
	Matching          Matching `yaml:"matching"`
	Queue             Queue    `yaml:"queue"`
	Receiver          Receiver `yaml:"receiver"`
}

const (
	DefaultQueuePath      = "data/unknown_queue.jsonl"
	DefaultReceiverAddr   = ":8100"
	DefaultRecentCapacity = 500
)

// Default returns the built-in configuration
func Default() Config {
	thresholds := make(map[string]float64, len(matcher.DefaultDomainThresholds))
	for domain, t := range matcher.DefaultDomainThresholds {
		thresholds[string(domain)] = t
	}
	return Config{
		DictionaryVersion: dictionary.DefaultVersion,
		MinConfidence:     normalizer.DefaultMinConfidence,
		Matching: Matching{
			Threshold:        matcher.DefaultThreshold,
			MinMargin:        matcher.DefaultMinMargin,
			DomainThresholds: thresholds,
		},
		Queue: Queue{
			Path:                 DefaultQueuePath,
			Source:               queue.DefaultSource,
			RemoteTimeoutSeconds: queue.DefaultRemoteTimeout.Seconds(),
		},
		Receiver: Receiver{
			Addr:           DefaultReceiverAddr,
			RecentCapacity: DefaultRecentCapacity,
		},
	}
}

// Load reads path over the defaults, applies the environment and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from lookup, which is usually os.LookupEnv
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var problems []error

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	float := func(name string, dst *float64) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = f
	}
	integer := func(name string, dst *int) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}

	str("BEANLENS_DICTIONARY_VERSION", &c.DictionaryVersion)
	str("BEANLENS_DICTIONARY_DIR", &c.DictionaryDir)
	str("BEANLENS_LOCALE", &c.Locale)
	float("BEANLENS_FUZZY_THRESHOLD", &c.Matching.Threshold)
	float("BEANLENS_FUZZY_MIN_MARGIN", &c.Matching.MinMargin)
	float("UNKNOWN_MIN_CONFIDENCE", &c.MinConfidence)
	str("UNKNOWN_QUEUE_PATH", &c.Queue.Path)
	str("UNKNOWN_QUEUE_SOURCE", &c.Queue.Source)
	str("UNKNOWN_QUEUE_WEBHOOK_URL", &c.Queue.RemoteURL)
	str("UNKNOWN_QUEUE_WEBHOOK_TOKEN", &c.Queue.RemoteToken)
	float("UNKNOWN_QUEUE_WEBHOOK_TIMEOUT_SECONDS", &c.Queue.RemoteTimeoutSeconds)
	str("UNKNOWN_QUEUE_RECEIVER_ADDR", &c.Receiver.Addr)
	str("UNKNOWN_QUEUE_RECEIVER_TOKEN", &c.Receiver.Token)
	str("DATABASE_URL", &c.Receiver.DatabaseURL)
	integer("UNKNOWN_QUEUE_RECENT_CAPACITY", &c.Receiver.RecentCapacity)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}

// Validate reports every out-of-range value
func (c Config) Validate() error {
	var problems []error
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Errorf("%s must be within [0, 1], got %v", name, v))
		}
	}

	if strings.TrimSpace(c.DictionaryVersion) == "" {
		problems = append(problems, errors.New("dictionary_version is required"))
	}
	unit("matching.threshold", c.Matching.Threshold)
	unit("matching.min_margin", c.Matching.MinMargin)
	unit("min_confidence", c.MinConfidence)
	for name, t := range c.Matching.DomainThresholds {
		if _, err := dictionary.ParseDomain(name); err != nil {
			problems = append(problems, fmt.Errorf("matching.domain_thresholds: %w", err))
			continue
		}
		unit("matching.domain_thresholds."+name, t)
	}
	if c.Queue.RemoteTimeoutSeconds < 0 {
		problems = append(problems, fmt.Errorf("queue.remote_timeout_seconds must be >= 0, got %v", c.Queue.RemoteTimeoutSeconds))
	}
	if c.Receiver.RecentCapacity < 0 {
		problems = append(problems, fmt.Errorf("receiver.recent_capacity must be >= 0, got %d", c.Receiver.RecentCapacity))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}

// MatcherConfig converts the matching section. Call Validate first.
func (c Config) MatcherConfig() matcher.Config {
	thresholds := make(map[dictionary.Domain]float64, len(c.Matching.DomainThresholds))
	for name, t := range c.Matching.DomainThresholds {
		if domain, err := dictionary.ParseDomain(name); err == nil {
			thresholds[domain] = t
		}
	}
	return matcher.Config{
		Threshold:        c.Matching.Threshold,
		MinMargin:        c.Matching.MinMargin,
		DomainThresholds: thresholds,
	}
}

// NormalizerConfig returns the queueing settings
func (c Config) NormalizerConfig() normalizer.Config {
	return normalizer.Config{
		MinConfidence: c.MinConfidence,
		Source:        c.Queue.Source,
		Locale:        c.Locale,
	}
}

// RemoteTimeout converts queue.remote_timeout_seconds
func (c Config) RemoteTimeout() time.Duration {
	if c.Queue.RemoteTimeoutSeconds <= 0 {
		return queue.DefaultRemoteTimeout
	}
	return time.Duration(c.Queue.RemoteTimeoutSeconds * float64(time.Second))
}
