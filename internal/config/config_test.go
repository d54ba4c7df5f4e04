package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bean-lens/beanlens/internal/dictionary"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "v1", cfg.DictionaryVersion)
	assert.Equal(t, 0.9, cfg.MinConfidence)
	assert.Equal(t, "beanlens", cfg.Queue.Source)
	assert.Equal(t, 3*time.Second, cfg.RemoteTimeout())

	mcfg := cfg.MatcherConfig()
	assert.Equal(t, 0.8, mcfg.Threshold)
	assert.Equal(t, 0.05, mcfg.MinMargin)
	assert.Equal(t, 0.85, mcfg.ThresholdFor(dictionary.FlavorNote))
	assert.Equal(t, 0.8, mcfg.ThresholdFor(dictionary.Process))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beanlens.yaml")
	content := `dictionary_version: v2
min_confidence: 0.95
matching:
  threshold: 0.82
  domain_thresholds:
    variety: 0.9
queue:
  path: /tmp/queue.jsonl
  remote_url: https://example.test/unknown-queue
  remote_timeout_seconds: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v2", cfg.DictionaryVersion)
	assert.Equal(t, 0.95, cfg.MinConfidence)
	assert.Equal(t, 0.82, cfg.Matching.Threshold)
	assert.Equal(t, 0.05, cfg.Matching.MinMargin, "unset keys keep defaults")
	assert.Equal(t, "/tmp/queue.jsonl", cfg.Queue.Path)
	assert.Equal(t, 1500*time.Millisecond, cfg.RemoteTimeout())

	mcfg := cfg.MatcherConfig()
	assert.Equal(t, 0.9, mcfg.ThresholdFor(dictionary.Variety))
	assert.Equal(t, 0.85, mcfg.ThresholdFor(dictionary.FlavorNote), "file entries merge into the defaults")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("matching: [\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("min_confidence: 2\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"BEANLENS_DICTIONARY_VERSION":           "v2",
		"BEANLENS_FUZZY_THRESHOLD":              "0.75",
		"UNKNOWN_MIN_CONFIDENCE":                " 0.8 ",
		"UNKNOWN_QUEUE_PATH":                    "/var/queue.jsonl",
		"UNKNOWN_QUEUE_SOURCE":                  "api",
		"UNKNOWN_QUEUE_WEBHOOK_URL":             "https://example.test/hook",
		"UNKNOWN_QUEUE_WEBHOOK_TOKEN":           "secret",
		"UNKNOWN_QUEUE_WEBHOOK_TIMEOUT_SECONDS": "5",
		"UNKNOWN_QUEUE_RECEIVER_TOKEN":          "receiver-secret",
		"UNKNOWN_QUEUE_RECENT_CAPACITY":         "10",
		"BEANLENS_DICTIONARY_DIR":               "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "v2", cfg.DictionaryVersion)
	assert.Equal(t, 0.75, cfg.Matching.Threshold)
	assert.Equal(t, 0.8, cfg.MinConfidence)
	assert.Equal(t, "/var/queue.jsonl", cfg.Queue.Path)
	assert.Equal(t, "https://example.test/hook", cfg.Queue.RemoteURL)
	assert.Equal(t, "secret", cfg.Queue.RemoteToken)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout())
	assert.Equal(t, "receiver-secret", cfg.Receiver.Token)
	assert.Equal(t, 10, cfg.Receiver.RecentCapacity)
	assert.Empty(t, cfg.DictionaryDir, "blank values are ignored")

	ncfg := cfg.NormalizerConfig()
	assert.Equal(t, 0.8, ncfg.MinConfidence)
	assert.Equal(t, "api", ncfg.Source)
}

func TestApplyEnvInvalidNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"BEANLENS_FUZZY_THRESHOLD":      "high",
		"UNKNOWN_QUEUE_RECENT_CAPACITY": "many",
	}))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "BEANLENS_FUZZY_THRESHOLD")
	assert.ErrorContains(t, err, "UNKNOWN_QUEUE_RECENT_CAPACITY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "threshold above one", mutate: func(c *Config) { c.Matching.Threshold = 1.2 }, wantErr: "matching.threshold"},
		{name: "negative margin", mutate: func(c *Config) { c.Matching.MinMargin = -0.1 }, wantErr: "matching.min_margin"},
		{name: "min confidence", mutate: func(c *Config) { c.MinConfidence = 1.5 }, wantErr: "min_confidence"},
		{name: "domain threshold", mutate: func(c *Config) { c.Matching.DomainThresholds["variety"] = 3 }, wantErr: "domain_thresholds.variety"},
		{name: "unknown domain", mutate: func(c *Config) { c.Matching.DomainThresholds["roastery"] = 0.9 }, wantErr: "unknown domain"},
		{name: "negative timeout", mutate: func(c *Config) { c.Queue.RemoteTimeoutSeconds = -1 }, wantErr: "remote_timeout_seconds"},
		{name: "negative capacity", mutate: func(c *Config) { c.Receiver.RecentCapacity = -1 }, wantErr: "recent_capacity"},
		{name: "empty version", mutate: func(c *Config) { c.DictionaryVersion = " " }, wantErr: "dictionary_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
