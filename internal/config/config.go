// Package config provides configuration loading, validation, and defaults for
// gamelog-backfill.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for gamelog-backfill.
type Config struct {
	Log        LogConfig        `yaml:"log"        json:"log"`
	Server     ServerConfig     `yaml:"server"     json:"server"`
	Redis      RedisConfig      `yaml:"redis"      json:"redis"`
	StatsAPI   StatsAPIConfig   `yaml:"stats_api"  json:"stats_api"`
	Fetcher    FetcherConfig    `yaml:"fetcher"    json:"fetcher"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Output     OutputConfig     `yaml:"output"     json:"output"`
	Metrics    MetricsConfig    `yaml:"metrics"    json:"metrics"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  env:"GLB_LOG_LEVEL"  validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" json:"format" env:"GLB_LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

// ServerConfig holds the optional HTTP server settings. The server is only
// started when ListenAddress is set.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address" json:"listen_address" env:"GLB_LISTEN_ADDRESS"`
	EnablePprof   bool   `yaml:"enable_pprof"   json:"enable_pprof"   env:"GLB_ENABLE_PPROF"`
}

// RedisConfig holds Redis connection settings used by the redis checkpoint
// backend.
type RedisConfig struct {
	URL string `yaml:"url" json:"url" env:"GLB_REDIS_URL"`
}

// StatsAPIConfig holds stats API connection settings.
type StatsAPIConfig struct {
	BaseURL              string  `yaml:"base_url"                json:"base_url"                env:"GLB_STATS_BASE_URL"     validate:"required,url"`
	LeagueID             string  `yaml:"league_id"               json:"league_id"               env:"GLB_STATS_LEAGUE_ID"    validate:"required,numeric"`
	Season               string  `yaml:"season"                  json:"season"                  env:"GLB_STATS_SEASON"       validate:"required,season"`
	SeasonType           string  `yaml:"season_type"             json:"season_type"             env:"GLB_STATS_SEASON_TYPE"  validate:"omitempty,oneof='Regular Season' Playoffs 'Pre Season' 'All Star'"`
	OnlyCurrentSeason    bool    `yaml:"only_current_season"     json:"only_current_season"     env:"GLB_STATS_ONLY_CURRENT_SEASON"`
	UserAgent            string  `yaml:"user_agent"              json:"user_agent"              env:"GLB_STATS_USER_AGENT"`
	MaxRequestsPerSecond float64 `yaml:"max_requests_per_second" json:"max_requests_per_second" env:"GLB_STATS_MAX_RPS"      validate:"omitempty,min=0"`
	BurstRequests        int     `yaml:"burst_requests"          json:"burst_requests"          env:"GLB_STATS_BURST"        validate:"omitempty,min=0"`
}

// FetcherConfig tunes the per-identifier fetch loop.
type FetcherConfig struct {
	DelayMilliseconds int    `yaml:"delay_milliseconds" json:"delay_milliseconds" env:"GLB_FETCH_DELAY_MS"        validate:"min=0"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"    json:"timeout_seconds"    env:"GLB_FETCH_TIMEOUT_SECONDS" validate:"min=1"`
	FailurePolicy     string `yaml:"failure_policy"     json:"failure_policy"     env:"GLB_FAILURE_POLICY"        validate:"omitempty,oneof=skip retry"`
}

// Delay returns the polite delay slept before each fetch.
func (c FetcherConfig) Delay() time.Duration {
	return time.Duration(c.DelayMilliseconds) * time.Millisecond
}

// Timeout returns the bound on a single fetch call.
func (c FetcherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	Backend        string `yaml:"backend"          json:"backend"          env:"GLB_CHECKPOINT_BACKEND"        validate:"oneof=file redis memory"`
	Interval       int    `yaml:"interval"         json:"interval"         env:"GLB_CHECKPOINT_INTERVAL"       validate:"min=1"`
	RecordsPath    string `yaml:"records_path"     json:"records_path"     env:"GLB_CHECKPOINT_RECORDS_PATH"`
	ProcessedPath  string `yaml:"processed_path"   json:"processed_path"   env:"GLB_CHECKPOINT_PROCESSED_PATH"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" json:"redis_key_prefix" env:"GLB_CHECKPOINT_REDIS_PREFIX"`
}

// OutputConfig holds the destinations of the finished dataset.
type OutputConfig struct {
	Path    string        `yaml:"path"    json:"path"    env:"GLB_OUTPUT_PATH" validate:"required"`
	Rolling RollingConfig `yaml:"rolling" json:"rolling"`
	S3      S3Config      `yaml:"s3"      json:"s3"`
}

// RollingConfig controls the rolling-average table.
type RollingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"GLB_ROLLING_ENABLED"`
	Path    string `yaml:"path"    json:"path"    env:"GLB_ROLLING_PATH"`
	Window  int    `yaml:"window"  json:"window"  env:"GLB_ROLLING_WINDOW" validate:"omitempty,min=1"`
}

// S3Config holds the optional S3-compatible upload target.
type S3Config struct {
	Enabled         bool   `yaml:"enabled"           json:"enabled"           env:"GLB_S3_ENABLED"`
	Endpoint        string `yaml:"endpoint"          json:"endpoint"          env:"GLB_S3_ENDPOINT"`
	Region          string `yaml:"region"            json:"region"            env:"GLB_S3_REGION"`
	Bucket          string `yaml:"bucket"            json:"bucket"            env:"GLB_S3_BUCKET"`
	Prefix          string `yaml:"prefix"            json:"prefix"            env:"GLB_S3_PREFIX"`
	AccessKeyID     string `yaml:"access_key_id"     json:"access_key_id"     env:"GLB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" env:"GLB_S3_SECRET_ACCESS_KEY"`
	UseSSL          bool   `yaml:"use_ssl"           json:"use_ssl"           env:"GLB_S3_USE_SSL"`
}

// MetricsConfig holds the optional Pushgateway target.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url" env:"GLB_PUSHGATEWAY_URL" validate:"omitempty,url"`
	JobName        string `yaml:"job_name"        json:"job_name"        env:"GLB_PUSHGATEWAY_JOB"`
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and environment variable overrides, then validates
// the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides walks the config struct and overwrites fields that have
// an "env" tag if the corresponding environment variable is set.
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesOnValue(reflect.ValueOf(cfg))
}

func applyEnvOverridesOnValue(v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			applyEnvOverridesOnValue(fieldVal.Addr())
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		setFieldFromString(fieldVal, envVal)
	}
}

// setFieldFromString sets a reflect.Value from a string, supporting
// string, bool, int, float64 and []string field types. Unparseable values
// leave the field unchanged.
func setFieldFromString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}

	case reflect.Int:
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			field.SetInt(int64(n))
		}

	case reflect.Float64:
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			field.SetFloat(f)
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				result = append(result, s)
			}
		}
		field.Set(reflect.ValueOf(result))
	}
}

// redactString replaces a secret string with "****" if non-empty.
func redactString(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Redacted returns a copy of the Config with sensitive fields masked.
func (c *Config) Redacted() Config {
	cp := *c
	cp.Redis.URL = redactString(cp.Redis.URL)
	cp.Output.S3.AccessKeyID = redactString(cp.Output.S3.AccessKeyID)
	cp.Output.S3.SecretAccessKey = redactString(cp.Output.S3.SecretAccessKey)
	return cp
}

// RedactedJSON returns the config as indented JSON with secrets masked.
func (c *Config) RedactedJSON() ([]byte, error) {
	redacted := c.Redacted()
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling redacted config: %w", err)
	}
	return data, nil
}
