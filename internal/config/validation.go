package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var seasonPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Validate validates the configuration using struct tags registered with
// the go-playground/validator library, then checks settings that depend on
// each other.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("season", func(fl validator.FieldLevel) bool {
		return seasonPattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("registering season validation: %w", err)
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var errs []error
	switch cfg.Checkpoint.Backend {
	case "file":
		if cfg.Checkpoint.RecordsPath == "" || cfg.Checkpoint.ProcessedPath == "" {
			errs = append(errs, errors.New("checkpoint.records_path and checkpoint.processed_path are required for the file backend"))
		}
		if cfg.Checkpoint.RecordsPath != "" && cfg.Checkpoint.RecordsPath == cfg.Checkpoint.ProcessedPath {
			errs = append(errs, errors.New("checkpoint.records_path and checkpoint.processed_path must differ"))
		}
	case "redis":
		if cfg.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis checkpoint backend"))
		}
	}
	if cfg.Output.Rolling.Enabled && cfg.Output.Rolling.Path == "" {
		errs = append(errs, errors.New("output.rolling.path is required when rolling averages are enabled"))
	}
	if s3 := cfg.Output.S3; s3.Enabled && (s3.Endpoint == "" || s3.Bucket == "") {
		errs = append(errs, errors.New("output.s3.endpoint and output.s3.bucket are required when upload is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}
