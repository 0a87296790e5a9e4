package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every missing or malformed variable is reported, not just the first.
func Load() (*Config, error) {
	return loadFrom(os.LookupEnv)
}

// lookupFunc reports the value of a variable and whether it is set.
type lookupFunc func(name string) (string, bool)

func loadFrom(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct populates tagged fields of v, descending into nested sections.
//
// Tags:
//
//	env      variable name
//	envAlt   fallback variable name
//	default  value used when neither variable is set or both are empty
//	required "true" to fail when no value is found
func loadStruct(v reflect.Value, lookup lookupFunc) error {
	var errs []error
	t := v.Type()

	for i := range t.NumField() {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			errs = append(errs, loadStruct(fv, lookup))
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value := firstSet(lookup, name, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", name))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fv, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, value, err))
		}
	}

	return errors.Join(errs...)
}

// firstSet returns the first non-empty value among names.
func firstSet(lookup lookupFunc, names ...string) string {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := lookup(n); ok && v != "" {
			return v
		}
	}
	return ""
}

// setField converts value to the field's type with spf13/cast.
func setField(field reflect.Value, value string) error {
	var (
		converted any
		err       error
	)

	switch {
	case field.Type() == durationType:
		converted, err = cast.ToDurationE(value)
	case field.Kind() == reflect.String:
		converted = value
	case field.Kind() == reflect.Int:
		converted, err = cast.ToIntE(value)
	case field.Kind() == reflect.Int64:
		converted, err = cast.ToInt64E(value)
	case field.Kind() == reflect.Bool:
		converted, err = cast.ToBoolE(value)
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		converted = splitList(value)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	if err != nil {
		return err
	}

	field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Store selection
	switch {
	case c.Database.URL == "" && c.Database.SQLitePath == "":
		errs = append(errs, "one of DATABASE_URL or SQLITE_PATH is required")
	case c.Database.URL != "" && c.Database.SQLitePath != "":
		errs = append(errs, "DATABASE_URL and SQLITE_PATH are mutually exclusive")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Import validation
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.LookupWorkers <= 0 {
		errs = append(errs, "IMPORT_LOOKUP_WORKERS must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}
	if c.Import.PrincipalCacheSize <= 0 {
		errs = append(errs, "IMPORT_PRINCIPAL_CACHE_SIZE must be positive")
	}
	if c.Import.DefaultOwner != "" {
		if _, err := uuid.Parse(c.Import.DefaultOwner); err != nil {
			errs = append(errs, fmt.Sprintf("IMPORT_DEFAULT_OWNER (%q) must be a UUID", c.Import.DefaultOwner))
		}
	}

	// Audit validation
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, "AUDIT_RETENTION_DAYS must be non-negative")
	}
	if c.Audit.RetentionDays > 0 && c.Audit.CheckInterval <= 0 {
		errs = append(errs, "AUDIT_RETENTION_INTERVAL must be positive when retention is enabled")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {Driver: %s, URL: [MASKED], SQLitePath: %q, MaxConns: %d}, ",
		c.Database.Driver(), c.Database.SQLitePath, c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Import: {MaxFileSize: %d, MaxConcurrent: %d, BatchSize: %d, LookupWorkers: %d}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.BatchSize, c.Import.LookupWorkers))
	b.WriteString(fmt.Sprintf("Audit: {RetentionDays: %d, CheckInterval: %s}, ",
		c.Audit.RetentionDays, c.Audit.CheckInterval))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
