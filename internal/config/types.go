// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultConcurrency is the default number of parallel transfers.
	DefaultConcurrency = 4
	// DefaultRetries is the default number of attempts per transfer.
	DefaultRetries = 3
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidCacheConfig is the sentinel error wrapped by InvalidCacheConfigError.
	ErrInvalidCacheConfig = errors.New("invalid cache config")
	// ErrInvalidProvisionConfig is the sentinel error wrapped by InvalidProvisionConfigError.
	ErrInvalidProvisionConfig = errors.New("invalid provision config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidCacheConfigError collects field-level errors of a CacheConfig.
	InvalidCacheConfigError struct {
		FieldErrors []error
	}

	// InvalidProvisionConfigError collects field-level errors of a ProvisionConfig.
	InvalidProvisionConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Cache configures the content cache for remote inputs.
		Cache CacheConfig `json:"cache" mapstructure:"cache"`
		// Provision configures input staging and output delivery.
		Provision ProvisionConfig `json:"provision" mapstructure:"provision"`
		// Engines overrides the built-in engine bindings.
		Engines EnginesConfig `json:"engines" mapstructure:"engines"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// CacheConfig configures the content cache.
	CacheConfig struct {
		// Enabled routes remote inputs through the cache without --cache.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Dir is the cache directory. Empty means the user cache dir.
		Dir string `json:"dir" mapstructure:"dir"`
		// MaxSizeMB bounds the cache size. Zero means unbounded.
		MaxSizeMB int `json:"max_size_mb" mapstructure:"max_size_mb"`
		// MaxAge evicts entries not used for this long (Go duration). Empty
		// means never.
		MaxAge string `json:"max_age" mapstructure:"max_age"`
	}

	// ProvisionConfig configures the provisioning engine.
	ProvisionConfig struct {
		// Strict fails a launch when any output cannot be delivered.
		Strict bool `json:"strict" mapstructure:"strict"`
		// Concurrency bounds parallel transfers.
		Concurrency int `json:"concurrency" mapstructure:"concurrency"`
		// Retries is the number of attempts per transfer.
		Retries int `json:"retries" mapstructure:"retries"`
		// WorkDir is the parent of staging directories. Empty means the
		// system temp dir.
		WorkDir string `json:"work_dir" mapstructure:"work_dir"`
	}

	// EnginesConfig holds per-format engine overrides.
	EnginesConfig struct {
		CWL EngineConfig `json:"cwl" mapstructure:"cwl"`
		WDL EngineConfig `json:"wdl" mapstructure:"wdl"`
	}

	// EngineConfig overrides parts of one engine binding. Empty fields keep
	// the built-in values.
	EngineConfig struct {
		Command       string `json:"command" mapstructure:"command"`
		SuccessMarker string `json:"success_marker" mapstructure:"success_marker"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme sets the color scheme ("auto", "dark", "light").
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provision: ProvisionConfig{
			Concurrency: DefaultConcurrency,
			Retries:     DefaultRetries,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// MaxBytes returns the size bound in bytes; zero means unbounded.
func (c CacheConfig) MaxBytes() int64 {
	return int64(c.MaxSizeMB) << 20
}

// MaxAgeDuration parses MaxAge. An empty value yields zero.
func (c CacheConfig) MaxAgeDuration() (time.Duration, error) {
	if strings.TrimSpace(c.MaxAge) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return 0, fmt.Errorf("cache.max_age: %w", err)
	}
	return d, nil
}

// IsValid returns whether the CacheConfig has valid fields.
func (c CacheConfig) IsValid() (bool, []error) {
	var errs []error
	if c.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("cache.max_size_mb must not be negative, got %d", c.MaxSizeMB))
	}
	if c.Dir != "" && strings.TrimSpace(c.Dir) == "" {
		errs = append(errs, errors.New("cache.dir must not be whitespace-only"))
	}
	if d, err := c.MaxAgeDuration(); err != nil {
		errs = append(errs, err)
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("cache.max_age must not be negative, got %s", c.MaxAge))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidCacheConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// IsValid returns whether the ProvisionConfig has valid fields.
func (p ProvisionConfig) IsValid() (bool, []error) {
	var errs []error
	if p.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("provision.concurrency must be at least 1, got %d", p.Concurrency))
	}
	if p.Retries < 1 {
		errs = append(errs, fmt.Errorf("provision.retries must be at least 1, got %d", p.Retries))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidProvisionConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// IsValid returns whether the UIConfig has valid fields.
func (u UIConfig) IsValid() (bool, []error) {
	return u.ColorScheme.IsValid()
}

// IsValid validates every sub-config and collects their errors.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){
		c.Cache.IsValid,
		c.Provision.IsValid,
		c.UI.IsValid,
	} {
		if ok, fieldErrs := check(); !ok {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidCacheConfigError) Error() string {
	return joinFieldErrors("invalid cache config", e.FieldErrors)
}

// Unwrap returns ErrInvalidCacheConfig for errors.Is() compatibility.
func (e *InvalidCacheConfigError) Unwrap() error { return ErrInvalidCacheConfig }

// Error implements the error interface.
func (e *InvalidProvisionConfigError) Error() string {
	return joinFieldErrors("invalid provision config", e.FieldErrors)
}

// Unwrap returns ErrInvalidProvisionConfig for errors.Is() compatibility.
func (e *InvalidProvisionConfigError) Unwrap() error { return ErrInvalidProvisionConfig }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return joinFieldErrors("invalid config", e.FieldErrors)
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func joinFieldErrors(prefix string, errs []error) string {
	if len(errs) == 1 {
		return fmt.Sprintf("%s: %v", prefix, errs[0])
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %d field errors: %s", prefix, len(errs), strings.Join(msgs, "; "))
}
