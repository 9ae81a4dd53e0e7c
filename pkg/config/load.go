package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration at path. A missing file yields an empty
// configuration, so that published dependencies resolve as usual.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not locate srcdeps configuration, defaulting to an empty configuration", slog.String("path", path))
		return &Configuration{}, nil
	} else if err != nil {
		return nil, xerrors.Errorf("unable to read config %s: %w", path, err)
	}

	var cfg Configuration
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, xerrors.Errorf("unable to parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &ValidationError{Path: path, Errors: errs}
	}
	slog.Debug("Using srcdeps configuration", slog.String("path", path), slog.Int("repositories", len(cfg.Repositories)))
	return &cfg, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s validation failed:\n  - %s", e.Path, strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Configuration for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Configuration) []string {
	var errs []string

	ids := make(map[string]bool)
	for i, r := range cfg.Repositories {
		prefix := fmt.Sprintf("repository[%d]", i)
		if r == nil {
			errs = append(errs, fmt.Sprintf("%s: empty entry", prefix))
			continue
		}
		if r.ID != "" {
			prefix = fmt.Sprintf("repository '%s'", r.ID)
		}

		switch {
		case r.ID == "":
			errs = append(errs, fmt.Sprintf("%s: 'id' is required", prefix))
		case ids[r.ID]:
			errs = append(errs, fmt.Sprintf("%s: duplicate repository id", prefix))
		case strings.ContainsAny(r.ID, `/\`) || strings.Contains(r.ID, ".."):
			errs = append(errs, fmt.Sprintf("%s: 'id' must not contain path separators or '..'", prefix))
		default:
			ids[r.ID] = true
		}

		if len(r.Selectors) == 0 {
			errs = append(errs, fmt.Sprintf("%s: at least one selector is required", prefix))
		}
		if _, err := r.compiled(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", prefix, err))
		}
		if len(r.URLs) == 0 {
			errs = append(errs, fmt.Sprintf("%s: at least one url is required", prefix))
		}

		switch r.Verbosity {
		case "", "error", "warn", "info", "debug":
		default:
			errs = append(errs, fmt.Sprintf("%s: invalid verbosity '%s': must be one of: error, warn, info, debug", prefix, r.Verbosity))
		}
	}

	return errs
}
