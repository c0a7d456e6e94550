package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const redacted = "***"

// Resolver provides helper functions for applying env > CLI > default precedence.
// Callers layer project-file values in by passing them as the default.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver with the provided logger.
func NewResolver(logger *zap.Logger) Resolver {
	return Resolver{logger: logger}
}

func (r Resolver) logConflict(setting, envVal, cliVal string) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(
		"config: conflict for "+setting,
		zap.String("env", envVal),
		zap.String("cli", cliVal),
		zap.String("decision", "using env value"),
	)
}

func (r Resolver) pick(setting string, envVal string, envSet bool, cliVal string, cliSet bool, defaultVal string, secret bool) string {
	if envSet && cliSet && envVal != cliVal {
		if secret {
			r.logConflict(setting, redacted, redacted)
		} else {
			r.logConflict(setting, envVal, cliVal)
		}
	}
	if envSet {
		return envVal
	}
	if cliSet {
		return cliVal
	}
	return defaultVal
}

// String resolves a string setting using the precedence rules.
func (r Resolver) String(setting, envKey, cliVal string, cliSet bool, defaultVal string) string {
	envVal, envSet := lookupEnv(envKey)
	return r.pick(setting, strings.TrimSpace(envVal), envSet, cliVal, cliSet, defaultVal, false)
}

// Secret resolves a string setting whose values must never appear in logs.
func (r Resolver) Secret(setting, envKey, cliVal string, cliSet bool, defaultVal string) string {
	envVal, envSet := lookupEnv(envKey)
	return r.pick(setting, strings.TrimSpace(envVal), envSet, cliVal, cliSet, defaultVal, true)
}

// Bool resolves a boolean setting.
func (r Resolver) Bool(setting, envKey string, cliVal bool, cliSet bool, defaultVal bool) (bool, error) {
	envVal, envSet := lookupEnv(envKey)
	if !envSet {
		if cliSet {
			return cliVal, nil
		}
		return defaultVal, nil
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(envVal))
	if err != nil {
		return false, fmt.Errorf("config %s: invalid boolean %q: %w", setting, envVal, err)
	}

	if cliSet && parsed != cliVal {
		r.logConflict(setting, envVal, strconv.FormatBool(cliVal))
	}

	return parsed, nil
}

// Uint64 resolves a non-negative integer setting. The boolean result reports
// whether a value came from env or CLI rather than the default.
func (r Resolver) Uint64(setting, envKey string, cliVal uint64, cliSet bool, defaultVal uint64) (uint64, bool, error) {
	envVal, envSet := lookupEnv(envKey)
	if !envSet {
		if cliSet {
			return cliVal, true, nil
		}
		return defaultVal, false, nil
	}

	parsed, err := strconv.ParseUint(strings.TrimSpace(envVal), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("config %s: invalid non-negative integer %q: %w", setting, envVal, err)
	}

	if cliSet && parsed != cliVal {
		r.logConflict(setting, envVal, strconv.FormatUint(cliVal, 10))
	}

	return parsed, true, nil
}

// StringSlice resolves a slice of strings. Env values are comma-separated.
func (r Resolver) StringSlice(setting, envKey string, cliVal []string, cliSet bool, defaultVal []string) []string {
	envVal, envSet := lookupEnv(envKey)
	if envSet {
		parts := splitAndClean(envVal)
		if cliSet && !equalSlices(parts, cliVal) {
			r.logConflict(setting, envVal, strings.Join(cliVal, ","))
		}
		return parts
	}

	if cliSet {
		return sanitizeStrings(cliVal)
	}

	return sanitizeStrings(defaultVal)
}

// lookupEnv treats variables that are set but blank as unset.
func lookupEnv(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func splitAndClean(value string) []string {
	if value == "" {
		return nil
	}
	raw := strings.Split(value, ",")
	return sanitizeStrings(raw)
}

func sanitizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
