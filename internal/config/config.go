// Package config loads credtool settings from a .env file and the
// environment, with validation.
package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for %s=%s: %s", e.Field, e.Value, e.Message)
}

// ConfigLoader resolves keys from the environment first, then the .env
// file, then the caller's default.
type ConfigLoader struct {
	envVars map[string]string
	logger  *zap.Logger
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		envVars: make(map[string]string),
		logger:  zap.NewNop(),
	}
}

// WithLogger sets the logger for the config loader
func (cl *ConfigLoader) WithLogger(logger *zap.Logger) *ConfigLoader {
	if logger != nil {
		cl.logger = logger
	}
	return cl
}

// LoadEnvFile loads KEY=VALUE pairs. A missing file is not an error.
func (cl *ConfigLoader) LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			cl.logger.Debug("Environment file not found", zap.String("file", filename))
			return nil
		}
		return fmt.Errorf("error opening env file %s: %w", filename, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			cl.logger.Warn("Invalid line in env file",
				zap.String("file", filename),
				zap.Int("line", lineNum))
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
				(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
				value = value[1 : len(value)-1]
			}
		}

		cl.envVars[key] = value
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading env file %s: %w", filename, err)
	}

	cl.logger.Debug("Loaded environment file",
		zap.String("file", filename),
		zap.Int("variables", len(cl.envVars)))

	return nil
}

// GetString gets string value with priority: env → file → default
func (cl *ConfigLoader) GetString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, exists := cl.envVars[key]; exists {
		return value
	}
	return defaultValue
}

// GetInt gets int value with validation
func (cl *ConfigLoader) GetInt(key string, defaultValue int) (int, error) {
	value := cl.GetString(key, "")
	if value == "" {
		return defaultValue, nil
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, ValidationError{
			Field:   key,
			Value:   value,
			Message: "must be a valid integer",
		}
	}

	return intVal, nil
}

// GetIntInRange gets int value with range validation
func (cl *ConfigLoader) GetIntInRange(key string, defaultValue, min, max int) (int, error) {
	value, err := cl.GetInt(key, defaultValue)
	if err != nil {
		return 0, err
	}

	if value < min || value > max {
		return 0, ValidationError{
			Field:   key,
			Value:   strconv.Itoa(value),
			Message: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}

	return value, nil
}

// GetBool gets bool value with validation
func (cl *ConfigLoader) GetBool(key string, defaultValue bool) (bool, error) {
	value := cl.GetString(key, "")
	if value == "" {
		return defaultValue, nil
	}

	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return false, ValidationError{
			Field:   key,
			Value:   value,
			Message: "must be true/false, 1/0, or yes/no",
		}
	}

	return boolVal, nil
}

// GetDuration accepts a Go duration ("10s") or a plain number of seconds.
func (cl *ConfigLoader) GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := cl.GetString(key, "")
	if value == "" {
		return defaultValue, nil
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, ValidationError{
		Field:   key,
		Value:   value,
		Message: "must be a valid duration (e.g., '10s', '5m') or number of seconds",
	}
}

// ValidateNetworkAddress validates a host:port address
func (cl *ConfigLoader) ValidateNetworkAddress(key, value string) error {
	if value == "" {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "network address cannot be empty",
		}
	}

	host, port, err := net.SplitHostPort(value)
	if err != nil {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "must be in format 'host:port'",
		}
	}

	if portNum, err := strconv.Atoi(port); err != nil || portNum < 1 || portNum > 65535 {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "port must be between 1 and 65535",
		}
	}

	if host == "" {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "host cannot be empty",
		}
	}

	return nil
}

// ValidateRequired ensures a required value is not empty
func (cl *ConfigLoader) ValidateRequired(key, value string) error {
	if value == "" {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "is required and cannot be empty",
		}
	}
	return nil
}

// ValidateFile ensures path names an existing regular file. Empty is allowed.
func (cl *ConfigLoader) ValidateFile(key, value string) error {
	if value == "" {
		return nil
	}

	info, err := os.Stat(value)
	if err != nil {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: fmt.Sprintf("cannot access file: %v", err),
		}
	}
	if info.IsDir() {
		return ValidationError{
			Field:   key,
			Value:   value,
			Message: "path is a directory, not a file",
		}
	}
	return nil
}
