package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CredtoolConfig holds settings for the credtool command.
type CredtoolConfig struct {
	CredentialsFile       string // empty selects the compiled-in template
	BrokerAddr            string
	ServerName            string
	Debug                 bool
	ConnectTimeout        time.Duration
	ProbeAttempts         int
	InitialReconnectDelay int // seconds - starting delay for exponential backoff
	MaxReconnectDelay     int // seconds - maximum delay cap for exponential backoff
}

// DefaultCredtoolConfig returns default configuration for credtool
func DefaultCredtoolConfig() *CredtoolConfig {
	return &CredtoolConfig{
		BrokerAddr:            "localhost:8883",
		ConnectTimeout:        5 * time.Second,
		ProbeAttempts:         3,
		InitialReconnectDelay: 1,
		MaxReconnectDelay:     30,
	}
}

// Connection timeout bounds, for CONNECT_TIMEOUT and --timeout.
const (
	MinConnectTimeout = 100 * time.Millisecond
	MaxConnectTimeout = 300 * time.Second
)

// LoadCredtoolConfig loads configuration from envFile and the environment.
// Only malformed values are rejected here. Checks that a command-line flag
// can fix (broker address, credentials file) are left to Validate.
func LoadCredtoolConfig(envFile string, logger *zap.Logger) (*CredtoolConfig, error) {
	loader := NewConfigLoader().WithLogger(logger)
	if err := loader.LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("failed to load environment file: %w", err)
	}

	config := DefaultCredtoolConfig()
	var validationErrors []error

	config.CredentialsFile = loader.GetString("TEMPUNIT_CREDENTIALS", config.CredentialsFile)
	config.BrokerAddr = loader.GetString("MQTT_BROKER", config.BrokerAddr)
	config.ServerName = loader.GetString("MQTT_SERVER_NAME", config.ServerName)

	if debug, err := loader.GetBool("DEBUG", config.Debug); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.Debug = debug
	}

	if timeout, err := loader.GetDuration("CONNECT_TIMEOUT", config.ConnectTimeout); err != nil {
		validationErrors = append(validationErrors, err)
	} else if err := validateTimeout("CONNECT_TIMEOUT", timeout); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.ConnectTimeout = timeout
	}

	if attempts, err := loader.GetIntInRange("PROBE_ATTEMPTS", config.ProbeAttempts, 1, 20); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.ProbeAttempts = attempts
	}

	if initialDelay, err := loader.GetIntInRange("INITIAL_RECONNECT_DELAY", config.InitialReconnectDelay, 1, 3600); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.InitialReconnectDelay = initialDelay
	}

	if maxDelay, err := loader.GetIntInRange("MAX_RECONNECT_DELAY", config.MaxReconnectDelay, 1, 3600); err != nil {
		validationErrors = append(validationErrors, err)
	} else {
		config.MaxReconnectDelay = maxDelay
	}

	if config.InitialReconnectDelay > config.MaxReconnectDelay {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "reconnect-delays",
			Value:   fmt.Sprintf("initial=%d, max=%d", config.InitialReconnectDelay, config.MaxReconnectDelay),
			Message: "initial reconnect delay cannot be greater than max reconnect delay",
		})
	}

	if len(validationErrors) > 0 {
		return nil, joinValidationErrors(validationErrors)
	}

	return config, nil
}

func validateTimeout(key string, timeout time.Duration) error {
	if timeout < MinConnectTimeout || timeout > MaxConnectTimeout {
		return ValidationError{
			Field:   key,
			Value:   timeout.String(),
			Message: fmt.Sprintf("must be between %s and %s", MinConnectTimeout, MaxConnectTimeout),
		}
	}
	return nil
}

func joinValidationErrors(errs []error) error {
	var errMsg strings.Builder
	errMsg.WriteString("Configuration validation failed:\n")
	for _, err := range errs {
		errMsg.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return fmt.Errorf("%s", errMsg.String())
}

// ResolvedServerName returns ServerName, or the host part of BrokerAddr.
func (c *CredtoolConfig) ResolvedServerName() string {
	if c.ServerName != "" {
		return c.ServerName
	}
	host, _, err := net.SplitHostPort(c.BrokerAddr)
	if err != nil {
		return c.BrokerAddr
	}
	return host
}

// ReconnectDelays returns the backoff bounds as durations.
func (c *CredtoolConfig) ReconnectDelays() (initial, max time.Duration) {
	return time.Duration(c.InitialReconnectDelay) * time.Second,
		time.Duration(c.MaxReconnectDelay) * time.Second
}

// Validate checks the configuration once command-line overrides are applied.
func (c *CredtoolConfig) Validate() error {
	loader := NewConfigLoader()
	var validationErrors []error

	if err := loader.ValidateRequired("broker", c.BrokerAddr); err != nil {
		validationErrors = append(validationErrors, err)
	} else if err := loader.ValidateNetworkAddress("broker", c.BrokerAddr); err != nil {
		validationErrors = append(validationErrors, err)
	}
	if err := loader.ValidateFile("credentials", c.CredentialsFile); err != nil {
		validationErrors = append(validationErrors, err)
	}
	if err := validateTimeout("timeout", c.ConnectTimeout); err != nil {
		validationErrors = append(validationErrors, err)
	}
	if c.ProbeAttempts < 1 || c.ProbeAttempts > 20 {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "attempts",
			Value:   fmt.Sprint(c.ProbeAttempts),
			Message: "must be between 1 and 20",
		})
	}

	if len(validationErrors) > 0 {
		return joinValidationErrors(validationErrors)
	}
	return nil
}

// LogConfig logs the configuration
func (c *CredtoolConfig) LogConfig(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("credentials_file", c.CredentialsFile),
		zap.String("broker", c.BrokerAddr),
		zap.String("server_name", c.ResolvedServerName()),
		zap.Bool("debug", c.Debug),
		zap.Duration("connect_timeout", c.ConnectTimeout),
		zap.Int("probe_attempts", c.ProbeAttempts),
		zap.Int("initial_reconnect_delay", c.InitialReconnectDelay),
		zap.Int("max_reconnect_delay", c.MaxReconnectDelay))
}
