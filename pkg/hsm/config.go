package hsm

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/securechannel"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/backkem/yubihsm/pkg/transport"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig.
const (
	EnvAuthKeyID = "YUBIHSM_AUTH_KEY_ID"
	EnvPassword  = "YUBIHSM_PASSWORD"
	EnvTimeout   = "YUBIHSM_TIMEOUT"
)

// DefaultTimeout bounds each exchange when the caller's context has no
// deadline.
const DefaultTimeout = securechannel.DefaultTimeout

// Config configures a Client.
type Config struct {
	// Transport carries records to the device. Required.
	Transport transport.Transport `yaml:"-"`

	// Credential is the long-term authentication key. If zero it is
	// derived from AuthKeyID and Password.
	Credential session.Credential `yaml:"-"`

	// AuthKeyID is the authentication key object id.
	// Default: session.DefaultAuthKeyID.
	AuthKeyID uint16 `yaml:"auth_key_id"`

	// Password derives the credential when Credential is zero.
	Password string `yaml:"password"`

	// Timeout bounds each exchange when the context has no deadline.
	// Default: DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory `yaml:"-"`

	// Registerer receives the client metrics. If nil, metrics are disabled.
	Registerer prometheus.Registerer `yaml:"-"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Transport == nil {
		return ErrNoTransport
	}
	if c.Credential.IsZero() && c.Password == "" {
		return ErrNoCredential
	}
	if c.AuthKeyID > command.MaxObjectID {
		return fmt.Errorf("%w: auth key id 0x%04x", ErrInvalidConfig, c.AuthKeyID)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.AuthKeyID == 0 {
		c.AuthKeyID = session.DefaultAuthKeyID
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Credential.IsZero() {
		c.Credential = session.CredentialFromPassword(c.AuthKeyID, c.Password)
	}
}

// LoadConfig reads a YAML configuration file and applies environment
// overrides. The runtime fields (Transport, LoggerFactory, Registerer) are
// left for the caller to set.
//
//	auth_key_id: 1
//	password: password
//	timeout: 10s
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvAuthKeyID); v != "" {
		id, err := strconv.ParseUint(v, 0, 16)
		if err != nil || id > command.MaxObjectID {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvAuthKeyID, v)
		}
		cfg.AuthKeyID = uint16(id)
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvTimeout, v, err)
		}
		cfg.Timeout = d
	}
	return nil
}
