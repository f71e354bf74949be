package zookeeper

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-zookeeper/zk"
	"gopkg.in/yaml.v3"
)

// DefaultSessionTimeout is used when a Config does not set one.
const DefaultSessionTimeout = 5 * time.Second

// validate is the shared validator instance.
var validate = validator.New()

// Config describes how to reach a ZooKeeper ensemble.
type Config struct {
	// Servers lists ensemble members as host:port pairs.
	Servers []string `yaml:"servers" validate:"required,min=1,dive,hostname_port"`

	// SessionTimeout bounds how long the session survives a broken
	// connection before the ensemble expires it.
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// ParseConfig parses and validates a YAML configuration:
//
//	servers:
//	  - zk1.internal:2181
//	  - zk2.internal:2181
//	session_timeout: 5s
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("zookeeper: parse config: %w", err)
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("zookeeper: invalid config: %w", err)
	}
	return cfg, nil
}

// Connect dials the ensemble described by cfg and returns a Store over the
// new connection along with the connection itself, which the caller owns
// and must close when finished.
func Connect(cfg Config, opts ...Option) (*Store, *zk.Conn, error) {
	conn, session, err := zk.Connect(cfg.Servers, cfg.SessionTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("zookeeper: connect: %w", err)
	}
	return New(conn, session, opts...), conn, nil
}
