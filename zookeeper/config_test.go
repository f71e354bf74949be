package zookeeper

import (
	"testing"
	"time"
)

func TestParseConfig_Valid(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
servers:
  - zk1.internal:2181
  - zk2.internal:2181
session_timeout: 10s
`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Errorf("expected 2 servers, got %d", len(cfg.Servers))
	}
	if cfg.SessionTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.SessionTimeout)
	}
}

func TestParseConfig_DefaultTimeout(t *testing.T) {
	cfg, err := ParseConfig([]byte("servers:\n  - 127.0.0.1:2181\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.SessionTimeout != DefaultSessionTimeout {
		t.Errorf("expected default timeout, got %v", cfg.SessionTimeout)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no servers", "session_timeout: 5s\n"},
		{"bad address", "servers:\n  - not-a-hostport\n"},
		{"not yaml", "{{{"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(c.raw)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
