package config

import (
	"strings"
	"testing"

	ncerr "fortuned/internal/errors"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantSub string // substring expected in error
	}{
		{
			name:    "listen no port has hint",
			cfg:     Config{Listen: true},
			wantSub: "hint: fortuned -l -p",
		},
		{
			name:    "chunk has hint",
			cfg:     Config{Chunk: -1},
			wantSub: "hint:",
		},
		{
			name:    "ssh and tunnel conflict",
			cfg:     Config{Host: "x", Port: 22, SSH: true, TunnelEnabled: true, TunnelHost: "gw"},
			wantSub: "--ssh and -T are mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestValidate_ConfigErrorType verifies failures are *ConfigError so
// the CLI can print them uniformly.
func TestValidate_ConfigErrorType(t *testing.T) {
	cfg := Config{Listen: true}
	err := cfg.Validate()

	var ce *ncerr.ConfigError
	if !ncerr.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Field != "port" {
		t.Errorf("Field = %q, want %q", ce.Field, "port")
	}
}
