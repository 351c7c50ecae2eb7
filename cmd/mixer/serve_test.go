package main

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/mixer/pkg/cli"
	"mercator-hq/mixer/pkg/config"
	"mercator-hq/mixer/pkg/telemetry/logging"
)

func TestNewSource(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		wantPrefix string
		wantErr    bool
	}{
		{
			name:       "file",
			mutate:     func(c *config.Config) { c.Policy.Path = "/etc/mixer" },
			wantPrefix: "file:/etc/mixer",
		},
		{
			name: "git",
			mutate: func(c *config.Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/mixer-config.git"
			},
			wantPrefix: "git:https://example.com/mixer-config.git#main",
		},
		{
			name: "git with bad auth",
			mutate: func(c *config.Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/mixer-config.git"
				c.Policy.Git.Auth.Type = "token"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefault()
			tt.mutate(cfg)

			src, err := newSource(cfg, logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *cli.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error = %T, want *cli.ConfigError", err)
				}
				return
			}
			if !strings.HasPrefix(src.String(), tt.wantPrefix) {
				t.Errorf("String() = %q, want prefix %q", src.String(), tt.wantPrefix)
			}
		})
	}
}
