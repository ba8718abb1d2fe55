package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "tornodes" {
			t.Errorf("expected use 'tornodes', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has global flags", func(t *testing.T) {
		t.Parallel()
		verbose := cmd.PersistentFlags().Lookup("verbose")
		if verbose == nil || verbose.Shorthand != "v" || verbose.DefValue != "false" {
			t.Errorf("unexpected verbose flag: %+v", verbose)
		}
		config := cmd.PersistentFlags().Lookup("config")
		if config == nil || config.Shorthand != "c" || config.DefValue != "" {
			t.Errorf("unexpected config flag: %+v", config)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{
			"serve": false, "fetch": false, "stats": false,
			"history": false, "init": false, "version": false,
		}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Use]; ok {
				want[sub.Use] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

// TestServeCmdFlags tests the serve command flag defaults.
func TestServeCmdFlags(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	tests := []struct {
		name string
		want string
	}{
		{name: "host", want: "0.0.0.0"},
		{name: "port", want: "8000"},
		{name: "interval", want: "1m0s"},
		{name: "exit-ttl", want: "12h0m0s"},
		{name: "detailed-ttl", want: "5m0s"},
		{name: "no-rate-limit", want: "false"},
		{name: "timeout", want: "30s"},
		{name: "max-attempts", want: "3"},
		{name: "tor", want: "false"},
		{name: "external-tor", want: ""},
		{name: "no-history", want: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.DefValue != tt.want {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.want)
			}
		})
	}
}
