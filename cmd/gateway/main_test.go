package main

import (
	"testing"
)

func TestParsePositiveIntEnvOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback int
		want     int
	}{
		{name: "unset uses fallback", envValue: "", fallback: 10, want: 10},
		{name: "valid positive value used", envValue: "42", fallback: 10, want: 42},
		{name: "zero falls back", envValue: "0", fallback: 10, want: 10},
		{name: "negative falls back", envValue: "-5", fallback: 10, want: 10},
		{name: "non-numeric falls back", envValue: "not-a-number", fallback: 10, want: 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_VAR", tt.envValue)
			if tt.envValue == "" {
				t.Setenv("TEST_ENV_VAR", "")
			}
			got := parsePositiveIntEnvOrDefault("TEST_ENV_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHasSQLDriver(t *testing.T) {
	t.Parallel()
	if !hasSQLDriver("postgres") {
		t.Fatal("expected postgres driver to be registered by the blank lib/pq import")
	}
	if hasSQLDriver("does-not-exist") {
		t.Fatal("expected an unregistered driver name to return false")
	}
}
