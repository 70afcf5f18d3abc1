package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var keys = []string{
	"PORT", "DATABASE_URL", "GENAI_API_KEY", "GENAI_MODEL", "QUOTE_SEED",
	"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
	"LOG_LEVEL", "ERROR_SAMPLE_RATE", "OTEL_ENABLED", "OTEL_SERVICE_NAME",
}

// clearEnv unsets every variable Config reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.GenAIModel != "gemini-2.5-flash" {
		t.Errorf("GenAIModel = %q", cfg.GenAIModel)
	}
	if cfg.QuoteSeed != nil {
		t.Errorf("QuoteSeed = %d, want unset", *cfg.QuoteSeed)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.ReadTimeout)
	}
	if cfg.AdvisorEnabled() {
		t.Error("advisor should be disabled without a key")
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/reports.db")
	t.Setenv("GENAI_API_KEY", "key")
	t.Setenv("QUOTE_SEED", "42")
	t.Setenv("WRITE_TIMEOUT", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.QuoteSeed == nil || *cfg.QuoteSeed != 42 {
		t.Errorf("QuoteSeed = %v, want 42", cfg.QuoteSeed)
	}
	if cfg.WriteTimeout != 2*time.Minute {
		t.Errorf("WriteTimeout = %v, want 2m", cfg.WriteTimeout)
	}
	if !cfg.AdvisorEnabled() {
		t.Error("advisor should be enabled with a key")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"port out of range", "PORT", "70000", "PORT 70000 out of range"},
		{"non-numeric port", "PORT", "http", "parse env"},
		{"zero sample rate", "ERROR_SAMPLE_RATE", "0", "ERROR_SAMPLE_RATE"},
		{"bad seed", "QUOTE_SEED", "seven", "parse env"},
		{"negative timeout", "SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateReportsErrorsInFieldOrder(t *testing.T) {
	cfg := Config{Port: 0, ErrorSampleRate: 0}

	want := strings.Join([]string{
		"PORT 0 out of range",
		"ERROR_SAMPLE_RATE must be positive, got 0",
		"READ_TIMEOUT must be positive",
		"WRITE_TIMEOUT must be positive",
		"IDLE_TIMEOUT must be positive",
		"SHUTDOWN_TIMEOUT must be positive",
	}, "\n")

	// Repeat so an unordered walk would show up
	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		if err == nil {
			t.Fatal("Validate() of a zero config should fail")
		}
		if err.Error() != want {
			t.Fatalf("Validate() =\n%s\nwant\n%s", err, want)
		}
	}
}
