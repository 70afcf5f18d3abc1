package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{" info ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"WARN", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelFatal, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if got != tc.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
			}
			if (err != nil) != tc.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
		})
	}
}

func TestSetupJSON(t *testing.T) {
	defer SetLevel(LevelInfo)

	if err := Setup(context.Background(), Options{Level: "debug", SampleRate: 1}); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if GetLevel() != LevelDebug {
		t.Errorf("level = %v, want DEBUG", GetLevel())
	}
	if err := Setup(context.Background(), Options{Level: "bogus"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if GetLevel() != LevelInfo {
		t.Errorf("level after bad name = %v, want INFO", GetLevel())
	}
}

func TestCountersIgnoreSampling(t *testing.T) {
	sampleRate.Store(1000000)
	defer sampleRate.Store(1)

	before := Snapshot()
	for i := 0; i < 10; i++ {
		Warn("sampled warning")
		Error("sampled error")
	}
	CountStatus(404)
	CountStatus(503)
	CountStatus(200)
	after := Snapshot()

	if d := after.Warnings - before.Warnings; d != 10 {
		t.Errorf("warnings delta = %d, want 10", d)
	}
	if d := after.Errors - before.Errors; d != 10 {
		t.Errorf("errors delta = %d, want 10", d)
	}
	if d := after.Responses4xx - before.Responses4xx; d != 1 {
		t.Errorf("4xx delta = %d, want 1", d)
	}
	if d := after.Responses5xx - before.Responses5xx; d != 1 {
		t.Errorf("5xx delta = %d, want 1", d)
	}
}
