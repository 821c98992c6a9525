package config

import (
	"os"
	"testing"
)

func loadWithEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	for k, v := range env {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range env {
			os.Unsetenv(k)
		}
	})
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/medtrust",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected default port 5000, got %s", cfg.Port)
	}
	if cfg.OTPTTLSeconds != 180 {
		t.Errorf("expected default OTP TTL 180, got %d", cfg.OTPTTLSeconds)
	}
	if cfg.TempAccessMinutes != 30 {
		t.Errorf("expected default temp access 30m, got %d", cfg.TempAccessMinutes)
	}
	if cfg.NormalThreshold != 50 || cfg.RestrictedThreshold != 80 {
		t.Errorf("unexpected default thresholds: %d/%d", cfg.NormalThreshold, cfg.RestrictedThreshold)
	}
	if cfg.EmergencyMinJustification != 5 {
		t.Errorf("expected default emergency justification minimum 5, got %d", cfg.EmergencyMinJustification)
	}
	if len(cfg.TrustedCIDRs) == 0 {
		t.Error("expected default trusted CIDRs")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Error("expected error for missing DATABASE_URL")
	}
}

func TestLoad_DevSessionSecretFallback(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/medtrust",
		"ENV":          "development",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionSecret == "" {
		t.Error("expected a dev fallback session secret")
	}
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	cfg := &Config{Env: "production", OTPTTLSeconds: 180, TempAccessMinutes: 30}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing SESSION_SECRET in production")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := &Config{
		Env:                 "development",
		SessionSecret:       "x",
		NormalThreshold:     101,
		RestrictedThreshold: 80,
		OTPTTLSeconds:       180,
		TempAccessMinutes:   30,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for threshold above 100")
	}
}

func TestValidate_BadCIDR(t *testing.T) {
	cfg := &Config{
		Env:                       "development",
		SessionSecret:             "x",
		NormalThreshold:           50,
		RestrictedThreshold:       80,
		OTPTTLSeconds:             180,
		EmergencyMinJustification: 5,
		TempAccessMinutes:         30,
		TrustedCIDRs:              []string{"not-a-cidr"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid CIDR")
	}
}

func TestValidate_EmergencyJustificationMinimum(t *testing.T) {
	cfg := &Config{
		Env:                 "development",
		SessionSecret:       "x",
		NormalThreshold:     50,
		RestrictedThreshold: 80,
		OTPTTLSeconds:       180,
		TempAccessMinutes:   30,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive EMERGENCY_MIN_JUSTIFICATION")
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		Env:                       "development",
		SessionSecret:             "x",
		NormalThreshold:           50,
		RestrictedThreshold:       80,
		OTPTTLSeconds:             180,
		EmergencyMinJustification: 5,
		TempAccessMinutes:         30,
		TrustedCIDRs:              []string{"10.0.0.0/8"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
