package config

import (
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	SessionSecret     string `mapstructure:"SESSION_SECRET"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`
	AdminEmail        string `mapstructure:"ADMIN_EMAIL"`
	AdminPasswordHash string `mapstructure:"ADMIN_PASSWORD_HASH"`

	TrustedCIDRs []string `mapstructure:"TRUSTED_CIDRS"`

	OTPTTLSeconds int `mapstructure:"OTP_TTL_SECONDS"`

	// Trust policy. Deltas and thresholds are deployment-owned policy
	// parameters, never compiled in.
	NormalThreshold     int `mapstructure:"TRUST_NORMAL_THRESHOLD"`
	RestrictedThreshold int `mapstructure:"TRUST_RESTRICTED_THRESHOLD"`
	DeltaGrant          int `mapstructure:"TRUST_DELTA_GRANT"`
	DeltaDeny           int `mapstructure:"TRUST_DELTA_DENY"`
	DeltaFlag           int `mapstructure:"TRUST_DELTA_FLAG"`
	DeltaJustified      int `mapstructure:"TRUST_DELTA_JUSTIFIED"`

	EmergencyMinJustification int `mapstructure:"EMERGENCY_MIN_JUSTIFICATION"`
	TempAccessMinutes         int `mapstructure:"TEMP_ACCESS_MINUTES"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SESSION_TTL_MINUTES", 60)
	v.SetDefault("TRUSTED_CIDRS", "10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8")
	v.SetDefault("OTP_TTL_SECONDS", 180)
	v.SetDefault("TRUST_NORMAL_THRESHOLD", 50)
	v.SetDefault("TRUST_RESTRICTED_THRESHOLD", 80)
	v.SetDefault("TRUST_DELTA_GRANT", 2)
	v.SetDefault("TRUST_DELTA_DENY", -5)
	v.SetDefault("TRUST_DELTA_FLAG", -10)
	v.SetDefault("TRUST_DELTA_JUSTIFIED", 1)
	v.SetDefault("EMERGENCY_MIN_JUSTIFICATION", 5)
	v.SetDefault("TEMP_ACCESS_MINUTES", 30)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SESSION_SECRET")
	v.BindEnv("SESSION_TTL_MINUTES")
	v.BindEnv("ADMIN_EMAIL")
	v.BindEnv("ADMIN_PASSWORD_HASH")
	v.BindEnv("TRUSTED_CIDRS")
	v.BindEnv("OTP_TTL_SECONDS")
	v.BindEnv("TRUST_NORMAL_THRESHOLD")
	v.BindEnv("TRUST_RESTRICTED_THRESHOLD")
	v.BindEnv("TRUST_DELTA_GRANT")
	v.BindEnv("TRUST_DELTA_DENY")
	v.BindEnv("TRUST_DELTA_FLAG")
	v.BindEnv("TRUST_DELTA_JUSTIFIED")
	v.BindEnv("EMERGENCY_MIN_JUSTIFICATION")
	v.BindEnv("TEMP_ACCESS_MINUTES")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.TrustedCIDRs == nil {
		if cidrs := v.GetString("TRUSTED_CIDRS"); cidrs != "" {
			cfg.TrustedCIDRs = strings.Split(cidrs, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.SessionSecret == "" {
		log.Println("WARNING: ======================================================")
		log.Println("WARNING: SESSION_SECRET is unset; using an insecure dev secret.")
		log.Println("WARNING: Do NOT run this configuration in production.")
		log.Println("WARNING: ======================================================")
		cfg.SessionSecret = "medtrust-dev-secret"
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production requires
// a real session secret and admin credentials, and all trust thresholds must
// land inside the 0-100 score range.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.SessionSecret == "" || c.SessionSecret == "medtrust-dev-secret" {
			return fmt.Errorf("SESSION_SECRET is required in production")
		}
		if c.AdminEmail == "" || c.AdminPasswordHash == "" {
			return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH are required in production")
		}
	}

	if c.NormalThreshold < 0 || c.NormalThreshold > 100 {
		return fmt.Errorf("TRUST_NORMAL_THRESHOLD must be within [0,100], got %d", c.NormalThreshold)
	}
	if c.RestrictedThreshold < 0 || c.RestrictedThreshold > 100 {
		return fmt.Errorf("TRUST_RESTRICTED_THRESHOLD must be within [0,100], got %d", c.RestrictedThreshold)
	}
	if c.OTPTTLSeconds <= 0 {
		return fmt.Errorf("OTP_TTL_SECONDS must be positive, got %d", c.OTPTTLSeconds)
	}
	if c.EmergencyMinJustification <= 0 {
		return fmt.Errorf("EMERGENCY_MIN_JUSTIFICATION must be positive, got %d", c.EmergencyMinJustification)
	}
	if c.TempAccessMinutes <= 0 {
		return fmt.Errorf("TEMP_ACCESS_MINUTES must be positive, got %d", c.TempAccessMinutes)
	}

	for _, cidr := range c.TrustedCIDRs {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("TRUSTED_CIDRS entry %q is not a valid CIDR: %w", cidr, err)
		}
	}

	return nil
}
