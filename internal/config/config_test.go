package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	if cfg.DefaultLanguage != "fr" {
		t.Errorf("DefaultLanguage = %q, want fr", cfg.DefaultLanguage)
	}
	if cfg.DefaultPersona != "neutral" {
		t.Errorf("DefaultPersona = %q, want neutral", cfg.DefaultPersona)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.ValidatorFanoutLimit != MaxValidatorFanout {
		t.Errorf("ValidatorFanoutLimit = %d, want %d", cfg.ValidatorFanoutLimit, MaxValidatorFanout)
	}
	if cfg.NotifyKafkaTopic != "voicetrust-notifications" {
		t.Errorf("NotifyKafkaTopic = %q, want default", cfg.NotifyKafkaTopic)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled should be false without JWT_PUBLIC_KEY")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DEFAULT_LANGUAGE", "en")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("VALIDATOR_FANOUT_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9999")
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q, want en", cfg.DefaultLanguage)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.ValidatorFanoutLimit != 5 {
		t.Errorf("ValidatorFanoutLimit = %d, want 5", cfg.ValidatorFanoutLimit)
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 10, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_FanoutLimitBounds(t *testing.T) {
	for _, v := range []string{"0", "11", "-1"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("VALIDATOR_FANOUT_LIMIT", v)
			if _, err := Load(); err == nil {
				t.Fatalf("Load with VALIDATOR_FANOUT_LIMIT=%s should fail", v)
			}
		})
	}
}

func TestAuthEnabled(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY", "/etc/voicetrust/jwt.pub")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled should be true when JWT_PUBLIC_KEY is set")
	}
}

func TestRateLimitWindowDuration(t *testing.T) {
	testCases := []struct {
		value string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"invalid", 10 * time.Minute},
		{"0", 10 * time.Minute},
		{"-1m", 10 * time.Minute},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			c := &Config{RateLimitWindow: tc.value}
			if got := c.RateLimitWindowDuration(); got != tc.want {
				t.Errorf("RateLimitWindowDuration = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJanitorIntervalDuration(t *testing.T) {
	if got := (&Config{JanitorInterval: "0"}).JanitorIntervalDuration(); got != 0 {
		t.Errorf("JanitorIntervalDuration(0) = %v, want 0", got)
	}
	if got := (&Config{JanitorInterval: "2m"}).JanitorIntervalDuration(); got != 2*time.Minute {
		t.Errorf("JanitorIntervalDuration(2m) = %v, want 2m", got)
	}
	if got := (&Config{JanitorInterval: "bogus"}).JanitorIntervalDuration(); got != 0 {
		t.Errorf("JanitorIntervalDuration(bogus) = %v, want 0", got)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	c := &Config{KafkaBrokers: " kafka-1:9092, ,kafka-2:9092 "}
	got := c.KafkaBrokersList()
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokersList = %v, want [kafka-1:9092 kafka-2:9092]", got)
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil broker list")
	}
}
