package config

import (
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func validBase() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		Shard:   ShardConfig{ID: 0, Count: 2},
		DB:      DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dtel"},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Gateway: GatewayConfig{BaseURL: "https://gateway.local/api"},
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "dtel"
	c.Auth.JWTAudience = "dtel-ops"
	c.Gateway.Token = "tok"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLModeAndRingTimeout(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Call.RingTimeout != 2*time.Minute {
		t.Fatalf("expected 2m ring timeout default, got %v", c.Call.RingTimeout)
	}
}

func TestValidate_RejectsShardIDOutOfRange(t *testing.T) {
	c := validBase()
	c.Shard.ID = 2
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for SHARD_ID >= SHARD_COUNT")
	}
}

func TestParseAliasNumbers(t *testing.T) {
	m := parseAliasNumbers("*611=0116110116, *233=02332332332,bad,=x,y=")
	if len(m) != 2 {
		t.Fatalf("expected 2 aliases, got %d", len(m))
	}
	if m["*611"] != "0116110116" {
		t.Fatalf("unexpected alias target %q", m["*611"])
	}
}
