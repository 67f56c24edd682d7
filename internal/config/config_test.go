package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "calldesk", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Twilio: TwilioConfig{
			AccountSID: "AC123",
			AuthToken:  "token",
			FromNumber: "+15550001111",
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Twilio.SendAttempts != 3 {
		t.Fatalf("expected default send attempts, got %d", c.Twilio.SendAttempts)
	}
	if c.Twilio.SignalingTokenTTL != time.Hour {
		t.Fatalf("expected default signaling ttl, got %v", c.Twilio.SignalingTokenTTL)
	}
	if c.Alerts.ReplyWindow != 4*time.Hour {
		t.Fatalf("expected default reply window, got %v", c.Alerts.ReplyWindow)
	}
}

func TestValidate_ProductionRequiresCarrierKeys(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "issuer"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without API key / TwiML app")
	}
	c.Twilio.APIKeySID = "SK123"
	c.Twilio.APIKeySecret = "sk-secret"
	c.Twilio.TwiMLAppSID = "AP123"
	c.Twilio.StatusCallbackURL = "https://api.example.com/webhooks/carrier/sms-status"
	c.Twilio.WebhookBaseURL = "https://api.example.com"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
