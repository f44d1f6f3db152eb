package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func loadTestConfig(t *testing.T, overrides map[string]any) (*Config, error) {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &c, c.Validate()
}

func TestConfigDefaults(t *testing.T) {
	c, err := loadTestConfig(t, nil)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if c.Server.Addr != ":5000" || c.Server.RateLimit != 5 || c.Server.RateBurst != 10 {
		t.Fatalf("unexpected server config %+v", c.Server)
	}
	if c.AI.Timeout != 5*time.Second || c.AI.Gemini.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected ai config %+v", c.AI)
	}
	if c.Storage.Driver != "memory" || !c.Storage.SeedDemo {
		t.Fatalf("unexpected storage config %+v", c.Storage)
	}
	if c.Session.TTL != 720*time.Hour || c.Matching.DefaultRadius != 5 {
		t.Fatalf("unexpected session/matching config %+v %+v", c.Session, c.Matching)
	}
	if !c.Media.PathStyle {
		t.Fatal("expected path-style media addressing by default")
	}
}

func TestConfigOverrides(t *testing.T) {
	c, err := loadTestConfig(t, map[string]any{
		"server.port":                    "8080",
		"storage.driver":                 "sqlite",
		"storage.path":                   "/tmp/rozgar.db",
		"matching.origin":                map[string]any{"lat": 25.61, "lng": 85.14},
		"applications.transition-policy": "permissive",
		"server.allowed-origins":         []string{"https://rozgar.example"},
		"media.bucket":                   "resumes",
		"media.public-url":               "https://cdn.example",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if c.Server.Addr != ":8080" {
		t.Fatalf("PORT must override the address, got %q", c.Server.Addr)
	}
	if c.Storage.Path != "/tmp/rozgar.db" || c.Matching.Origin == nil || c.Matching.Origin.Lat != 25.61 {
		t.Fatalf("unexpected config %+v %+v", c.Storage, c.Matching)
	}
	if len(c.Server.AllowedOrigins) != 1 || !c.Media.Enabled() || c.Media.PublicURL != "https://cdn.example" {
		t.Fatalf("unexpected server/media config %+v %+v", c.Server, c.Media)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := map[string]map[string]any{
		"unknown policy":   {"applications.transition-policy": "lenient"},
		"radius too large": {"matching.default-radius": 50},
		"zero timeout":     {"ai.timeout": "0s"},
		"empty addr":       {"server.addr": ""},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadTestConfig(t, overrides); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
