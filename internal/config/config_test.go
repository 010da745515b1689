package config

import (
	"strings"
	"testing"
	"time"
)

func setValidDriverEnv(t *testing.T) {
	t.Setenv("USER_ID", "d1")
	t.Setenv("AUTH_TOKEN", "tok")
	t.Setenv("USER_ROLE", "driver")
}

func TestLoadDriverConfigDefaults(t *testing.T) {
	setValidDriverEnv(t)

	cfg, err := LoadDriverConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RadiusKm != 20 {
		t.Fatalf("expected default radius 20, got %v", cfg.RadiusKm)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("expected default refresh interval, got %v", cfg.RefreshInterval)
	}
	if cfg.Role != "driver" {
		t.Fatalf("expected driver role, got %q", cfg.Role)
	}
}

func TestLoadDriverConfigRejectsUnknownRole(t *testing.T) {
	setValidDriverEnv(t)
	t.Setenv("USER_ROLE", "superuser")

	_, err := LoadDriverConfig()
	if err == nil {
		t.Fatal("expected rejection of an unknown role")
	}
	if !strings.Contains(err.Error(), "USER_ROLE") {
		t.Fatalf("error should name the variable, got %v", err)
	}
}

func TestLoadDriverConfigAcceptsEachKnownRole(t *testing.T) {
	for _, role := range []string{"client", "driver", "admin"} {
		setValidDriverEnv(t)
		t.Setenv("USER_ROLE", role)
		if _, err := LoadDriverConfig(); err != nil {
			t.Fatalf("role %q should load, got %v", role, err)
		}
	}
}

func TestLoadDriverConfigRequiresIdentity(t *testing.T) {
	t.Setenv("USER_ID", "")
	t.Setenv("AUTH_TOKEN", "")

	_, err := LoadDriverConfig()
	if err == nil {
		t.Fatal("expected missing identity to fail")
	}
	for _, want := range []string{"USER_ID", "AUTH_TOKEN"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error should mention %s, got %v", want, err)
		}
	}
}

func TestLoadDriverConfigBadDuration(t *testing.T) {
	setValidDriverEnv(t)
	t.Setenv("OFFER_REFRESH_INTERVAL", "soon")

	_, err := LoadDriverConfig()
	if err == nil {
		t.Fatal("expected an unparseable duration to fail")
	}
}

func TestLoadGatewayConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadGatewayConfig()
	if err == nil {
		t.Fatal("expected missing JWT secret to fail")
	}
}

func TestLoadGatewayConfigBrokerList(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,,")

	cfg, err := LoadGatewayConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("broker list mishandled: %v", cfg.KafkaBrokers)
	}
}
