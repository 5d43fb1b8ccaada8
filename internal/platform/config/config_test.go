package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "elfogon-dev",
			"ORDERS_BANK_ACCOUNT":  "0011223344",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != defaultPort {
		t.Fatalf("port = %s, want %s", cfg.Server.Port, defaultPort)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Fatalf("read timeout = %s", cfg.Server.ReadTimeout)
	}
	if cfg.Orders.NumberPrefix != defaultOrderPrefix {
		t.Fatalf("number prefix = %s", cfg.Orders.NumberPrefix)
	}
	if cfg.Firestore.ProjectID != "elfogon-dev" {
		t.Fatalf("firestore project = %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadReportsMissingFields(t *testing.T) {
	_, err := Load(context.Background(), WithEnvFile(""), WithoutSystemEnv())
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validation.Fields()
	if len(fields) != 2 {
		t.Fatalf("fields = %v", fields)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "p",
			"ORDERS_BANK_ACCOUNT":  "acc",
			"SERVER_READ_TIMEOUT":  "5s",
			"SERVER_WRITE_TIMEOUT": "bogus",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("read timeout = %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("invalid duration should fall back, got %s", cfg.Server.WriteTimeout)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "sm://orders-bank-account" {
			return "", errors.New("unexpected ref " + ref)
		}
		return "9988776655", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "p",
			"ORDERS_BANK_ACCOUNT":  "sm://orders-bank-account",
		}),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Orders.BankAccount != "9988776655" {
		t.Fatalf("bank account = %s", cfg.Orders.BankAccount)
	}
}

func TestLoadSecretResolutionFailureIsFatal(t *testing.T) {
	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	})

	_, err := Load(context.Background(),
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"FIRESTORE_PROJECT_ID": "p",
			"ORDERS_BANK_ACCOUNT":  "sm://orders-bank-account",
		}),
	)
	if err == nil {
		t.Fatal("expected error")
	}
}
