package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_ConfigYAML(t *testing.T) {
	path := filepath.Join("..", "..", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Host == "" {
		t.Fatalf("expected database.host to be set")
	}
	if cfg.RabbitMQ.Port == 0 {
		t.Fatalf("expected rabbitmq.port to be set")
	}
	if cfg.Redis.Port == 0 {
		t.Fatalf("expected redis.port to be set")
	}
	if cfg.Pricing.DeliveryFee != 10 {
		t.Fatalf("expected pricing.delivery_fee 10, got %v", cfg.Pricing.DeliveryFee)
	}
	if cfg.Pricing.TaxRate != 0.12 {
		t.Fatalf("expected pricing.tax_rate 0.12, got %v", cfg.Pricing.TaxRate)
	}
	if cfg.Database.MaxConns != 25 {
		t.Fatalf("expected database.max_conns 25, got %d", cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns != 5 {
		t.Fatalf("expected database.min_conns 5, got %d", cfg.Database.MinConns)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("no-such-config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
