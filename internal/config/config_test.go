package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_InvertedGeocodeBox(t *testing.T) {
	cfg := validConfig()
	cfg.Geocode.MinLat, cfg.Geocode.MaxLat = 11.0, 10.0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted geocode box")
	}
}

func TestValidate_PriceLooseningTooLarge(t *testing.T) {
	cfg := validConfig()
	cfg.Search.PriceLoosening = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for price loosening above 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.AI.ParseTimeoutMsec != 1200 {
		t.Errorf("expected ParseTimeoutMsec=1200, got %d", cfg.AI.ParseTimeoutMsec)
	}
	if cfg.AI.BreakerFailures != 3 {
		t.Errorf("expected BreakerFailures=3, got %d", cfg.AI.BreakerFailures)
	}
	if cfg.Geocode.MinLat >= cfg.Geocode.MaxLat {
		t.Error("expected a default service-area box")
	}
	if cfg.Search.MinResultsFloor != 10 {
		t.Errorf("expected MinResultsFloor=10, got %d", cfg.Search.MinResultsFloor)
	}
	if cfg.Search.PrefetchPages != 3 {
		t.Errorf("expected PrefetchPages=3, got %d", cfg.Search.PrefetchPages)
	}
	if cfg.Search.PriceLoosening != 0.15 {
		t.Errorf("expected PriceLoosening=0.15, got %v", cfg.Search.PriceLoosening)
	}
	if cfg.Search.RerankWindowFloor != 12 {
		t.Errorf("expected RerankWindowFloor=12, got %d", cfg.Search.RerankWindowFloor)
	}
	if cfg.Search.RerankMaxCandidates != 30 {
		t.Errorf("expected RerankMaxCandidates=30, got %d", cfg.Search.RerankMaxCandidates)
	}
	if cfg.Search.PopularityWeight != 0.3 {
		t.Errorf("expected PopularityWeight=0.3, got %v", cfg.Search.PopularityWeight)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Search: SearchConfig{MinResultsFloor: 25, DefaultLimit: 50},
		Geocode: GeocodeConfig{
			MinLat: 20.5, MaxLat: 21.5, MinLon: 105.3, MaxLon: 106.1,
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.MinResultsFloor != 25 {
		t.Errorf("expected MinResultsFloor=25, got %d", cfg.Search.MinResultsFloor)
	}
	if cfg.Geocode.MinLat != 20.5 || cfg.Geocode.MaxLon != 106.1 {
		t.Errorf("geocode box overridden: %+v", cfg.Geocode)
	}
}
