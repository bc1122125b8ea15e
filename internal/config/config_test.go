package config

import (
	"os"
	"testing"
	"time"
)

func unsetBuildEnv() {
	_ = os.Unsetenv("PULSEKEEP_BUILD_TARGET")
	_ = os.Unsetenv("PULSEKEEP_DB_DRIVER")
	_ = os.Unsetenv("PULSEKEEP_POSTGRES_DSN")
	_ = os.Unsetenv("PULSEKEEP_SQLITE_PATH")
	_ = os.Unsetenv("PULSEKEEP_MODEL_PROVIDER")
	_ = os.Unsetenv("PULSEKEEP_GEMINI_API_KEY")
}

func TestConfigLoad_Defaults(t *testing.T) {
	unsetBuildEnv()
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.BuildTarget != "local" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected local mapping: %s %s", cfg.BuildTarget, cfg.DBDriver)
	}
	if cfg.SQLitePath != "pulsekeep.db" {
		t.Fatalf("unexpected sqlite default path: %s", cfg.SQLitePath)
	}
	if cfg.ModelProvider != "http" || cfg.ModelBaseURL == "" {
		t.Fatalf("unexpected model defaults: %s %s", cfg.ModelProvider, cfg.ModelBaseURL)
	}
	if cfg.QueueMaxDeliveries != 8 {
		t.Fatalf("unexpected delivery budget default: %d", cfg.QueueMaxDeliveries)
	}
}

func TestResolveDefaults_CloudRequiresDSN(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PULSEKEEP_BUILD_TARGET", "cloud")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatal("expected error: cloud target without a postgres DSN")
	}

	_ = os.Setenv("PULSEKEEP_POSTGRES_DSN", "postgres://localhost:5432/pulsekeep")
	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected cloud mapping: %s", cfg.DBDriver)
	}
}

func TestResolveDefaults_DriverOverride(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PULSEKEEP_BUILD_TARGET", "local")
	_ = os.Setenv("PULSEKEEP_DB_DRIVER", "postgres")
	_ = os.Setenv("PULSEKEEP_POSTGRES_DSN", "postgres://localhost:5432/pulsekeep")
	defer unsetBuildEnv()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("override failed, got %s", cfg.DBDriver)
	}
}

func TestResolveDefaults_UnknownBuildTarget(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PULSEKEEP_BUILD_TARGET", "mainframe")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatal("expected error for unsupported build target")
	}
}

func TestResolveDefaults_GeminiRequiresKey(t *testing.T) {
	unsetBuildEnv()
	_ = os.Setenv("PULSEKEEP_MODEL_PROVIDER", "gemini")
	defer unsetBuildEnv()

	if _, err := New(); err == nil {
		t.Fatal("expected error: gemini provider without an API key")
	}

	_ = os.Setenv("PULSEKEEP_GEMINI_API_KEY", "test-key")
	if _, err := New(); err != nil {
		t.Fatalf("config load: %v", err)
	}
}

func TestResolveDefaults_LatencyBudgetOrdering(t *testing.T) {
	cfg := NewForTesting()
	cfg.AIBudgetLatencyLongMS = cfg.AIBudgetLatencyMS - 1
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatal("expected error when long budget is below base budget")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := NewForTesting()
	if cfg.PollInterval() != 50*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval())
	}
	if cfg.Visibility() != time.Second {
		t.Fatalf("unexpected visibility window: %v", cfg.Visibility())
	}
	if cfg.BackoffCap() != 2*time.Second {
		t.Fatalf("unexpected backoff cap: %v", cfg.BackoffCap())
	}
	if cfg.GetHTTPAddr() != ":8090" {
		t.Fatalf("unexpected http addr: %s", cfg.GetHTTPAddr())
	}
	if !cfg.IsTesting() || cfg.IsProduction() {
		t.Fatal("testing config misreports environment")
	}
}
