package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "test_token")
	t.Setenv("LINE_CHANNEL_SECRET", "test_secret")
	t.Setenv("SHEET_ID", "1AbC")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LineChannelToken != "test_token" {
		t.Errorf("Expected token 'test_token', got '%s'", cfg.LineChannelToken)
	}
	if cfg.LineChannelSecret != "test_secret" {
		t.Errorf("Expected secret 'test_secret', got '%s'", cfg.LineChannelSecret)
	}

	// Defaults
	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.SheetFormat != "csv" {
		t.Errorf("Expected default sheet format 'csv', got '%s'", cfg.SheetFormat)
	}
	if cfg.ReadFailurePolicy != PolicyMask {
		t.Errorf("Expected default policy %q, got %q", PolicyMask, cfg.ReadFailurePolicy)
	}
	if len(cfg.SheetTables) != 1 || cfg.SheetTables[0] != "SimpleQnA" {
		t.Errorf("Expected default tables [SimpleQnA], got %v", cfg.SheetTables)
	}
	if cfg.FollowTable != "SimpleQnA" {
		t.Errorf("Expected follow table to default to first table, got %q", cfg.FollowTable)
	}
	if cfg.Bot.MaxMessagesPerReply != 5 {
		t.Errorf("Expected max messages per reply 5, got %d", cfg.Bot.MaxMessagesPerReply)
	}
}

func TestLoadTableOrder(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SHEET_TABLES", " SimpleQnA , GeneralQnA ,, Promotions ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"SimpleQnA", "GeneralQnA", "Promotions"}
	if len(cfg.SheetTables) != len(want) {
		t.Fatalf("table count = %d, want %d", len(cfg.SheetTables), len(want))
	}
	for i, name := range want {
		if cfg.SheetTables[i] != name {
			t.Errorf("table[%d] = %q, want %q (order must be preserved)", i, cfg.SheetTables[i], name)
		}
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	t.Setenv("LINE_CHANNEL_SECRET", "")
	t.Setenv("SHEET_ID", "1AbC")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail without LINE credentials")
	}
	if !strings.Contains(err.Error(), "LINE_CHANNEL_ACCESS_TOKEN") {
		t.Errorf("error should name the missing variable, got: %v", err)
	}
}

func TestLoadForWarmupMode(t *testing.T) {
	// Warmup tools only touch the table sources and snapshot store, so
	// LINE credentials must not be required.
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	t.Setenv("LINE_CHANNEL_SECRET", "")
	t.Setenv("SHEET_ID", "1AbC")

	cfg, err := LoadForMode(WarmupMode)
	if err != nil {
		t.Fatalf("LoadForMode(WarmupMode) failed: %v", err)
	}
	if cfg.SheetID != "1AbC" {
		t.Errorf("SheetID = %q, want %q", cfg.SheetID, "1AbC")
	}

	// A sheet or local dir is still required.
	t.Setenv("SHEET_ID", "")
	if _, err := LoadForMode(WarmupMode); err == nil {
		t.Error("LoadForMode(WarmupMode) should still require SHEET_ID or LOCAL_TABLE_DIR")
	}
}

func TestLoadInvalidPolicy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("READ_FAILURE_POLICY", "retry")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject unknown read failure policy")
	}
	if !strings.Contains(err.Error(), "READ_FAILURE_POLICY") {
		t.Errorf("error should name the bad variable, got: %v", err)
	}
}

func TestLoadDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SHEET_TIMEOUT", "5s")
	t.Setenv("SNAPSHOT_TTL", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.SheetTimeout != 5*time.Second {
		t.Errorf("SheetTimeout = %v, want 5s", cfg.SheetTimeout)
	}
	if cfg.SnapshotTTL != 24*time.Hour {
		t.Errorf("SnapshotTTL = %v, want 24h", cfg.SnapshotTTL)
	}
}

func TestR2Enabled(t *testing.T) {
	cfg := &Config{}
	if cfg.R2Enabled() {
		t.Error("R2Enabled should be false with empty config")
	}

	cfg.R2Endpoint = "https://acc.r2.cloudflarestorage.com"
	cfg.R2AccessKeyID = "key"
	cfg.R2SecretKey = "secret"
	if cfg.R2Enabled() {
		t.Error("R2Enabled should be false without a bucket")
	}

	cfg.R2Bucket = "qna-logs"
	if !cfg.R2Enabled() {
		t.Error("R2Enabled should be true with full config")
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.SQLitePath(); got != "/data/snapshot.db" {
		t.Errorf("SQLitePath = %q, want %q", got, "/data/snapshot.db")
	}
}

func TestLocalOnlyDeployment(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "tok")
	t.Setenv("LINE_CHANNEL_SECRET", "sec")
	t.Setenv("SHEET_ID", "")
	t.Setenv("LOCAL_TABLE_DIR", t.TempDir())

	if _, err := Load(); err != nil {
		t.Fatalf("Load() should accept local-table-only deployments: %v", err)
	}
}
