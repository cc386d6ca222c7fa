package config

import "testing"

func TestDefaults_SyncAndReconcile(t *testing.T) {
	cfg := Defaults()

	if cfg.Sync.ProtocolVersion != 1 {
		t.Fatalf("expected default sync protocol version 1, got %d", cfg.Sync.ProtocolVersion)
	}
	if cfg.Sync.ConflictGapSeconds != 1 {
		t.Fatalf("expected default conflict gap of 1s, got %d", cfg.Sync.ConflictGapSeconds)
	}
	if cfg.Reconcile.PageSize != 100 {
		t.Fatalf("expected default reconcile page size 100, got %d", cfg.Reconcile.PageSize)
	}
	if cfg.Policy.Epsilon != 0.1 || cfg.Policy.DriftEvery != 20 || cfg.Policy.DriftDropPct != 0.5 {
		t.Fatalf("unexpected default policy tunables: %+v", cfg.Policy)
	}
}
