package app

import (
	"context"
	"testing"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/config"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
)

func TestNewBuildsMemoryHub(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, config.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Store == nil || a.Registry == nil || a.Queue == nil {
		t.Fatal("expected all components wired")
	}
	if a.Submissions == nil || a.Scheduler == nil || a.Recorder == nil {
		t.Fatal("expected all services wired")
	}

	// Shutdown without Start must not hang or panic.
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestNewSeedsConnectors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Connectors = []config.ConnectorSeed{
		{OrgID: "org-1", Rail: "cdanet", Enabled: true},
		{OrgID: "org-1", Rail: "portal", Enabled: false, Mode: "live"},
	}

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(ctx)

	cc, err := a.Store.GetConnectorConfig(ctx, "org-1", connector.RailCDAnet)
	if err != nil {
		t.Fatalf("GetConnectorConfig: %v", err)
	}
	if !cc.Enabled {
		t.Error("expected seeded cdanet connector enabled")
	}
	if cc.Mode != connector.ModeSandbox {
		t.Errorf("expected mode to default to sandbox, got %q", cc.Mode)
	}

	cc, err = a.Store.GetConnectorConfig(ctx, "org-1", connector.RailPortal)
	if err != nil {
		t.Fatalf("GetConnectorConfig: %v", err)
	}
	if cc.Enabled {
		t.Error("expected seeded portal connector disabled")
	}
	if cc.Mode != connector.ModeLive {
		t.Errorf("expected live mode kept, got %q", cc.Mode)
	}
}

func TestSeedConnectorsKeepsExistingRows(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Connectors = []config.ConnectorSeed{
		{OrgID: "org-1", Rail: "eclaims", Enabled: true},
	}

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(ctx)

	// An operator disables the rail after boot. Re-seeding must not
	// flip it back on.
	cc, err := a.Store.GetConnectorConfig(ctx, "org-1", connector.RailEClaims)
	if err != nil {
		t.Fatalf("GetConnectorConfig: %v", err)
	}
	cc.Enabled = false
	if err := a.Store.PutConnectorConfig(ctx, cc); err != nil {
		t.Fatalf("PutConnectorConfig: %v", err)
	}

	if err := a.seedConnectors(ctx, cfg.Connectors); err != nil {
		t.Fatalf("seedConnectors: %v", err)
	}
	cc, err = a.Store.GetConnectorConfig(ctx, "org-1", connector.RailEClaims)
	if err != nil {
		t.Fatalf("GetConnectorConfig: %v", err)
	}
	if cc.Enabled {
		t.Error("expected operator change to survive re-seeding")
	}
}

func TestNewRejectsBadConnectorSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Connectors = []config.ConnectorSeed{
		{OrgID: "org-1", Rail: "fax", Enabled: true},
	}

	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown rail in connector seed")
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StoreConfig{Driver: "etcd"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
