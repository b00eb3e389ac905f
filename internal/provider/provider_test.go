package provider

import (
	"context"
	"testing"

	"github.com/nmoller/wapanel/internal/domain"
)

func TestRegistryRoutesByVariant(t *testing.T) {
	db := newTestDB(t)
	cloud := newCloudForTest(t, db, nil, "http://unused.invalid")
	session := NewSessionProvider(&fakeManager{connected: true})
	registry := NewRegistry(db, cloud, session)
	ctx := context.Background()

	db.Create(&domain.WaDevice{ID: "c1", Name: "cloud", Variant: domain.VariantCloud})
	db.Create(&domain.WaDevice{ID: "s1", Name: "session", Variant: domain.VariantSession})

	p, err := registry.ForDevice(ctx, "c1")
	if err != nil {
		t.Fatalf("cloud device: %v", err)
	}
	if p.Variant() != domain.VariantCloud {
		t.Fatalf("expected cloud provider, got %s", p.Variant())
	}

	p, err = registry.ForDevice(ctx, "s1")
	if err != nil {
		t.Fatalf("session device: %v", err)
	}
	if p.Variant() != domain.VariantSession {
		t.Fatalf("expected session provider, got %s", p.Variant())
	}

	_, err = registry.ForDevice(ctx, "missing")
	if kindOf(t, err) != KindNotConfigured {
		t.Fatalf("unknown device: expected NOT_CONFIGURED, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	if got := clampLimit(0); got != 50 {
		t.Fatalf("clampLimit(0) = %d", got)
	}
	if got := clampLimit(1000); got != 200 {
		t.Fatalf("clampLimit(1000) = %d", got)
	}
	if got := clampLimit(25); got != 25 {
		t.Fatalf("clampLimit(25) = %d", got)
	}
}
