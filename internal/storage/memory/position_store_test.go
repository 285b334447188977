package memory

import (
	"context"
	"testing"

	"github.com/w1r2p1/moonshot/internal/domain"
)

func TestPositionStore_GetPositions_FiltersByOrderRef(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	if err := store.SetPosition(ctx, &domain.HeldPosition{InstrumentID: "FI1", Account: "U1", OrderRef: "mavg-us", Quantity: 100}); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}
	if err := store.SetPosition(ctx, &domain.HeldPosition{InstrumentID: "FI1", Account: "U1", OrderRef: "other", Quantity: 50}); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	held, err := store.GetPositions(ctx, "mavg-us", []string{"U1"}, []string{"FI1"})
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}

	if len(held) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(held))
	}
	if held[0].Quantity != 100 {
		t.Errorf("Quantity mismatch: got %d, want 100", held[0].Quantity)
	}
}

func TestPositionStore_ZeroQuantityRemoves(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	pos := &domain.HeldPosition{InstrumentID: "FI1", Account: "U1", OrderRef: "mavg-us", Quantity: 100}
	if err := store.SetPosition(ctx, pos); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	pos.Quantity = 0
	if err := store.SetPosition(ctx, pos); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	held, err := store.GetPositions(ctx, "mavg-us", []string{"U1"}, []string{"FI1"})
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(held) != 0 {
		t.Errorf("Expected no positions, got %d", len(held))
	}
}
