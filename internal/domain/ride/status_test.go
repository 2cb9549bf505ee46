package ride

import "testing"

func TestStatusChainForwardOnly(t *testing.T) {
	chain := []Status{
		StatusAssigned,
		StatusDriverArriving,
		StatusDriverArrived,
		StatusPickedUp,
		StatusInProgress,
		StatusCompleted,
	}

	for i := 0; i < len(chain)-1; i++ {
		if !chain[i].CanTransitionTo(chain[i+1]) {
			t.Fatalf("%s -> %s should be allowed", chain[i], chain[i+1])
		}
		// backward
		if chain[i+1].CanTransitionTo(chain[i]) {
			t.Fatalf("%s -> %s (backward) should be rejected", chain[i+1], chain[i])
		}
	}

	// skipping a stage
	if StatusAssigned.CanTransitionTo(StatusPickedUp) {
		t.Fatal("assigned -> picked_up skips stages and should be rejected")
	}
	if StatusDriverArriving.CanTransitionTo(StatusInProgress) {
		t.Fatal("driver_arriving -> in_progress skips stages and should be rejected")
	}
}

func TestStatusCancelledFromAnyNonTerminal(t *testing.T) {
	for _, s := range []Status{StatusAssigned, StatusDriverArriving, StatusDriverArrived, StatusPickedUp, StatusInProgress} {
		if !s.CanTransitionTo(StatusCancelled) {
			t.Fatalf("%s -> cancelled should be allowed", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if s.CanTransitionTo(StatusCancelled) {
			t.Fatalf("terminal %s -> cancelled should be rejected", s)
		}
		if s.CanTransitionTo(StatusAssigned) {
			t.Fatalf("terminal %s must not transition anywhere", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Picked_Up "); err != nil || s != StatusPickedUp {
		t.Fatalf("parse picked_up: %v %v", s, err)
	}
	if _, err := ParseStatus("teleported"); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
