package workflow

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveBusinessFlowAllApproved(t *testing.T) {
	flow, err := ResolveBusinessFlow(5, 0, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if flow.Type != FlowAllApproved || flow.Action != FlowActionPicking {
		t.Errorf("Unexpected flow: %+v", flow)
	}
	if flow.ApprovedItems != 5 || flow.RejectedItems != 0 {
		t.Errorf("Unexpected counts: %+v", flow)
	}
	if flow.ConfirmText != "Send to Picking" {
		t.Errorf("Unexpected confirm text: %q", flow.ConfirmText)
	}
}

func TestResolveBusinessFlowAllRejected(t *testing.T) {
	flow, err := ResolveBusinessFlow(0, 3, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if flow.Type != FlowAllRejected || flow.Action != FlowActionComplete {
		t.Errorf("Unexpected flow: %+v", flow)
	}
	if flow.SuccessMessage != "Material request completed - all items were rejected." {
		t.Errorf("Unexpected success message: %q", flow.SuccessMessage)
	}
}

func TestResolveBusinessFlowMixed(t *testing.T) {
	flow, err := ResolveBusinessFlow(2, 3, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if flow.Type != FlowMixedResults || flow.Action != FlowActionPartialPicking {
		t.Errorf("Unexpected flow: %+v", flow)
	}
	if !strings.Contains(flow.Description, "2 items approved") || !strings.Contains(flow.Description, "3 items rejected") {
		t.Errorf("Description must carry both counts: %q", flow.Description)
	}
}

func TestResolveBusinessFlowTypeInvariants(t *testing.T) {
	// type=all_approved ⇔ rejected=0, type=all_rejected ⇔ approved=0
	for approved := 0; approved <= 4; approved++ {
		rejected := 4 - approved
		flow, err := ResolveBusinessFlow(approved, rejected, 4)
		if err != nil {
			t.Fatalf("approved=%d: unexpected error %v", approved, err)
		}
		if (flow.Type == FlowAllApproved) != (rejected == 0) {
			t.Errorf("approved=%d: all_approved invariant violated", approved)
		}
		if (flow.Type == FlowAllRejected) != (approved == 0) {
			t.Errorf("approved=%d: all_rejected invariant violated", approved)
		}
		if flow.ApprovedItems+flow.RejectedItems != 4 {
			t.Errorf("approved=%d: counts must sum to total", approved)
		}
	}
}

func TestResolveBusinessFlowUnresolved(t *testing.T) {
	if _, err := ResolveBusinessFlow(2, 1, 5); !errors.Is(err, ErrUnresolvedItems) {
		t.Errorf("Expected ErrUnresolvedItems, got %v", err)
	}
	if _, err := ResolveBusinessFlow(0, 0, 0); err == nil {
		t.Error("Expected error for empty request")
	}
}
