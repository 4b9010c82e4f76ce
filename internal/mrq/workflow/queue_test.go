package workflow

import (
	"testing"
	"time"
)

func TestClassifyQueueOrderedChecks(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := daysAgo(now, 3)
	old := daysAgo(now, 30)

	tests := []struct {
		name      string
		req       RequestState
		wantQueue string
		wantOK    bool
	}{
		{
			name:      "recently completed",
			req:       RequestState{Status: "complete", CompletedAt: &recent},
			wantQueue: QueueComplete,
			wantOK:    true,
		},
		{
			name:   "completed outside recency window is hidden",
			req:    RequestState{Status: "complete", CompletedAt: &old},
			wantOK: false,
		},
		{
			name:   "completed without completion timestamp is hidden",
			req:    RequestState{Status: "delivered"},
			wantOK: false,
		},
		{
			name:      "closed falls back to closed_at",
			req:       RequestState{Status: "closed", ClosedAt: &recent},
			wantQueue: QueueComplete,
			wantOK:    true,
		},
		{
			name:      "picking",
			req:       RequestState{Status: "picking"},
			wantQueue: QueueInPicking,
			wantOK:    true,
		},
		{
			name:      "being picked",
			req:       RequestState{Status: "being_picked", ValidationProgress: 50},
			wantQueue: QueueInPicking,
			wantOK:    true,
		},
		{
			name:      "approved and fully validated",
			req:       RequestState{Status: "approved", ValidationProgress: 100, PendingValidations: 0},
			wantQueue: QueueReadyPicking,
			wantOK:    true,
		},
		{
			name:      "ready_for_picking fully validated",
			req:       RequestState{Status: "ready_for_picking", ValidationProgress: 100},
			wantQueue: QueueReadyPicking,
			wantOK:    true,
		},
		{
			name:      "approved but pending validations stays in validation",
			req:       RequestState{Status: "approved", ValidationProgress: 100, PendingValidations: 1},
			wantQueue: QueueValidation,
			wantOK:    true,
		},
		{
			name:      "approved but incomplete progress stays in validation",
			req:       RequestState{Status: "approved", ValidationProgress: 80},
			wantQueue: QueueValidation,
			wantOK:    true,
		},
		{
			name:      "new request",
			req:       RequestState{Status: "pending_validation"},
			wantQueue: QueueValidation,
			wantOK:    true,
		},
		{
			name:      "unknown status defaults to validation",
			req:       RequestState{Status: "whatever"},
			wantQueue: QueueValidation,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue, ok := ClassifyQueue(tt.req, DefaultRecentWindowDays, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && queue != tt.wantQueue {
				t.Errorf("queue = %q, want %q", queue, tt.wantQueue)
			}
		})
	}
}

func TestClassifyQueueCustomWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	completed := daysAgo(now, 20)
	req := RequestState{Status: "complete", CompletedAt: &completed}

	if _, ok := ClassifyQueue(req, 14, now); ok {
		t.Error("Expected hidden with 14 day window")
	}
	if queue, ok := ClassifyQueue(req, 30, now); !ok || queue != QueueComplete {
		t.Errorf("Expected complete with 30 day window, got %q ok=%v", queue, ok)
	}
}

func TestStatusForQueue(t *testing.T) {
	tests := map[string]string{
		QueueValidation:   "pending_validation",
		QueueReadyPicking: "approved",
		QueueInPicking:    "in_progress",
		QueueComplete:     "complete",
		"unknown":         "pending_validation",
	}
	for queue, want := range tests {
		if got := StatusForQueue(queue); got != want {
			t.Errorf("StatusForQueue(%q) = %q, want %q", queue, got, want)
		}
	}
}

func TestIsRequestOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		priority string
		days     int
		want     bool
	}{
		{"high", 2, false},
		{"high", 3, true},
		{"medium", 5, false},
		{"medium", 6, true},
		{"low", 10, false},
		{"low", 11, true},
		{"", 7, false},
		{"", 8, true},
	}
	for _, tt := range tests {
		if got := IsRequestOverdue(tt.priority, daysAgo(now, tt.days), now); got != tt.want {
			t.Errorf("IsRequestOverdue(%q, %d days) = %v, want %v", tt.priority, tt.days, got, tt.want)
		}
	}
	if IsRequestOverdue("high", time.Time{}, now) {
		t.Error("Zero creation time must not be overdue")
	}
}
