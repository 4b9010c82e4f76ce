package workflow

import (
	"testing"
	"time"
)

func daysAgo(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

func TestAggregateReviewsBuckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	reviews := []ReviewInfo{
		{ID: "r1", Status: ReviewStatusPending, AssignedAt: daysAgo(now, 1)},
		{ID: "r2", Status: ReviewStatusAssigned, AssignedAt: daysAgo(now, 6)},
		{ID: "r3", Status: ReviewStatusReviewed, Decision: ReviewDecisionApproved},
		{ID: "r4", Status: ReviewStatusCancelled},
	}

	buckets := AggregateReviews(reviews, "medium", now)
	if len(buckets.Pending) != 1 || buckets.Pending[0].ID != "r1" {
		t.Errorf("Expected r1 pending, got %+v", buckets.Pending)
	}
	if len(buckets.Overdue) != 1 || buckets.Overdue[0].ID != "r2" {
		t.Errorf("Expected r2 overdue, got %+v", buckets.Overdue)
	}
	if len(buckets.Completed) != 1 || buckets.Completed[0].ID != "r3" {
		t.Errorf("Expected r3 completed, got %+v", buckets.Completed)
	}
	if buckets.PendingTotal() != 2 {
		t.Errorf("Expected pending total 2, got %d", buckets.PendingTotal())
	}
}

func TestAggregateReviewsOverdueThresholds(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		requestPriority string
		daysSince       int
		wantOverdue     bool
	}{
		{"high priority within threshold", "high", 2, false},
		{"high priority past threshold", "high", 3, true},
		{"medium priority at 3 days", "medium", 3, false},
		{"medium priority at 5 days", "medium", 5, false},
		{"medium priority past 5 days", "medium", 6, true},
		{"low priority past 5 days", "low", 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews := []ReviewInfo{{ID: "r1", Status: ReviewStatusPending, AssignedAt: daysAgo(now, tt.daysSince)}}
			buckets := AggregateReviews(reviews, tt.requestPriority, now)
			gotOverdue := len(buckets.Overdue) == 1
			if gotOverdue != tt.wantOverdue {
				t.Errorf("overdue = %v, want %v", gotOverdue, tt.wantOverdue)
			}
		})
	}
}

func TestAggregateReviewsMissingAssignedAt(t *testing.T) {
	now := time.Now()
	reviews := []ReviewInfo{{ID: "r1", Status: ReviewStatusAssigned}}
	buckets := AggregateReviews(reviews, "high", now)
	if len(buckets.Overdue) != 0 || len(buckets.Pending) != 1 {
		t.Errorf("Review without assignment date must be pending, not overdue: %+v", buckets)
	}
}

func TestParseReviewDetails(t *testing.T) {
	raw := `[
		{"id":"rv-1","review_status":"pending_review","reviewer_name":"Jamie","department":"Quality","assigned_at":"2026-03-01 08:00:00"},
		{"id":"rv-2","review_status":"reviewed","review_decision":"approved","department":"Engineering","created_at":"2026-02-20"}
	]`
	reviews := ParseReviewDetails(raw)
	if len(reviews) != 2 {
		t.Fatalf("Expected 2 reviews, got %d", len(reviews))
	}
	if reviews[0].Reviewer != "Jamie" || reviews[0].Status != "pending_review" {
		t.Errorf("Unexpected first review: %+v", reviews[0])
	}
	if reviews[0].AssignedAt.IsZero() {
		t.Error("Expected assigned_at to parse")
	}
	if reviews[1].AssignedAt.IsZero() {
		t.Error("Expected created_at fallback to parse")
	}
	if reviews[1].Decision != ReviewDecisionApproved {
		t.Errorf("Expected approved decision, got %q", reviews[1].Decision)
	}
}

func TestParseReviewDetailsFailSoft(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"malformed":    `{"not":"an array"`,
		"wrong shape":  `{"review_status":"pending_review"}`,
		"plain string": "no reviews here",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if got := ParseReviewDetails(raw); len(got) != 0 {
				t.Errorf("Expected no reviews for %s payload, got %d", name, len(got))
			}
		})
	}
}
