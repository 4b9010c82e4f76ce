package handler

import (
	"net/http"
	"testing"

	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/testutil"
	"go.uber.org/zap"
)

func setupReviewTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	reviewSvc := service.NewReviewService(db, repos.Review, repos.Item, repos.Request, repos.User, nil, zap.NewNop())
	h := NewReviewHandler(reviewSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/mrq")
	api.POST("/requests/:id/reviews", h.SendForReview)
	api.GET("/requests/:id/reviews/summary", h.DepartmentSummary)
	api.GET("/reviews/dashboard", h.Dashboard)
	api.POST("/reviews/bulk-items", h.BulkItemReviews)
	api.POST("/reviews/:id/submit", h.Submit)
	api.POST("/reviews/:id/cancel", h.Cancel)
	api.POST("/reviews/:id/escalate", h.Escalate)
	api.POST("/reviews/:id/reassign", h.Reassign)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

// TestSendForReviewAndSubmit covers assigning reviews to items and
// submitting a decision, including the snapshot refresh on the request.
func TestSendForReviewAndSubmit(t *testing.T) {
	env := setupReviewTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestUser(t, env.DB, "rev-1", "Engineering Reviewer", "Engineering")
	req := testutil.SeedTestRequest(t, env.DB, "req-sr-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001", "PN-002")

	body := map[string]interface{}{
		"reviewer_id": "rev-1",
		"department":  "Engineering",
		"review_note": "check tolerances",
		"priority":    "high",
		"item_ids":    []string{req.Items[0].ID, req.Items[1].ID},
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/requests/req-sr-1/reviews", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["count"].(float64) != 2 {
		t.Fatalf("expected 2 assignments, got %v", data["count"])
	}
	reviews := data["reviews"].([]interface{})
	firstReview := reviews[0].(map[string]interface{})
	if firstReview["review_status"] != entity.ReviewStatusAssigned {
		t.Errorf("expected assigned, got %v", firstReview["review_status"])
	}
	if firstReview["due_date"] == nil {
		t.Errorf("expected due date derived from priority")
	}

	// Counters and snapshot refreshed on the request
	var updated entity.MaterialRequest
	env.DB.Where("id = ?", "req-sr-1").First(&updated)
	if updated.PendingReviews != 2 {
		t.Errorf("expected 2 pending reviews, got %d", updated.PendingReviews)
	}
	if updated.ReviewDetails == "" {
		t.Errorf("expected review details snapshot written")
	}

	// Submit a decision
	reviewID := firstReview["id"].(string)
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/"+reviewID+"/submit",
		map[string]interface{}{"decision": "approved", "comment": "ok"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	submitData := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if submitData["noop"] != false {
		t.Errorf("first submit should not be a noop")
	}

	// Re-submitting a terminal review is a noop
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/"+reviewID+"/submit",
		map[string]interface{}{"decision": "rejected"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	submitData = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if submitData["noop"] != true {
		t.Errorf("second submit should be a noop")
	}
	review := submitData["review"].(map[string]interface{})
	if review["review_decision"] != "approved" {
		t.Errorf("terminal decision must not change, got %v", review["review_decision"])
	}

	env.DB.Where("id = ?", "req-sr-1").First(&updated)
	if updated.PendingReviews != 1 {
		t.Errorf("expected 1 pending review after submit, got %d", updated.PendingReviews)
	}
}

// TestSendForReviewRejectsForeignItems verifies items from another request
// cannot be assigned.
func TestSendForReviewRejectsForeignItems(t *testing.T) {
	env := setupReviewTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestUser(t, env.DB, "rev-1", "Reviewer", "Engineering")
	testutil.SeedTestRequest(t, env.DB, "req-a", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001")
	other := testutil.SeedTestRequest(t, env.DB, "req-b", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-002")

	body := map[string]interface{}{
		"reviewer_id": "rev-1",
		"item_ids":    []string{other.Items[0].ID},
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/requests/req-a/reviews", body, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	env.DB.Model(&entity.ReviewAssignment{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no assignments created, got %d", count)
	}
}

// TestCancelReviewIdempotent verifies cancel is terminal and repeat
// cancels are no-ops.
func TestCancelReviewIdempotent(t *testing.T) {
	env := setupReviewTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestUser(t, env.DB, "rev-1", "Reviewer", "Engineering")
	req := testutil.SeedTestRequest(t, env.DB, "req-cr-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001")

	review := &entity.ReviewAssignment{
		ID:           "rv-1",
		RequestID:    req.ID,
		ItemID:       req.Items[0].ID,
		ReviewerID:   "rev-1",
		ReviewStatus: entity.ReviewStatusPending,
		Priority:     entity.ReviewPriorityNormal,
	}
	if err := env.DB.Create(review).Error; err != nil {
		t.Fatalf("Failed to seed review: %v", err)
	}

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/rv-1/cancel", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if testutil.ParseResponse(w)["data"].(map[string]interface{})["noop"] != false {
		t.Errorf("first cancel should not be a noop")
	}

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/rv-1/cancel", nil, token)
	if testutil.ParseResponse(w)["data"].(map[string]interface{})["noop"] != true {
		t.Errorf("second cancel should be a noop")
	}

	var cancelled entity.ReviewAssignment
	env.DB.Where("id = ?", "rv-1").First(&cancelled)
	if cancelled.ReviewStatus != entity.ReviewStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.ReviewStatus)
	}
	if cancelled.CancelledAt == nil {
		t.Errorf("expected cancelled_at set")
	}
}

// TestEscalateBumpsPriority verifies escalation creates a new higher
// priority assignment linked to the original.
func TestEscalateBumpsPriority(t *testing.T) {
	env := setupReviewTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestUser(t, env.DB, "rev-1", "Reviewer", "Engineering")
	testutil.SeedTestUser(t, env.DB, "lead-1", "Team Lead", "Engineering")
	req := testutil.SeedTestRequest(t, env.DB, "req-esc-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001")

	review := &entity.ReviewAssignment{
		ID:                 "rv-esc-1",
		RequestID:          req.ID,
		ItemID:             req.Items[0].ID,
		ReviewerID:         "rev-1",
		ReviewerDepartment: "Engineering",
		ReviewStatus:       entity.ReviewStatusAssigned,
		Priority:           entity.ReviewPriorityHigh,
	}
	if err := env.DB.Create(review).Error; err != nil {
		t.Fatalf("Failed to seed review: %v", err)
	}

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/rv-esc-1/escalate",
		map[string]interface{}{"reviewer_id": "lead-1", "note": "stuck for a week"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["priority"] != entity.ReviewPriorityUrgent {
		t.Errorf("expected urgent after escalating a high review, got %v", data["priority"])
	}
	if data["escalated_from"] != "rv-esc-1" {
		t.Errorf("expected escalated_from link, got %v", data["escalated_from"])
	}
	if data["reviewer_id"] != "lead-1" {
		t.Errorf("expected new reviewer, got %v", data["reviewer_id"])
	}
}

// TestReassignCancelsOriginal verifies reassignment cancels the original
// and carries its parameters to the new reviewer.
func TestReassignCancelsOriginal(t *testing.T) {
	env := setupReviewTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestUser(t, env.DB, "rev-1", "Reviewer", "Engineering")
	testutil.SeedTestUser(t, env.DB, "rev-2", "Backup Reviewer", "Engineering")
	req := testutil.SeedTestRequest(t, env.DB, "req-ra-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001")

	review := &entity.ReviewAssignment{
		ID:                 "rv-ra-1",
		RequestID:          req.ID,
		ItemID:             req.Items[0].ID,
		ReviewerID:         "rev-1",
		ReviewerDepartment: "Engineering",
		ReviewStatus:       entity.ReviewStatusAssigned,
		Priority:           entity.ReviewPriorityNormal,
	}
	if err := env.DB.Create(review).Error; err != nil {
		t.Fatalf("Failed to seed review: %v", err)
	}

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/rv-ra-1/reassign",
		map[string]interface{}{"reviewer_id": "rev-2", "note": "out of office"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["reviewer_id"] != "rev-2" {
		t.Errorf("expected rev-2, got %v", data["reviewer_id"])
	}
	if data["priority"] != entity.ReviewPriorityNormal {
		t.Errorf("expected priority carried over, got %v", data["priority"])
	}

	var original entity.ReviewAssignment
	env.DB.Where("id = ?", "rv-ra-1").First(&original)
	if original.ReviewStatus != entity.ReviewStatusCancelled {
		t.Errorf("expected original cancelled, got %s", original.ReviewStatus)
	}
}

// TestReviewerDashboard verifies pending assignments and overdue counts
// for the logged-in reviewer.
func TestReviewerDashboard(t *testing.T) {
	env := setupReviewTest(t)

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	reviewer := testutil.SeedTestUser(t, env.DB, "rev-dash", "Dashboard Reviewer", "Engineering")
	req := testutil.SeedTestRequest(t, env.DB, "req-dash-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001", "PN-002")

	for _, itemID := range []string{req.Items[0].ID, req.Items[1].ID} {
		review := &entity.ReviewAssignment{
			ID:           req.ID + "-rv-" + itemID,
			RequestID:    req.ID,
			ItemID:       itemID,
			ReviewerID:   reviewer.ID,
			ReviewStatus: entity.ReviewStatusAssigned,
			Priority:     entity.ReviewPriorityNormal,
		}
		if err := env.DB.Create(review).Error; err != nil {
			t.Fatalf("Failed to seed review: %v", err)
		}
	}

	token := testutil.GenerateTestToken(reviewer.ID, reviewer.Name, reviewer.Email, nil, nil)
	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/reviews/dashboard", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["pending_count"].(float64) != 2 {
		t.Errorf("expected 2 pending, got %v", data["pending_count"])
	}
}

// TestBulkItemReviews verifies the grouped bulk lookup.
func TestBulkItemReviews(t *testing.T) {
	env := setupReviewTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestUser(t, env.DB, "rev-1", "Reviewer", "Engineering")
	req := testutil.SeedTestRequest(t, env.DB, "req-bulk-rv", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001", "PN-002")

	review := &entity.ReviewAssignment{
		ID:           "rv-grouped-1",
		RequestID:    req.ID,
		ItemID:       req.Items[0].ID,
		ReviewerID:   "rev-1",
		ReviewStatus: entity.ReviewStatusAssigned,
		Priority:     entity.ReviewPriorityNormal,
	}
	if err := env.DB.Create(review).Error; err != nil {
		t.Fatalf("Failed to seed review: %v", err)
	}

	body := map[string]interface{}{"item_ids": []string{req.Items[0].ID, req.Items[1].ID}}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/reviews/bulk-items", body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if got := data[req.Items[0].ID]; got == nil || len(got.([]interface{})) != 1 {
		t.Errorf("expected 1 review for first item, got %v", got)
	}
	if got, ok := data[req.Items[1].ID]; ok && got != nil && len(got.([]interface{})) != 0 {
		t.Errorf("expected no reviews for second item, got %v", got)
	}
}
