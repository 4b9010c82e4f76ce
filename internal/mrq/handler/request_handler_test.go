package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/entity"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/repository"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/service"
	"github.com/ritzdacanay24/the-fi-company-mrq/internal/mrq/testutil"
	"go.uber.org/zap"
)

func setupRequestTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	logger := zap.NewNop()

	requestSvc := service.NewRequestService(repos.Request, repos.Item, nil, nil, logger)
	validationSvc := service.NewValidationService(db, repos.Item, repos.Request, logger)
	validationSvc.SetRequestService(requestSvc)
	exportSvc := service.NewExportService(requestSvc)
	h := NewRequestHandler(requestSvc, validationSvc, exportSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/mrq")
	api.GET("/board", h.Board)
	api.GET("/board/export", h.ExportBoard)
	api.GET("/requests", h.List)
	api.POST("/requests", h.Create)
	api.GET("/requests/:id", h.Get)
	api.PATCH("/requests/:id/status", h.UpdateStatus)
	api.GET("/requests/:id/flow", h.AnalyzeFlow)
	api.POST("/requests/:id/flow", h.ExecuteFlow)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

// TestCreateAndGetRequest tests creating a request and reading its detail.
func TestCreateAndGetRequest(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	body := map[string]interface{}{
		"priority":   "high",
		"department": "Operations",
		"items": []map[string]interface{}{
			{"part_number": "PN-100", "description": "bracket", "quantity": 2},
			{"part_number": "PN-200"},
		},
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/requests", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	id := data["id"].(string)
	if data["status"] != entity.RequestStatusPendingValidation {
		t.Errorf("expected pending_validation, got %v", data["status"])
	}
	if data["pending_validations"].(float64) != 2 {
		t.Errorf("expected 2 pending validations, got %v", data["pending_validations"])
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/requests/"+id, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	detail := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if detail["queue"] != "validation" {
		t.Errorf("expected validation queue, got %v", detail["queue"])
	}
	items := detail["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["resolved_status"] != "pending" {
		t.Errorf("expected resolved pending, got %v", first["resolved_status"])
	}
}

// TestBoardColumns verifies that an approved request with full validation
// progress and no open validations lands in the ready_picking column.
func TestBoardColumns(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestRequest(t, env.DB, "req-val-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001")
	testutil.SeedTestRequest(t, env.DB, "req-ready-1", "user-1",
		entity.RequestStatusApproved, entity.RequestPriorityMedium, "PN-002")
	env.DB.Model(&entity.MaterialRequest{}).Where("id = ?", "req-ready-1").
		Updates(map[string]interface{}{"validation_progress": 100, "pending_validations": 0})
	testutil.SeedTestRequest(t, env.DB, "req-pick-1", "user-1",
		entity.RequestStatusPicking, entity.RequestPriorityMedium, "PN-003")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/board", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	columns := data["columns"].([]interface{})
	if len(columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(columns))
	}

	counts := map[string]float64{}
	for _, raw := range columns {
		col := raw.(map[string]interface{})
		counts[col["id"].(string)] = col["count"].(float64)
	}
	if counts["validation"] != 1 {
		t.Errorf("expected 1 in validation, got %v", counts["validation"])
	}
	if counts["ready_picking"] != 1 {
		t.Errorf("expected 1 in ready_picking, got %v", counts["ready_picking"])
	}
	if counts["in_picking"] != 1 {
		t.Errorf("expected 1 in in_picking, got %v", counts["in_picking"])
	}
}

// TestBoardHidesStaleCompleted verifies completed requests older than the
// recency window drop off the board into the hidden tally.
func TestBoardHidesStaleCompleted(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestRequest(t, env.DB, "req-old-1", "user-1",
		entity.RequestStatusComplete, entity.RequestPriorityMedium, "PN-001")
	stale := time.Now().AddDate(0, 0, -30)
	env.DB.Model(&entity.MaterialRequest{}).Where("id = ?", "req-old-1").
		Update("completed_at", stale)

	testutil.SeedTestRequest(t, env.DB, "req-new-1", "user-1",
		entity.RequestStatusComplete, entity.RequestPriorityMedium, "PN-002")
	env.DB.Model(&entity.MaterialRequest{}).Where("id = ?", "req-new-1").
		Update("completed_at", time.Now().AddDate(0, 0, -2))

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/board", nil, token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["hidden"].(float64) != 1 {
		t.Errorf("expected 1 hidden request, got %v", data["hidden"])
	}
	for _, raw := range data["columns"].([]interface{}) {
		col := raw.(map[string]interface{})
		if col["id"] == "complete" && col["count"].(float64) != 1 {
			t.Errorf("expected 1 recent complete, got %v", col["count"])
		}
	}
}

// TestStatusUpdateBackwardNeedsConfirmation verifies a backward queue move
// is refused with a warning until the caller confirms.
func TestStatusUpdateBackwardNeedsConfirmation(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestRequest(t, env.DB, "req-move-1", "user-1",
		entity.RequestStatusPicking, entity.RequestPriorityMedium, "PN-001")

	// Backward move without confirmation: 409, nothing written
	body := map[string]interface{}{"queue": "validation"}
	w := testutil.DoRequest(env.Router, http.MethodPatch, "/api/v1/mrq/requests/req-move-1/status", body, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["requires_confirmation"] != true {
		t.Errorf("expected requires_confirmation true")
	}
	transition := data["transition"].(map[string]interface{})
	if transition["warning"] == "" || transition["warning"] == nil {
		t.Errorf("expected a warning message")
	}

	var unchanged entity.MaterialRequest
	env.DB.Where("id = ?", "req-move-1").First(&unchanged)
	if unchanged.Status != entity.RequestStatusPicking {
		t.Errorf("unconfirmed move must not write, got status %s", unchanged.Status)
	}

	// Confirmed move goes through
	body["confirm"] = true
	w = testutil.DoRequest(env.Router, http.MethodPatch, "/api/v1/mrq/requests/req-move-1/status", body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var moved entity.MaterialRequest
	env.DB.Where("id = ?", "req-move-1").First(&moved)
	if moved.Status != entity.RequestStatusPendingValidation {
		t.Errorf("expected pending_validation after confirmed move, got %s", moved.Status)
	}
}

// TestStatusUpdateForwardStep verifies a recommended single-step forward
// move needs no confirmation.
func TestStatusUpdateForwardStep(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestRequest(t, env.DB, "req-fwd-1", "user-1",
		entity.RequestStatusApproved, entity.RequestPriorityMedium, "PN-001")
	env.DB.Model(&entity.MaterialRequest{}).Where("id = ?", "req-fwd-1").
		Updates(map[string]interface{}{"validation_progress": 100, "pending_validations": 0})

	body := map[string]interface{}{"queue": "in_picking"}
	w := testutil.DoRequest(env.Router, http.MethodPatch, "/api/v1/mrq/requests/req-fwd-1/status", body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var moved entity.MaterialRequest
	env.DB.Where("id = ?", "req-fwd-1").First(&moved)
	if moved.Status != entity.RequestStatusInProgress {
		t.Errorf("expected in_progress, got %s", moved.Status)
	}
}

// TestBusinessFlowExecution tests flow analysis and execution for a request
// with mixed validation results.
func TestBusinessFlowExecution(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	req := testutil.SeedTestRequest(t, env.DB, "req-flow-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001", "PN-002")

	// Unresolved items block the flow
	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/requests/req-flow-1/flow", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with unresolved items, got %d: %s", w.Code, w.Body.String())
	}

	env.DB.Model(&entity.MaterialRequestItem{}).Where("id = ?", req.Items[0].ID).
		Update("validation_status", entity.ItemValidationApproved)
	env.DB.Model(&entity.MaterialRequestItem{}).Where("id = ?", req.Items[1].ID).
		Update("validation_status", entity.ItemValidationRejected)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/requests/req-flow-1/flow", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	flow := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if flow["type"] != "mixed_results" {
		t.Errorf("expected mixed_results, got %v", flow["type"])
	}
	if flow["action"] != "partial_picking" {
		t.Errorf("expected partial_picking, got %v", flow["action"])
	}

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mrq/requests/req-flow-1/flow", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated entity.MaterialRequest
	env.DB.Where("id = ?", "req-flow-1").First(&updated)
	if updated.Status != entity.RequestStatusPicking {
		t.Errorf("expected picking after partial flow, got %s", updated.Status)
	}
	if updated.ValidatedAt == nil {
		t.Errorf("expected validated_at set")
	}
}

// TestExportBoard smoke-tests the Excel export endpoint.
func TestExportBoard(t *testing.T) {
	env := setupRequestTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedTestUser(t, env.DB, "user-1", "Requester", "Operations")
	testutil.SeedTestRequest(t, env.DB, "req-exp-1", "user-1",
		entity.RequestStatusPendingValidation, entity.RequestPriorityMedium, "PN-001")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mrq/board/export", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Errorf("expected non-empty workbook body")
	}
}
