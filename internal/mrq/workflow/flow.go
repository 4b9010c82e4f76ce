package workflow

import "fmt"

// 业务流类型与对应动作
const (
	FlowAllApproved  = "all_approved"
	FlowAllRejected  = "all_rejected"
	FlowMixedResults = "mixed_results"

	FlowActionPicking        = "picking"
	FlowActionComplete       = "complete"
	FlowActionPartialPicking = "partial_picking"
)

// BusinessFlow 整单请求的终局处理决议。
// 只描述调用方接下来该执行什么动作，自身不执行任何动作，
// 这样确认界面和测试都可以拿到决议做演练。
type BusinessFlow struct {
	Type           string `json:"type"`
	Action         string `json:"action"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	ConfirmText    string `json:"confirm_text"`
	SuccessMessage string `json:"success_message"`
	ApprovedItems  int    `json:"approved_items"`
	RejectedItems  int    `json:"rejected_items"`
}

// ErrUnresolvedItems 还有物料项没有终局结论，不能做整单决议
var ErrUnresolvedItems = fmt.Errorf("request has items without a terminal decision")

// ResolveBusinessFlow 根据各物料项的终局结论决定整单动作。
// 只能在每个物料项都已是 approved 或 rejected 之后调用；
// approvedCount+rejectedCount 必须等于 totalItems，否则报错。
//
// 混合结果不会阻塞整单：通过的项去拣货，拒绝的项各自关单。
func ResolveBusinessFlow(approvedCount, rejectedCount, totalItems int) (*BusinessFlow, error) {
	if totalItems == 0 {
		return nil, fmt.Errorf("request has no items")
	}
	if approvedCount+rejectedCount != totalItems {
		return nil, ErrUnresolvedItems
	}

	switch {
	case approvedCount == 0:
		return &BusinessFlow{
			Type:           FlowAllRejected,
			Action:         FlowActionComplete,
			Title:          "All Items Rejected",
			Description:    fmt.Sprintf("All %d items have been rejected. The material request will be marked as complete with no items sent to picking.", totalItems),
			ConfirmText:    "Mark as Complete",
			SuccessMessage: "Material request completed - all items were rejected.",
			ApprovedItems:  0,
			RejectedItems:  rejectedCount,
		}, nil
	case rejectedCount == 0:
		return &BusinessFlow{
			Type:           FlowAllApproved,
			Action:         FlowActionPicking,
			Title:          "All Items Approved",
			Description:    fmt.Sprintf("All %d items have been approved and will be sent to picking.", totalItems),
			ConfirmText:    "Send to Picking",
			SuccessMessage: "Successfully sent all items to picking.",
			ApprovedItems:  approvedCount,
			RejectedItems:  0,
		}, nil
	default:
		return &BusinessFlow{
			Type:           FlowMixedResults,
			Action:         FlowActionPartialPicking,
			Title:          "Mixed Results",
			Description:    fmt.Sprintf("%d items approved (will go to picking), %d items rejected (will be marked as complete).", approvedCount, rejectedCount),
			ConfirmText:    "Process Results",
			SuccessMessage: fmt.Sprintf("Successfully processed: %d items sent to picking, %d items completed as rejected.", approvedCount, rejectedCount),
			ApprovedItems:  approvedCount,
			RejectedItems:  rejectedCount,
		}, nil
	}
}
