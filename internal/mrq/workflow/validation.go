package workflow

// 物料项校验状态常量
const (
	ItemStatusNone               = "none"
	ItemStatusPending            = "pending"
	ItemStatusApproved           = "approved"
	ItemStatusRejected           = "rejected"
	ItemStatusPendingReview      = "pending_review"
	ItemStatusNeedsClarification = "needs_clarification"
	ItemStatusMixed              = "mixed"
)

// ResolveItemStatus 把单个物料项的评审记录和自身校验状态合并为一个结论。
//
// 多评审优先级（从高到低，必须严格按序判定）：
//  1. 存在未完结评审 → pending_review。进行中的评审永远压过上一轮的
//     拒绝或澄清结论，这样重新送审可以覆盖之前的拒绝。
//  2. 存在 needs_clarification 结论 → needs_clarification
//  3. 存在 rejected 结论 → rejected
//  4. 全部已完成评审均为 approved 且至少一条 → approved
//  5. 兜底 → mixed
//
// 没有任何评审时直接返回物料项自身的 validationStatus。
func ResolveItemStatus(validationStatus string, reviews []ReviewInfo) string {
	if len(reviews) == 0 {
		if validationStatus == "" {
			return ItemStatusNone
		}
		return validationStatus
	}

	var pending, rejected, clarification, approved int
	for _, r := range reviews {
		switch {
		case r.Status == ReviewStatusPending || r.Status == ReviewStatusAssigned:
			pending++
		case isReviewedStatus(r.Status) && r.Decision == "":
			// 已评审但没有结论的记录仍视为进行中
			pending++
		case isReviewedStatus(r.Status) && r.Decision == ReviewDecisionRejected:
			rejected++
		case isReviewedStatus(r.Status) && r.Decision == ReviewDecisionNeedsClarification:
			clarification++
		case isReviewedStatus(r.Status) && r.Decision == ReviewDecisionApproved:
			approved++
		}
	}

	switch {
	case pending > 0:
		return ItemStatusPendingReview
	case clarification > 0:
		return ItemStatusNeedsClarification
	case rejected > 0:
		return ItemStatusRejected
	case approved > 0 && rejected == 0 && clarification == 0:
		return ItemStatusApproved
	default:
		return ItemStatusMixed
	}
}

func isReviewedStatus(status string) bool {
	return status == ReviewStatusReviewed || status == ReviewStatusCompleted
}

// ItemReviewCounts 单个物料项的评审计数
type ItemReviewCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}

// CountItemReviews 统计单个物料项各结论的评审数量
func CountItemReviews(reviews []ReviewInfo) ItemReviewCounts {
	counts := ItemReviewCounts{Total: len(reviews)}
	for _, r := range reviews {
		switch {
		case r.Status == ReviewStatusPending || r.Status == ReviewStatusAssigned:
			counts.Pending++
		case isReviewedStatus(r.Status) && r.Decision == ReviewDecisionApproved:
			counts.Approved++
		case isReviewedStatus(r.Status) && r.Decision == ReviewDecisionRejected:
			counts.Rejected++
		}
	}
	return counts
}
