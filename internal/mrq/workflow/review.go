package workflow

import (
	"encoding/json"
	"time"
)

// 评审状态常量
const (
	ReviewStatusAssigned  = "assigned"
	ReviewStatusPending   = "pending_review"
	ReviewStatusReviewed  = "reviewed"
	ReviewStatusCompleted = "completed"
	ReviewStatusCancelled = "cancelled"
)

// 评审结论常量
const (
	ReviewDecisionApproved           = "approved"
	ReviewDecisionRejected           = "rejected"
	ReviewDecisionNeedsClarification = "needs_clarification"
)

// 评审超期阈值（固定业务常量，不可配置）
const (
	reviewOverdueHighDays    = 2
	reviewOverdueDefaultDays = 5
)

// ReviewInfo 参与聚合的单条评审记录
type ReviewInfo struct {
	ID         string
	Status     string
	Decision   string
	Reviewer   string
	Department string
	AssignedAt time.Time
}

// ReviewBuckets 评审聚合结果，按处理状态分桶
type ReviewBuckets struct {
	Pending   []ReviewInfo
	Overdue   []ReviewInfo
	Completed []ReviewInfo
}

// PendingTotal 未完结评审总数（含超期）
func (b ReviewBuckets) PendingTotal() int {
	return len(b.Pending) + len(b.Overdue)
}

// AggregateReviews 将原始评审记录按 pending/overdue/completed 分桶。
// 超期判定使用请求优先级：high 超过 2 天，其余超过 5 天。
// 已取消的评审既不算未完结也不算已完成，直接忽略。
func AggregateReviews(reviews []ReviewInfo, requestPriority string, now time.Time) ReviewBuckets {
	var buckets ReviewBuckets
	for _, r := range reviews {
		switch r.Status {
		case ReviewStatusPending, ReviewStatusAssigned:
			if isReviewOverdue(r, requestPriority, now) {
				buckets.Overdue = append(buckets.Overdue, r)
			} else {
				buckets.Pending = append(buckets.Pending, r)
			}
		case ReviewStatusReviewed, ReviewStatusCompleted:
			buckets.Completed = append(buckets.Completed, r)
		}
	}
	return buckets
}

func isReviewOverdue(r ReviewInfo, requestPriority string, now time.Time) bool {
	if r.AssignedAt.IsZero() {
		return false
	}
	days := int(now.Sub(r.AssignedAt).Hours() / 24)
	if requestPriority == "high" && days > reviewOverdueHighDays {
		return true
	}
	return days > reviewOverdueDefaultDays
}

// rawReviewDetail 请求记录上内嵌的 review_details 载荷形态。
// 后端返回的时间戳是字符串，assigned_at 缺失时回退 created_at。
type rawReviewDetail struct {
	ID           string `json:"id"`
	ReviewStatus string `json:"review_status"`
	Decision     string `json:"review_decision"`
	ReviewerName string `json:"reviewer_name"`
	Department   string `json:"department"`
	AssignedAt   string `json:"assigned_at"`
	CreatedAt    string `json:"created_at"`
}

// ParseReviewDetails 解析请求上内嵌的 review_details JSON。
// 载荷可能缺失、为空或格式损坏，一律按"无评审"处理，绝不向调用方抛错。
func ParseReviewDetails(raw string) []ReviewInfo {
	if raw == "" {
		return nil
	}

	var details []rawReviewDetail
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil
	}

	reviews := make([]ReviewInfo, 0, len(details))
	for _, d := range details {
		assignedAt := parseReviewTime(d.AssignedAt)
		if assignedAt.IsZero() {
			assignedAt = parseReviewTime(d.CreatedAt)
		}
		reviews = append(reviews, ReviewInfo{
			ID:         d.ID,
			Status:     d.ReviewStatus,
			Decision:   d.Decision,
			Reviewer:   d.ReviewerName,
			Department: d.Department,
			AssignedAt: assignedAt,
		})
	}
	return reviews
}

var reviewTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseReviewTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range reviewTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
