package workflow

import "time"

// 队列标识常量，看板列与此一一对应
const (
	QueueValidation   = "validation"
	QueueReadyPicking = "ready_picking"
	QueueInPicking    = "in_picking"
	QueueComplete     = "complete"
)

// DefaultRecentWindowDays 完结请求在看板上保留的默认天数
const DefaultRecentWindowDays = 14

// RequestState 队列判定所需的请求快照
type RequestState struct {
	Status             string
	Priority           string
	ValidationProgress int
	PendingValidations int
	CompletedAt        *time.Time
	DeliveredAt        *time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
}

// ClassifyQueue 根据请求当前状态推导它所属的队列。
// 队列是纯推导结果，每次读取时重新计算，绝不落库。
// 返回 ok=false 表示请求不出现在任何队列（从看板隐藏）。
//
// 判定按序进行，先命中先生效：
//  1. 已完结状态只在近期窗口内显示，超窗或缺完结时间则隐藏
//  2. 拣货中状态进 in_picking
//  3. approved/ready_for_picking 且校验 100% 完成且无待校验项进 ready_picking
//  4. 其余一律进 validation，包括新请求、部分校验、有未完结评审、
//     以及 status 与校验进度不一致的请求
//
// 校验完整性对队列归属的话语权高于原始 status 字段，上游提前把
// status 翻成 approved 也不会让未审完的请求流到拣货区。
func ClassifyQueue(req RequestState, recentWindowDays int, now time.Time) (string, bool) {
	if recentWindowDays <= 0 {
		recentWindowDays = DefaultRecentWindowDays
	}

	switch req.Status {
	case "complete", "delivered", "closed":
		completedAt := completionTime(req)
		if completedAt == nil {
			return "", false
		}
		days := int(now.Sub(*completedAt).Hours() / 24)
		if days <= recentWindowDays {
			return QueueComplete, true
		}
		return "", false
	case "picking", "being_picked":
		return QueueInPicking, true
	case "approved", "ready_for_picking":
		if req.ValidationProgress == 100 && req.PendingValidations == 0 {
			return QueueReadyPicking, true
		}
	}
	return QueueValidation, true
}

func completionTime(req RequestState) *time.Time {
	if req.CompletedAt != nil {
		return req.CompletedAt
	}
	if req.DeliveredAt != nil {
		return req.DeliveredAt
	}
	return req.ClosedAt
}

// StatusForQueue 请求被移入某队列时应写回的原始状态
func StatusForQueue(queue string) string {
	switch queue {
	case QueueReadyPicking:
		return "approved"
	case QueueInPicking:
		return "in_progress"
	case QueueComplete:
		return "complete"
	default:
		return "pending_validation"
	}
}

// 请求级超期阈值（看板展示用，按优先级区分）
var requestOverdueDays = map[string]int{
	"high":   2,
	"medium": 5,
	"low":    10,
}

// IsRequestOverdue 判断请求自创建起是否已超期
func IsRequestOverdue(priority string, createdAt time.Time, now time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	threshold, ok := requestOverdueDays[priority]
	if !ok {
		threshold = 7
	}
	return int(now.Sub(createdAt).Hours()/24) > threshold
}
