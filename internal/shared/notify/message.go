package notify

import "context"

// 消息类型常量
const (
	MessageReviewAssigned  = "review_assigned"
	MessageReviewCancelled = "review_cancelled"
	MessageReviewReminder  = "review_reminder"
	MessageClarification   = "clarification_request"
	MessageStatusChanged   = "request_status_changed"
)

// Message 发往通知网关的消息
type Message struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	LinkPath   string            `json:"link_path,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Send 发送一条消息。
// 调用方负责吞掉错误：通知失败绝不能影响主操作。
func (c *Client) Send(ctx context.Context, msg *Message) error {
	return c.doRequest(ctx, "POST", "/api/v1/messages", msg, nil)
}

// ReviewContext 评审类消息的上下文字段
type ReviewContext struct {
	RequestNumber string
	PartNumber    string
	Department    string
	Note          string
	Priority      string
	DueDate       string
}

// NewReviewAssignedMessage 构造评审指派通知
func NewReviewAssignedMessage(reviewerID string, rc ReviewContext) *Message {
	return &Message{
		Type:     MessageReviewAssigned,
		UserID:   reviewerID,
		Title:    "Review assigned: " + rc.RequestNumber,
		Body:     "You have been assigned to review part " + rc.PartNumber + " on material request " + rc.RequestNumber + ".",
		LinkPath: "/operations/material-request/" + rc.RequestNumber,
		Attributes: map[string]string{
			"part_number": rc.PartNumber,
			"department":  rc.Department,
			"priority":    rc.Priority,
			"due_date":    rc.DueDate,
			"note":        rc.Note,
		},
	}
}

// NewReviewCancelledMessage 构造评审取消通知
func NewReviewCancelledMessage(reviewerID string, rc ReviewContext) *Message {
	return &Message{
		Type:   MessageReviewCancelled,
		UserID: reviewerID,
		Title:  "Review cancelled: " + rc.RequestNumber,
		Body:   "Your review of part " + rc.PartNumber + " on material request " + rc.RequestNumber + " was cancelled.",
		Attributes: map[string]string{
			"part_number": rc.PartNumber,
		},
	}
}

// NewReviewReminderMessage 构造评审催办通知
func NewReviewReminderMessage(reviewerID string, rc ReviewContext) *Message {
	return &Message{
		Type:     MessageReviewReminder,
		UserID:   reviewerID,
		Title:    "Review reminder: " + rc.RequestNumber,
		Body:     "Your review of part " + rc.PartNumber + " on material request " + rc.RequestNumber + " is still pending.",
		LinkPath: "/operations/material-request/" + rc.RequestNumber,
		Attributes: map[string]string{
			"part_number": rc.PartNumber,
			"due_date":    rc.DueDate,
		},
	}
}

// NewClarificationMessage 构造澄清请求通知
func NewClarificationMessage(userID string, rc ReviewContext) *Message {
	return &Message{
		Type:   MessageClarification,
		UserID: userID,
		Title:  "Clarification requested: " + rc.RequestNumber,
		Body:   rc.Note,
		Attributes: map[string]string{
			"part_number": rc.PartNumber,
			"department":  rc.Department,
		},
	}
}
