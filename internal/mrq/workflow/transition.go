package workflow

import "fmt"

// TransitionKind 队列移动方向
type TransitionKind string

const (
	TransitionSame     TransitionKind = "same"
	TransitionForward  TransitionKind = "forward"
	TransitionBackward TransitionKind = "backward"
)

// ErrSameQueue 目标队列与当前队列相同
var ErrSameQueue = fmt.Errorf("request is already in the target queue")

// queueOrder 工作流的规范顺序，移动方向按此索引判定
var queueOrder = []string{QueueValidation, QueueReadyPicking, QueueInPicking, QueueComplete}

// recommendedTransitions 推荐的下一步移动
var recommendedTransitions = map[string][]string{
	QueueValidation:   {QueueReadyPicking},
	QueueReadyPicking: {QueueInPicking},
	QueueInPicking:    {QueueComplete},
	QueueComplete:     {},
}

// Transition 一次队列移动的判定结果
type Transition struct {
	Kind                 TransitionKind `json:"kind"`
	Recommended          bool           `json:"recommended"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Warning              string         `json:"warning,omitempty"`
}

// QueueIndex 队列在规范顺序中的位置，未知队列返回 -1
func QueueIndex(queue string) int {
	for i, q := range queueOrder {
		if q == queue {
			return i
		}
	}
	return -1
}

// EvaluateTransition 判定一次手工队列移动。
// 向后移动和跳步的向前移动都必须先拿到操作者的明确确认，
// 判定本身不发起任何后端调用。
func EvaluateTransition(current, target string, state RequestState) (Transition, error) {
	currentIdx := QueueIndex(current)
	targetIdx := QueueIndex(target)
	if currentIdx < 0 {
		return Transition{}, fmt.Errorf("unknown queue: %s", current)
	}
	if targetIdx < 0 {
		return Transition{}, fmt.Errorf("unknown queue: %s", target)
	}
	if current == target {
		return Transition{Kind: TransitionSame}, ErrSameQueue
	}

	if targetIdx < currentIdx {
		return Transition{
			Kind:                 TransitionBackward,
			RequiresConfirmation: true,
			Warning:              movementWarning(current, target, state),
		}, nil
	}

	t := Transition{Kind: TransitionForward, Recommended: isRecommended(current, target)}
	if !t.Recommended {
		// 跳过中间阶段的前进也要确认
		t.RequiresConfirmation = true
		t.Warning = movementWarning(current, target, state)
	}
	return t, nil
}

func isRecommended(current, target string) bool {
	for _, q := range recommendedTransitions[current] {
		if q == target {
			return true
		}
	}
	return false
}

// movementWarning 为越规移动生成具体的风险提示
func movementWarning(from, to string, state RequestState) string {
	switch from + "->" + to {
	case "validation->in_picking":
		return fmt.Sprintf("Moving directly from Validation to In Picking skips the Ready for Picking stage.\n\nCurrent validation: %d%%\nPending validations: %d\n\nThis may cause picking issues if validation is incomplete.",
			state.ValidationProgress, state.PendingValidations)
	case "validation->complete":
		return "Moving directly from Validation to Complete skips normal picking workflow.\n\nThis should only be done for cancelled or special cases."
	case "ready_picking->validation":
		return "Moving back from Ready for Picking to Validation.\n\nThis may indicate validation issues were found after approval."
	case "in_picking->validation":
		return "Moving from In Picking back to Validation.\n\nThis typically indicates serious issues found during picking that require re-validation."
	case "complete->validation", "complete->ready_picking", "complete->in_picking":
		return "Reopening a completed request.\n\nThis will make the request active again and may affect reporting."
	default:
		return fmt.Sprintf("This movement doesn't follow the normal workflow sequence.\n\nFrom: %s\nTo: %s\n\nPlease verify this is the intended action.", from, to)
	}
}
