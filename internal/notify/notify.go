// Package notify wraps Windows toast notifications for the supplemented
// "alert on orphan pair" UX (SPEC_FULL.md section 3), adapted from
// internal/notifications/toast.go's ToastNotifier.
package notify

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"
)

// Notifier fires desktop toast alerts. Outside Windows nothing is shown
// and every Notify* call returns an error (spec
// carries no cross-platform notification requirement; this is purely
// additive UX per SPEC_FULL.md).
type Notifier struct {
	appID string
}

// New returns a Notifier tagged with appID ("agentgov" if empty).
func New(appID string) *Notifier {
	if appID == "" {
		appID = "agentgov"
	}
	return &Notifier{appID: appID}
}

// IsSupported reports whether this platform can display a toast.
func (n *Notifier) IsSupported() bool { return runtime.GOOS == "windows" }

// NotifyOrphanPair fires when the interception hook (C8) fails between
// steps 4-6 and leaves a tombstoned review row (spec.md section 4.8's
// orphan_pair kind): a human operator should notice before the next
// get_task_review_status poll.
func (n *Notifier) NotifyOrphanPair(implTaskID, reviewTaskID string) error {
	if !n.IsSupported() {
		return fmt.Errorf("toast notifications only supported on Windows")
	}
	notification := toast.Notification{
		AppID:   n.appID,
		Title:   "Governance pair orphaned",
		Message: fmt.Sprintf("Implementation task %s is blocked by a tombstoned review %s. Operator action required.", implTaskID, reviewTaskID),
		Audio:   toast.IM,
	}
	return notification.Push()
}

// NotifyNeedsHumanReview fires when complete_task_review resolves a
// governed review to needs_human_review, surfacing it immediately rather
// than only on the next poll.
func (n *Notifier) NotifyNeedsHumanReview(taskID, guidance string) error {
	if !n.IsSupported() {
		return fmt.Errorf("toast notifications only supported on Windows")
	}
	notification := toast.Notification{
		AppID:   n.appID,
		Title:   "Task needs human review",
		Message: fmt.Sprintf("Task %s: %s", taskID, guidance),
		Audio:   toast.Default,
	}
	return notification.Push()
}
