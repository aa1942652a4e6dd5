package deploys

import (
	"fmt"

	"github.com/deploybar/deploybar/internal/api"
)

// Notification describes a user-facing desktop notification for a deploy
// transition.
type Notification struct {
	Title   string
	Message string
	URL     string
}

// ShouldNotify decides whether the transition from prev to current deserves
// a desktop notification. It returns false when there was no previous
// deploy (first cycle after startup or site switch) and for churn between
// intermediate pending phases; only entry into building, ready or error is
// user-meaningful.
func ShouldNotify(prev, current *api.Deploy) bool {
	if prev == nil || current == nil {
		return false
	}
	if prev.ID == current.ID && prev.State == current.State {
		return false
	}

	switch current.State {
	case api.DeployStateBuilding, api.DeployStateReady, api.DeployStateCurrent, api.DeployStateError:
		return true
	}
	return false
}

// BuildNotification renders the notification for a deploy's state.
func BuildNotification(siteName string, d *api.Deploy) Notification {
	n := Notification{URL: d.PageURL()}

	branch := d.Branch
	if branch == "" {
		branch = "unknown branch"
	}

	switch d.State {
	case api.DeployStateBuilding:
		n.Title = fmt.Sprintf("%s: deploy started", siteName)
		n.Message = fmt.Sprintf("Building %s", branch)
	case api.DeployStateReady, api.DeployStateCurrent:
		n.Title = fmt.Sprintf("%s: deploy is live", siteName)
		if d.DeployTime > 0 {
			n.Message = fmt.Sprintf("%s deployed in %ds", branch, d.DeployTime)
		} else {
			n.Message = fmt.Sprintf("%s deployed", branch)
		}
	case api.DeployStateError:
		n.Title = fmt.Sprintf("%s: deploy failed", siteName)
		if d.ErrorMessage != "" {
			n.Message = d.ErrorMessage
		} else {
			n.Message = fmt.Sprintf("Deploy of %s failed", branch)
		}
	default:
		n.Title = fmt.Sprintf("%s: deploy %s", siteName, d.State)
		n.Message = branch
	}

	return n
}
