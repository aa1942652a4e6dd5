// Package deploys classifies deploy lists and decides which deploy the
// tray should treat as current.
package deploys

import "github.com/deploybar/deploybar/internal/api"

// IsPending reports whether the state is an in-progress state.
func IsPending(state api.DeployState) bool {
	switch state {
	case api.DeployStateNew,
		api.DeployStateEnqueued,
		api.DeployStatePreparing,
		api.DeployStateBuilding,
		api.DeployStateUploading,
		api.DeployStateProcessing:
		return true
	}
	return false
}

// IsReady reports whether the state is a completed, published state.
func IsReady(state api.DeployState) bool {
	return state == api.DeployStateReady || state == api.DeployStateCurrent
}

// Partition splits deploys into pending and ready groups, preserving the
// input order inside each group. Error deploys fall into neither group.
func Partition(all []api.Deploy) (pending, ready []api.Deploy) {
	for _, d := range all {
		switch {
		case IsPending(d.State):
			pending = append(pending, d)
		case IsReady(d.State):
			ready = append(ready, d)
		}
	}
	return pending, ready
}

// ChooseCurrent selects the deploy the UI should surface: the last pending
// deploy (most recently queued), else the first ready deploy (most recent
// completed), else nil. A nil result means the caller must leave previous
// state untouched (fresh accounts have no deploys yet).
func ChooseCurrent(pending, ready []api.Deploy) *api.Deploy {
	if len(pending) > 0 {
		d := pending[len(pending)-1]
		return &d
	}
	if len(ready) > 0 {
		d := ready[0]
		return &d
	}
	return nil
}
