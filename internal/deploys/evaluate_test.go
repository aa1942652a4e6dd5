package deploys

import (
	"testing"

	"github.com/deploybar/deploybar/internal/api"
)

func mkDeploy(id string, state api.DeployState) api.Deploy {
	return api.Deploy{ID: api.FlexibleID(id), State: state}
}

func TestPartition(t *testing.T) {
	all := []api.Deploy{
		mkDeploy("a", api.DeployStateReady),
		mkDeploy("b", api.DeployStateBuilding),
		mkDeploy("c", api.DeployStateError),
		mkDeploy("d", api.DeployStateEnqueued),
		mkDeploy("e", api.DeployStateCurrent),
	}

	pending, ready := Partition(all)

	if len(pending) != 2 || pending[0].ID != "b" || pending[1].ID != "d" {
		t.Errorf("Partition pending = %v, want [b d]", ids(pending))
	}
	if len(ready) != 2 || ready[0].ID != "a" || ready[1].ID != "e" {
		t.Errorf("Partition ready = %v, want [a e]", ids(ready))
	}
}

func TestChooseCurrent(t *testing.T) {
	tests := []struct {
		name    string
		pending []api.Deploy
		ready   []api.Deploy
		want    string // deploy ID, "" for nil
	}{
		{
			name:    "last of pending wins",
			pending: []api.Deploy{mkDeploy("A", api.DeployStateBuilding), mkDeploy("B", api.DeployStateEnqueued)},
			ready:   []api.Deploy{mkDeploy("C", api.DeployStateReady)},
			want:    "B",
		},
		{
			name:  "first of ready when nothing pending",
			ready: []api.Deploy{mkDeploy("C", api.DeployStateReady), mkDeploy("D", api.DeployStateReady)},
			want:  "C",
		},
		{
			name:    "single pending",
			pending: []api.Deploy{mkDeploy("A", api.DeployStateUploading)},
			want:    "A",
		},
		{
			name: "empty account has no current deploy",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChooseCurrent(tt.pending, tt.ready)

			if tt.want == "" {
				if got != nil {
					t.Errorf("ChooseCurrent() = %v, want nil", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatalf("ChooseCurrent() = nil, want %s", tt.want)
			}
			if got.ID.String() != tt.want {
				t.Errorf("ChooseCurrent() = %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestIsPendingAndIsReadyAreDisjoint(t *testing.T) {
	states := []api.DeployState{
		api.DeployStateNew, api.DeployStateEnqueued, api.DeployStatePreparing,
		api.DeployStateBuilding, api.DeployStateUploading, api.DeployStateProcessing,
		api.DeployStateReady, api.DeployStateCurrent, api.DeployStateError,
	}

	for _, s := range states {
		if IsPending(s) && IsReady(s) {
			t.Errorf("state %s classified as both pending and ready", s)
		}
	}

	if IsPending(api.DeployStateError) || IsReady(api.DeployStateError) {
		t.Error("error state must be in neither group")
	}
}

func ids(deploys []api.Deploy) []string {
	out := make([]string, len(deploys))
	for i, d := range deploys {
		out[i] = d.ID.String()
	}
	return out
}
