package deploys

import (
	"strings"
	"testing"

	"github.com/deploybar/deploybar/internal/api"
)

func TestShouldNotify(t *testing.T) {
	building := mkDeploy("x", api.DeployStateBuilding)
	ready := mkDeploy("x", api.DeployStateReady)
	enqueued := mkDeploy("x", api.DeployStateEnqueued)
	uploading := mkDeploy("x", api.DeployStateUploading)
	failed := mkDeploy("x", api.DeployStateError)
	other := mkDeploy("y", api.DeployStateReady)

	tests := []struct {
		name    string
		prev    *api.Deploy
		current *api.Deploy
		want    bool
	}{
		{"no previous deploy", nil, &ready, false},
		{"no current deploy", &ready, nil, false},
		{"unchanged", &ready, &ready, false},
		{"build started", &enqueued, &building, true},
		{"build finished", &building, &ready, true},
		{"build failed", &building, &failed, true},
		{"pending churn stays silent", &enqueued, &uploading, false},
		{"new deploy replaces old ready", &ready, &other, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.prev, tt.current); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildNotification(t *testing.T) {
	d := api.Deploy{
		ID:         "dep1",
		State:      api.DeployStateReady,
		Branch:     "main",
		DeployTime: 42,
		AdminURL:   "https://app.example.com/sites/mysite/deploys/dep1",
	}

	n := BuildNotification("mysite", &d)

	if !strings.Contains(n.Title, "mysite") {
		t.Errorf("title %q does not mention the site", n.Title)
	}
	if !strings.Contains(n.Message, "main") || !strings.Contains(n.Message, "42s") {
		t.Errorf("message %q should mention branch and deploy time", n.Message)
	}
	if n.URL != d.AdminURL {
		t.Errorf("URL = %q, want admin URL", n.URL)
	}
}

func TestBuildNotificationError(t *testing.T) {
	d := api.Deploy{
		ID:           "dep2",
		State:        api.DeployStateError,
		Branch:       "main",
		ErrorMessage: "Build script returned non-zero exit code",
	}

	n := BuildNotification("mysite", &d)

	if !strings.Contains(n.Title, "failed") {
		t.Errorf("title %q should say the deploy failed", n.Title)
	}
	if n.Message != d.ErrorMessage {
		t.Errorf("message = %q, want the API error message", n.Message)
	}
}
