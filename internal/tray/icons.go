package tray

import (
	_ "embed"

	"github.com/deploybar/deploybar/internal/api"
	"github.com/deploybar/deploybar/internal/deploys"
)

//go:embed icons/loading.png
var iconLoading []byte

//go:embed icons/offline.png
var iconOffline []byte

//go:embed icons/pending.png
var iconPending []byte

//go:embed icons/ready.png
var iconReady []byte

//go:embed icons/error.png
var iconError []byte

// iconFor maps a deploy state to its tray icon.
func iconFor(state api.DeployState) []byte {
	switch {
	case deploys.IsPending(state):
		return iconPending
	case deploys.IsReady(state):
		return iconReady
	case state == api.DeployStateError:
		return iconError
	default:
		return iconLoading
	}
}
