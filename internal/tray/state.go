// Package tray implements the system tray icon and menu.
package tray

import (
	"time"

	"github.com/deploybar/deploybar/internal/api"
	"github.com/deploybar/deploybar/internal/settings"
)

// Snapshot is the immutable view of application state the renderer draws
// from. The daemon produces a fresh one per poll cycle.
type Snapshot struct {
	Online  bool
	Loaded  bool // at least one successful fetch happened
	Site    *api.Site
	Sites   []api.Site
	Deploys []api.Deploy // recent deploys, newest first
	Current *api.Deploy
	Pending int // count of in-progress deploys

	UpdateURL     string // non-empty when a newer release exists
	LatestVersion string
	Settings      settings.Settings
}

// Controller is the daemon surface the tray drives. Calls may block on
// settings persistence but never on network fetches.
type Controller interface {
	Snapshot() Snapshot
	SelectSite(id string)
	TriggerBuild()
	RefreshNow()
	SetPollInterval(d time.Duration)
	SetShowNotifications(on bool)
	SetLaunchAtStart(on bool)
	RequestShutdown()
}
