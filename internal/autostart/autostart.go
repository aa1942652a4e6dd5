// Package autostart registers or removes the application from the
// platform's launch-at-login mechanism.
package autostart

// Manager toggles launch-at-start for the running binary. Platform
// implementations live in the build-tagged files.
type Manager struct {
	appName  string
	execPath string
}

// New creates a manager for the given application name and executable path.
func New(appName, execPath string) *Manager {
	return &Manager{appName: appName, execPath: execPath}
}

// Apply enables or disables launch-at-start to match the setting.
func (m *Manager) Apply(enabled bool) error {
	if enabled {
		return m.enable()
	}
	return m.disable()
}
