//go:build !linux && !darwin

package autostart

import "errors"

func (m *Manager) enable() error {
	return errors.New("launch at start is not supported on this platform")
}

func (m *Manager) disable() error {
	return nil
}
