package daemon

import (
	"github.com/gen2brain/beeep"

	"github.com/deploybar/deploybar/internal/deploys"
)

// beeepNotifier shows desktop notifications through the OS notification
// service. The backend offers no click handlers, so the deploy page link
// lives in the tray menu instead.
type beeepNotifier struct{}

func (beeepNotifier) Notify(n deploys.Notification) error {
	return beeep.Notify(n.Title, n.Message, "")
}
