// Package daemon runs the poll loop and owns all deploy data the tray
// renders.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/deploybar/deploybar/internal/api"
	"github.com/deploybar/deploybar/internal/autostart"
	"github.com/deploybar/deploybar/internal/config"
	"github.com/deploybar/deploybar/internal/connectivity"
	"github.com/deploybar/deploybar/internal/deploys"
	"github.com/deploybar/deploybar/internal/settings"
	"github.com/deploybar/deploybar/internal/tray"
	"github.com/deploybar/deploybar/internal/updater"
)

// Renderer receives a fresh snapshot after every cycle.
type Renderer interface {
	Render(tray.Snapshot)
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(n deploys.Notification) error
}

// Daemon polls the deploy-hosting API and evaluates state transitions.
type Daemon struct {
	cfg      *config.Config
	client   *api.Client
	probe    *connectivity.Probe
	store    *settings.Store
	checker  *updater.Checker // nil when update checks are disabled
	auto     *autostart.Manager
	notifier Notifier
	renderer Renderer
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	cycleRunning bool
	online       bool
	loaded       bool
	sites        []api.Site
	site         *api.Site
	deployList   []api.Deploy
	pendingCount int
	current      *api.Deploy
	prev         *api.Deploy
	updateURL    string
	latestVer    string
}

// New creates a daemon. renderer and notifier may be replaced before Run.
func New(cfg *config.Config, client *api.Client, probe *connectivity.Probe,
	store *settings.Store, auto *autostart.Manager, logger *zap.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:      cfg,
		client:   client,
		probe:    probe,
		store:    store,
		auto:     auto,
		notifier: beeepNotifier{},
		renderer: nopRenderer{},
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.Updates.Enabled {
		d.checker = updater.NewChecker(cfg.Updates.ReleasesURL, logger)
	}
	return d
}

// SetRenderer wires the tray (or a test double) in.
func (d *Daemon) SetRenderer(r Renderer) {
	d.renderer = r
}

// SetNotifier replaces the desktop notification backend.
func (d *Daemon) SetNotifier(n Notifier) {
	d.notifier = n
}

// Run executes the poll loop until Stop or a termination signal. The next
// timer is armed only after the previous cycle finished, so cycles never
// overlap and interval changes apply from the next arm.
func (d *Daemon) Run() {
	d.logger.Info("Poll loop started",
		zap.Duration("poll_interval", d.store.PollInterval()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if d.checker != nil {
		go d.runUpdateChecks()
	}

	// First fetch immediately so the tray leaves the loading state.
	d.Cycle()

	for {
		timer := time.NewTimer(d.store.PollInterval())

		select {
		case <-d.ctx.Done():
			timer.Stop()
			d.logger.Info("Poll loop stopped")
			return

		case sig := <-sigChan:
			timer.Stop()
			d.logger.Info("Received signal, shutting down",
				zap.String("signal", sig.String()))
			d.Stop()
			return

		case <-timer.C:
			d.Cycle()
		}
	}
}

// Stop cancels the poll loop.
func (d *Daemon) Stop() {
	d.cancel()
}

// RequestShutdown implements tray.Controller.
func (d *Daemon) RequestShutdown() {
	d.Stop()
}

// Cycle performs one probe-fetch-evaluate-render pass. Concurrent calls
// (timer tick racing a manual refresh) collapse to one.
func (d *Daemon) Cycle() {
	d.mu.Lock()
	if d.cycleRunning {
		d.mu.Unlock()
		d.logger.Debug("Cycle already running, skipping")
		return
	}
	d.cycleRunning = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.cycleRunning = false
		d.mu.Unlock()
	}()

	if !d.probe.Online(d.ctx) {
		d.goOffline("connectivity probe failed")
		return
	}

	sites, err := d.client.ListSites(d.ctx)
	if err != nil {
		d.goOffline("site list fetch failed", zap.Error(err))
		return
	}

	site, ok := d.resolveCurrentSite(sites)
	if !ok {
		// Invariant gap: setup finished but no site can be selected.
		d.logger.Warn("No current site available, skipping render",
			zap.Int("site_count", len(sites)))
		return
	}

	deployList, err := d.client.ListDeploys(d.ctx, site.ID.String())
	if err != nil {
		d.goOffline("deploy list fetch failed", zap.Error(err))
		return
	}

	pending, ready := deploys.Partition(deployList)
	current := deploys.ChooseCurrent(pending, ready)

	d.mu.Lock()
	d.online = true
	d.loaded = true
	d.sites = sites
	d.site = site
	d.deployList = deployList
	d.pendingCount = len(pending)
	d.current = current
	prev := d.prev
	if current != nil {
		// Previous-deploy state advances unconditionally, even when no
		// notification fires. A nil current (fresh account) leaves it be.
		d.prev = current
	}
	showNotifications := d.store.Get().ShowNotifications
	d.mu.Unlock()

	if current != nil && showNotifications && deploys.ShouldNotify(prev, current) {
		n := deploys.BuildNotification(site.Name, current)
		if err := d.notifier.Notify(n); err != nil {
			d.logger.Warn("Failed to show notification", zap.Error(err))
		} else {
			d.logger.Info("Notification shown",
				zap.String("title", n.Title),
				zap.String("deploy_id", current.ID.String()),
				zap.String("state", string(current.State)))
		}
	}

	d.render()
}

// resolveCurrentSite enforces the settings invariant: a valid current site
// id once at least one site exists, falling back to the first site when the
// stored id is unset or stale.
func (d *Daemon) resolveCurrentSite(sites []api.Site) (*api.Site, bool) {
	if len(sites) == 0 {
		return nil, false
	}

	storedID := d.store.Get().CurrentSiteID
	for i := range sites {
		if sites[i].ID.String() == storedID {
			return &sites[i], true
		}
	}

	first := sites[0]
	d.logger.Info("Stored site id unset or stale, falling back to first site",
		zap.String("stored_id", storedID),
		zap.String("site_id", first.ID.String()),
		zap.String("site_name", first.Name))
	if err := d.store.SetCurrentSiteID(first.ID.String()); err != nil {
		d.logger.Warn("Failed to persist site fallback", zap.Error(err))
	}
	return &sites[0], true
}

func (d *Daemon) goOffline(reason string, fields ...zap.Field) {
	d.logger.Warn("Cycle degraded to offline: "+reason, fields...)
	d.mu.Lock()
	d.online = false
	d.mu.Unlock()
	d.render()
}

func (d *Daemon) render() {
	d.renderer.Render(d.Snapshot())
}

// Snapshot implements tray.Controller.
func (d *Daemon) Snapshot() tray.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return tray.Snapshot{
		Online:        d.online,
		Loaded:        d.loaded,
		Site:          d.site,
		Sites:         d.sites,
		Deploys:       d.deployList,
		Current:       d.current,
		Pending:       d.pendingCount,
		UpdateURL:     d.updateURL,
		LatestVersion: d.latestVer,
		Settings:      d.store.Get(),
	}
}

// SelectSite implements tray.Controller. The deploy history of the old
// site must not leak into notifications for the new one, so previous-deploy
// state resets.
func (d *Daemon) SelectSite(id string) {
	if err := d.store.SetCurrentSiteID(id); err != nil {
		d.logger.Error("Failed to persist site selection", zap.Error(err))
		return
	}

	d.mu.Lock()
	d.prev = nil
	d.current = nil
	d.deployList = nil
	d.pendingCount = 0
	for i := range d.sites {
		if d.sites[i].ID.String() == id {
			d.site = &d.sites[i]
			break
		}
	}
	d.mu.Unlock()

	d.logger.Info("Site selected", zap.String("site_id", id))
	go d.Cycle()
}

// TriggerBuild implements tray.Controller.
func (d *Daemon) TriggerBuild() {
	d.mu.Lock()
	site := d.site
	d.mu.Unlock()
	if site == nil {
		d.logger.Warn("Trigger build requested with no site selected")
		return
	}

	go func() {
		if _, err := d.client.CreateBuild(d.ctx, site.ID.String()); err != nil {
			d.logger.Error("Failed to trigger build", zap.Error(err))
			return
		}
		d.Cycle()
	}()
}

// RefreshNow implements tray.Controller.
func (d *Daemon) RefreshNow() {
	d.logger.Info("Manual refresh triggered from tray")
	d.Cycle()
}

// SetPollInterval implements tray.Controller. Takes effect when the next
// timer is armed.
func (d *Daemon) SetPollInterval(interval time.Duration) {
	if err := d.store.SetPollInterval(interval); err != nil {
		d.logger.Error("Failed to persist poll interval", zap.Error(err))
		return
	}
	d.logger.Info("Poll interval changed", zap.Duration("interval", d.store.PollInterval()))
}

// SetShowNotifications implements tray.Controller.
func (d *Daemon) SetShowNotifications(on bool) {
	if err := d.store.SetShowNotifications(on); err != nil {
		d.logger.Error("Failed to persist notification toggle", zap.Error(err))
		return
	}
	d.logger.Info("Notifications toggled", zap.Bool("enabled", on))
}

// SetLaunchAtStart implements tray.Controller.
func (d *Daemon) SetLaunchAtStart(on bool) {
	if err := d.store.SetLaunchAtStart(on); err != nil {
		d.logger.Error("Failed to persist launch-at-start toggle", zap.Error(err))
		return
	}
	if d.auto != nil {
		if err := d.auto.Apply(on); err != nil {
			d.logger.Warn("Failed to apply launch-at-start", zap.Error(err))
		}
	}
	d.logger.Info("Launch at start toggled", zap.Bool("enabled", on))
}

// ApplySettings re-applies externally edited settings (fsnotify path).
func (d *Daemon) ApplySettings(s settings.Settings) {
	d.logger.Info("Settings changed externally",
		zap.Int64("poll_interval_ms", s.PollIntervalMS),
		zap.String("current_site_id", s.CurrentSiteID))
	go d.Cycle()
}

func (d *Daemon) runUpdateChecks() {
	ticker := time.NewTicker(d.cfg.Updates.GetCheckInterval())
	defer ticker.Stop()

	for {
		res, err := d.checker.Check(d.ctx)
		if err != nil {
			d.logger.Warn("Update check failed", zap.Error(err))
		} else if res.Available {
			d.mu.Lock()
			changed := d.updateURL != res.ReleaseURL
			d.updateURL = res.ReleaseURL
			d.latestVer = res.LatestVersion
			d.mu.Unlock()
			if changed {
				d.render()
			}
		}

		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type nopRenderer struct{}

func (nopRenderer) Render(tray.Snapshot) {}
