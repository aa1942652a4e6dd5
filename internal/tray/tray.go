package tray

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"
	"go.uber.org/zap"

	"github.com/deploybar/deploybar/internal/api"
	"github.com/deploybar/deploybar/internal/browser"
	"github.com/deploybar/deploybar/internal/settings"
	"github.com/deploybar/deploybar/pkg/humantime"
)

const (
	maxDeploySlots = 5
	maxSiteSlots   = 15

	changelogURL = "https://github.com/deploybar/deploybar/releases"
	issuesURL    = "https://github.com/deploybar/deploybar/issues"
)

// App owns the tray icon and menu.
type App struct {
	ctl    Controller
	logger *zap.Logger
	gate   renderGate
	quit   chan struct{}

	// renderMu serializes snapshot application; the daemon goroutine and
	// click handlers both render. apply points at applyMenu.
	renderMu sync.Mutex
	apply    func(Snapshot)

	siteHeader  *systray.MenuItem
	currentItem *systray.MenuItem
	offlineItem *systray.MenuItem

	deploySlots [maxDeploySlots]*systray.MenuItem
	siteMenu    *systray.MenuItem
	siteSlots   [maxSiteSlots]*systray.MenuItem

	openSiteItem  *systray.MenuItem
	openAdminItem *systray.MenuItem
	buildItem     *systray.MenuItem
	refreshItem   *systray.MenuItem

	settingsMenu  *systray.MenuItem
	intervalItems []*systray.MenuItem
	notifyItem    *systray.MenuItem
	launchItem    *systray.MenuItem

	updateItem    *systray.MenuItem
	changelogItem *systray.MenuItem
	issuesItem    *systray.MenuItem
	quitItem      *systray.MenuItem

	// Slot targets, written by render and read by click handlers.
	mu         sync.RWMutex
	currentURL string
	deployURLs [maxDeploySlots]string
	siteIDs    [maxSiteSlots]string
	siteURL    string
	adminURL   string
	updateURL  string
}

// New creates the tray app around a controller.
func New(ctl Controller, logger *zap.Logger) *App {
	t := &App{
		ctl:    ctl,
		logger: logger,
		quit:   make(chan struct{}),
	}
	t.apply = t.applyMenu
	return t
}

// Run starts the tray loop. Blocks until Quit; must run on the main
// goroutine. onReady is called once the menu exists (start the poll loop
// there).
func (t *App) Run(onReady func()) {
	systray.Run(func() {
		t.buildMenu()
		go t.handleClicks()
		if onReady != nil {
			onReady()
		}
	}, func() {
		t.logger.Info("System tray exited")
	})
}

// Stop tears the tray down.
func (t *App) Stop() {
	select {
	case <-t.quit:
	default:
		close(t.quit)
	}
	systray.Quit()
}

func (t *App) buildMenu() {
	systray.SetIcon(iconLoading)
	systray.SetTooltip("Deploybar")

	t.siteHeader = systray.AddMenuItem("Loading...", "Currently selected site")
	t.siteHeader.Disable()

	t.currentItem = systray.AddMenuItem("No deploys yet", "Open the current deploy page")
	t.offlineItem = systray.AddMenuItem("Offline", "The deploy service is unreachable")
	t.offlineItem.Disable()
	t.offlineItem.Hide()

	systray.AddSeparator()

	for i := 0; i < maxDeploySlots; i++ {
		t.deploySlots[i] = systray.AddMenuItem("", "Open this deploy")
		t.deploySlots[i].Hide()
	}

	systray.AddSeparator()

	t.openSiteItem = systray.AddMenuItem("Open Site", "Open the site in the browser")
	t.openAdminItem = systray.AddMenuItem("Open Admin", "Open the site dashboard")
	t.buildItem = systray.AddMenuItem("Trigger New Deploy", "Ask the service to build again")
	t.refreshItem = systray.AddMenuItem("Refresh Now", "Poll immediately")

	t.siteMenu = systray.AddMenuItem("Switch Site", "Choose another site")
	for i := 0; i < maxSiteSlots; i++ {
		t.siteSlots[i] = t.siteMenu.AddSubMenuItemCheckbox("", "", false)
		t.siteSlots[i].Hide()
	}

	systray.AddSeparator()

	t.settingsMenu = systray.AddMenuItem("Settings", "")
	intervalMenu := t.settingsMenu.AddSubMenuItem("Poll Interval", "")
	t.intervalItems = make([]*systray.MenuItem, len(settings.PollPresets))
	for i, p := range settings.PollPresets {
		t.intervalItems[i] = intervalMenu.AddSubMenuItemCheckbox(presetLabel(p), "", false)
	}
	t.notifyItem = t.settingsMenu.AddSubMenuItemCheckbox("Show Notifications", "", false)
	t.launchItem = t.settingsMenu.AddSubMenuItemCheckbox("Launch at Start", "", false)

	t.updateItem = systray.AddMenuItem("", "Open the release page")
	t.updateItem.Hide()
	t.changelogItem = systray.AddMenuItem("Release Notes", "")
	t.issuesItem = systray.AddMenuItem("Report an Issue", "")

	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Exit Deploybar")
}

// Render applies a fresh snapshot to the menu. Calls arriving while a menu
// interaction is being handled are deferred; the interaction's end performs
// the single coalesced re-render.
func (t *App) Render(snap Snapshot) {
	if !t.gate.TryRender() {
		t.logger.Debug("Render deferred, menu interaction in flight")
		return
	}
	t.applyRender(snap)
}

// menuVisibility is the per-section outcome of a render: which parts of the
// menu exist for a given snapshot. Quit is always present.
type menuVisibility struct {
	SiteHeader bool
	Current    bool
	Offline    bool
	Actions    bool // open site, open admin, trigger build, refresh
	SiteMenu   bool
	Settings   bool
	Links      bool // release notes, report an issue
}

// visibilityFor collapses the menu to the offline placeholder when the
// service is unreachable; online, every section is shown.
func visibilityFor(snap Snapshot) menuVisibility {
	if !snap.Online {
		return menuVisibility{Offline: true}
	}
	return menuVisibility{
		SiteHeader: true,
		Current:    true,
		Actions:    true,
		SiteMenu:   true,
		Settings:   true,
		Links:      true,
	}
}

func (t *App) applyRender(snap Snapshot) {
	t.renderMu.Lock()
	defer t.renderMu.Unlock()
	t.apply(snap)
}

func (t *App) applyMenu(snap Snapshot) {
	vis := visibilityFor(snap)
	showItem(t.siteHeader, vis.SiteHeader)
	showItem(t.currentItem, vis.Current)
	showItem(t.offlineItem, vis.Offline)
	showItem(t.openSiteItem, vis.Actions)
	showItem(t.openAdminItem, vis.Actions)
	showItem(t.buildItem, vis.Actions)
	showItem(t.refreshItem, vis.Actions)
	showItem(t.siteMenu, vis.SiteMenu)
	showItem(t.settingsMenu, vis.Settings)
	showItem(t.changelogItem, vis.Links)
	showItem(t.issuesItem, vis.Links)

	if !snap.Online {
		systray.SetIcon(iconOffline)
		systray.SetTitle("")
		systray.SetTooltip("Deploybar — offline")
		for i := 0; i < maxDeploySlots; i++ {
			t.deploySlots[i].Hide()
		}
		t.updateItem.Hide()
		return
	}

	if !snap.Loaded {
		systray.SetIcon(iconLoading)
		systray.SetTooltip("Deploybar — loading")
		return
	}

	if snap.Current != nil {
		systray.SetIcon(iconFor(snap.Current.State))
	} else {
		systray.SetIcon(iconReady)
	}
	if snap.Pending > 0 {
		systray.SetTitle(fmt.Sprintf("%d", snap.Pending))
	} else {
		systray.SetTitle("")
	}

	siteName := "No site selected"
	if snap.Site != nil {
		siteName = snap.Site.Name
	}
	t.siteHeader.SetTitle(siteName)
	systray.SetTooltip(fmt.Sprintf("Deploybar — %s, %d building", siteName, snap.Pending))

	t.mu.Lock()
	if snap.Site != nil {
		t.siteURL = snap.Site.URL
		t.adminURL = snap.Site.AdminURL
	} else {
		t.siteURL = ""
		t.adminURL = ""
	}
	if snap.Current != nil {
		t.currentURL = snap.Current.PageURL()
	} else {
		t.currentURL = ""
	}
	t.updateURL = snap.UpdateURL
	t.mu.Unlock()

	if snap.Current != nil {
		t.currentItem.SetTitle(deployLine(*snap.Current, time.Now()))
	} else {
		t.currentItem.SetTitle("No deploys yet")
	}

	t.renderDeploySlots(snap)
	t.renderSiteSlots(snap)
	t.renderSettings(snap.Settings)

	if snap.UpdateURL != "" {
		t.updateItem.SetTitle(fmt.Sprintf("Update Available: v%s", snap.LatestVersion))
		t.updateItem.Show()
	} else {
		t.updateItem.Hide()
	}
}

func (t *App) renderDeploySlots(snap Snapshot) {
	now := time.Now()
	t.mu.Lock()
	for i := 0; i < maxDeploySlots; i++ {
		if i < len(snap.Deploys) {
			d := snap.Deploys[i]
			t.deployURLs[i] = d.PageURL()
			t.deploySlots[i].SetTitle(deployLine(d, now))
			t.deploySlots[i].Show()
		} else {
			t.deployURLs[i] = ""
			t.deploySlots[i].Hide()
		}
	}
	t.mu.Unlock()
}

func (t *App) renderSiteSlots(snap Snapshot) {
	currentID := ""
	if snap.Site != nil {
		currentID = snap.Site.ID.String()
	}

	t.mu.Lock()
	for i := 0; i < maxSiteSlots; i++ {
		if i < len(snap.Sites) {
			s := snap.Sites[i]
			t.siteIDs[i] = s.ID.String()
			t.siteSlots[i].SetTitle(s.Name)
			if s.ID.String() == currentID {
				t.siteSlots[i].Check()
			} else {
				t.siteSlots[i].Uncheck()
			}
			t.siteSlots[i].Show()
		} else {
			t.siteIDs[i] = ""
			t.siteSlots[i].Hide()
		}
	}
	t.mu.Unlock()
}

func (t *App) renderSettings(s settings.Settings) {
	for i, p := range settings.PollPresets {
		if p.Milliseconds() == s.PollIntervalMS {
			t.intervalItems[i].Check()
		} else {
			t.intervalItems[i].Uncheck()
		}
	}
	setChecked(t.notifyItem, s.ShowNotifications)
	setChecked(t.launchItem, s.LaunchAtStart)
}

// interact runs a click action with the render gate held, then performs the
// one post-interaction re-render.
func (t *App) interact(action func()) {
	t.gate.Begin()
	action()
	if t.gate.End() {
		t.logger.Debug("Releasing deferred re-render")
	}
	t.applyRender(t.ctl.Snapshot())
}

func (t *App) handleClicks() {
	for i := 0; i < maxDeploySlots; i++ {
		go t.handleSlot(t.deploySlots[i].ClickedCh, func(i int) string {
			t.mu.RLock()
			defer t.mu.RUnlock()
			return t.deployURLs[i]
		}, i)
	}
	for i := 0; i < maxSiteSlots; i++ {
		i := i
		go func() {
			for range t.siteSlots[i].ClickedCh {
				t.mu.RLock()
				id := t.siteIDs[i]
				t.mu.RUnlock()
				if id == "" {
					continue
				}
				t.interact(func() { t.ctl.SelectSite(id) })
			}
		}()
	}
	for i := range t.intervalItems {
		i := i
		go func() {
			for range t.intervalItems[i].ClickedCh {
				t.interact(func() { t.ctl.SetPollInterval(settings.PollPresets[i]) })
			}
		}()
	}

	for {
		select {
		case <-t.currentItem.ClickedCh:
			t.openFromSlot(func() string { return t.currentURL })
		case <-t.openSiteItem.ClickedCh:
			t.openFromSlot(func() string { return t.siteURL })
		case <-t.openAdminItem.ClickedCh:
			t.openFromSlot(func() string { return t.adminURL })
		case <-t.updateItem.ClickedCh:
			t.openFromSlot(func() string { return t.updateURL })
		case <-t.changelogItem.ClickedCh:
			t.openURL(changelogURL)
		case <-t.issuesItem.ClickedCh:
			t.openURL(issuesURL)

		case <-t.buildItem.ClickedCh:
			t.logger.Info("Trigger deploy clicked from tray")
			t.interact(t.ctl.TriggerBuild)
		case <-t.refreshItem.ClickedCh:
			go t.ctl.RefreshNow()
		case <-t.notifyItem.ClickedCh:
			t.interact(func() { t.ctl.SetShowNotifications(!t.notifyItem.Checked()) })
		case <-t.launchItem.ClickedCh:
			t.interact(func() { t.ctl.SetLaunchAtStart(!t.launchItem.Checked()) })

		case <-t.quitItem.ClickedCh:
			t.logger.Info("Quit clicked from tray")
			t.ctl.RequestShutdown()
			systray.Quit()
			return
		case <-t.quit:
			systray.Quit()
			return
		}
	}
}

func (t *App) handleSlot(clicks chan struct{}, url func(int) string, i int) {
	for range clicks {
		t.openURL(url(i))
	}
}

func (t *App) openFromSlot(url func() string) {
	t.mu.RLock()
	u := url()
	t.mu.RUnlock()
	t.openURL(u)
}

func (t *App) openURL(u string) {
	if u == "" {
		return
	}
	if err := browser.Open(u); err != nil {
		t.logger.Warn("Failed to open browser", zap.String("url", u), zap.Error(err))
	}
}

func showItem(item *systray.MenuItem, on bool) {
	if on {
		item.Show()
	} else {
		item.Hide()
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func deployLine(d api.Deploy, now time.Time) string {
	marker := "●"
	if d.State == api.DeployStateError {
		marker = "✗"
	}
	branch := d.Branch
	if branch == "" {
		branch = d.Context
	}
	line := fmt.Sprintf("%s %s — %s", marker, branch, d.State)
	if ago := humantime.Ago(d.CreatedAt.Time, now); ago != "" {
		line += fmt.Sprintf(" (%s)", ago)
	}
	return line
}

func presetLabel(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("Every %d seconds", int(d.Seconds()))
	}
	if d == time.Minute {
		return "Every minute"
	}
	return fmt.Sprintf("Every %d minutes", int(d.Minutes()))
}
