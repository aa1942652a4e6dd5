package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deploybar/deploybar/internal/api"
	"github.com/deploybar/deploybar/internal/config"
	"github.com/deploybar/deploybar/internal/connectivity"
	"github.com/deploybar/deploybar/internal/deploys"
	"github.com/deploybar/deploybar/internal/settings"
	"github.com/deploybar/deploybar/internal/tray"
)

type recordingRenderer struct {
	mu    sync.Mutex
	snaps []tray.Snapshot
}

func (r *recordingRenderer) Render(s tray.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingRenderer) last(t *testing.T) tray.Snapshot {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.snaps, "no render happened")
	return r.snaps[len(r.snaps)-1]
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []deploys.Notification
}

func (n *recordingNotifier) Notify(note deploys.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

// fakeService is a minimal deploy-hosting API for tests.
type fakeService struct {
	mu      sync.Mutex
	sites   []api.Site
	deploys map[string][]api.Deploy
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sites", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.sites)
	})
	mux.HandleFunc("/sites/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/sites/"), "/")
		if len(parts) != 2 || parts[1] != "deploys" {
			http.NotFound(w, r)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(f.deploys[parts[0]])
	})
	return mux
}

func (f *fakeService) setDeploys(siteID string, ds []api.Deploy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys[siteID] = ds
}

func newTestDaemon(t *testing.T, svc *fakeService) (*Daemon, *recordingRenderer, *recordingNotifier, *settings.Store) {
	t.Helper()

	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	client := api.NewClient(srv.URL, "test-token", logger)
	probe, err := connectivity.NewProbe(srv.URL, logger)
	require.NoError(t, err)

	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"), logger)
	require.NoError(t, store.Load())

	cfg := &config.Config{}
	d := New(cfg, client, probe, store, nil, logger)
	t.Cleanup(d.Stop)

	r := &recordingRenderer{}
	n := &recordingNotifier{}
	d.SetRenderer(r)
	d.SetNotifier(n)
	return d, r, n, store
}

func site(id, name string) api.Site {
	return api.Site{ID: api.FlexibleID(id), Name: name, URL: "https://" + name + ".example.com"}
}

func deploy(id string, state api.DeployState) api.Deploy {
	return api.Deploy{ID: api.FlexibleID(id), State: state, Branch: "main"}
}

func TestCyclePicksCurrentDeployAndCounts(t *testing.T) {
	svc := &fakeService{
		sites: []api.Site{site("s1", "mysite")},
		deploys: map[string][]api.Deploy{
			"s1": {
				deploy("A", api.DeployStateBuilding),
				deploy("B", api.DeployStateEnqueued),
				deploy("C", api.DeployStateReady),
			},
		},
	}
	d, r, _, _ := newTestDaemon(t, svc)

	d.Cycle()

	snap := r.last(t)
	assert.True(t, snap.Online)
	assert.True(t, snap.Loaded)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "B", snap.Current.ID.String(), "last pending deploy wins")
	assert.Equal(t, 2, snap.Pending)
	require.NotNil(t, snap.Site)
	assert.Equal(t, "mysite", snap.Site.Name)
}

func TestCycleFallsBackToFirstReady(t *testing.T) {
	svc := &fakeService{
		sites: []api.Site{site("s1", "mysite")},
		deploys: map[string][]api.Deploy{
			"s1": {deploy("C", api.DeployStateReady), deploy("D", api.DeployStateReady)},
		},
	}
	d, r, _, _ := newTestDaemon(t, svc)

	d.Cycle()

	snap := r.last(t)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "C", snap.Current.ID.String(), "first ready deploy wins")
	assert.Equal(t, 0, snap.Pending)
}

func TestEmptyAccountSkipsEvaluation(t *testing.T) {
	svc := &fakeService{
		sites:   []api.Site{site("s1", "mysite")},
		deploys: map[string][]api.Deploy{"s1": {}},
	}
	d, r, n, _ := newTestDaemon(t, svc)

	d.Cycle()

	snap := r.last(t)
	assert.True(t, snap.Online)
	assert.Nil(t, snap.Current)
	assert.Zero(t, n.count(), "no deploys means no notification")
}

func TestNotificationFiresOnStateTransition(t *testing.T) {
	svc := &fakeService{
		sites:   []api.Site{site("s1", "mysite")},
		deploys: map[string][]api.Deploy{"s1": {deploy("A", api.DeployStateBuilding)}},
	}
	d, _, n, _ := newTestDaemon(t, svc)

	// First cycle establishes previous state; no notification yet.
	d.Cycle()
	assert.Zero(t, n.count())

	svc.setDeploys("s1", []api.Deploy{deploy("A", api.DeployStateReady)})
	d.Cycle()
	assert.Equal(t, 1, n.count(), "building -> ready must notify")

	// Unchanged state stays silent.
	d.Cycle()
	assert.Equal(t, 1, n.count())
}

func TestNotificationsRespectToggle(t *testing.T) {
	svc := &fakeService{
		sites:   []api.Site{site("s1", "mysite")},
		deploys: map[string][]api.Deploy{"s1": {deploy("A", api.DeployStateBuilding)}},
	}
	d, _, n, store := newTestDaemon(t, svc)
	require.NoError(t, store.SetShowNotifications(false))

	d.Cycle()
	svc.setDeploys("s1", []api.Deploy{deploy("A", api.DeployStateReady)})
	d.Cycle()

	assert.Zero(t, n.count(), "disabled notifications must stay silent")
}

func TestSiteFallbackPersistsFirstSite(t *testing.T) {
	svc := &fakeService{
		sites:   []api.Site{site("s1", "alpha"), site("s2", "beta")},
		deploys: map[string][]api.Deploy{"s1": {deploy("A", api.DeployStateReady)}},
	}
	d, r, _, store := newTestDaemon(t, svc)
	require.NoError(t, store.SetCurrentSiteID("gone-site"))

	d.Cycle()

	assert.Equal(t, "s1", store.Get().CurrentSiteID, "stale site id falls back to first site")
	snap := r.last(t)
	require.NotNil(t, snap.Site)
	assert.Equal(t, "alpha", snap.Site.Name)
}

func TestOfflineCycleRendersOfflineAndKeepsPrevious(t *testing.T) {
	svc := &fakeService{
		sites:   []api.Site{site("s1", "mysite")},
		deploys: map[string][]api.Deploy{"s1": {deploy("A", api.DeployStateReady)}},
	}
	d, r, n, _ := newTestDaemon(t, svc)
	d.Cycle()
	require.True(t, r.last(t).Online)

	// Point the probe at a dead address.
	deadProbe, err := connectivity.NewProbe("http://127.0.0.1:1", zap.NewNop())
	require.NoError(t, err)
	d.probe = deadProbe

	d.Cycle()

	snap := r.last(t)
	assert.False(t, snap.Online)
	assert.Zero(t, n.count())

	d.mu.Lock()
	prev := d.prev
	d.mu.Unlock()
	require.NotNil(t, prev, "offline cycle must not clear previous deploy state")
	assert.Equal(t, "A", prev.ID.String())
}

func TestSelectSiteResetsPreviousDeploy(t *testing.T) {
	svc := &fakeService{
		sites: []api.Site{site("s1", "alpha"), site("s2", "beta")},
		deploys: map[string][]api.Deploy{
			"s1": {deploy("A", api.DeployStateReady)},
			"s2": {deploy("Z", api.DeployStateReady)},
		},
	}
	d, _, n, store := newTestDaemon(t, svc)
	d.Cycle()

	d.SelectSite("s2")
	assert.Equal(t, "s2", store.Get().CurrentSiteID)

	// The async refresh after switching must not produce a notification:
	// the new site has no previous deploy to compare against.
	require.Eventually(t, func() bool {
		s := d.Snapshot()
		return s.Site != nil && s.Site.ID.String() == "s2" && s.Current != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, n.count())
}

func TestSetPollIntervalPersists(t *testing.T) {
	svc := &fakeService{sites: []api.Site{}, deploys: map[string][]api.Deploy{}}
	d, _, _, store := newTestDaemon(t, svc)

	d.SetPollInterval(time.Minute)

	assert.Equal(t, time.Minute, store.PollInterval())

	reopened := settings.NewStore(store.Path(), zap.NewNop())
	require.NoError(t, reopened.Load())
	assert.Equal(t, time.Minute, reopened.PollInterval(), "interval survives restart")
}
