package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/uimap/uimap-cli/api/schemas"
	"github.com/uimap/uimap-cli/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSite describes one page of the in-memory test application.
type fakeSite struct {
	title    string
	elements []ElementInfo
	// clickTargets maps an element index to the URL its click navigates to.
	clickTargets map[int]string
}

// fakePage drives the Explorer through a fakeSite map without a browser.
// It mirrors the real page's index-tagging lifecycle: an extraction pass
// tags the DOM, a navigation reloads the document and drops the tags, and
// clicking an untagged index fails the way a vanished selector would.
type fakePage struct {
	mu      sync.Mutex
	site    map[string]fakeSite
	current string
	tagged  bool

	navLog     []string
	clickLog   []string
	extractLog []string
	failNav    map[string]error
	failClick  map[string]error
}

func newFakePage(site map[string]fakeSite) *fakePage {
	return &fakePage{
		site:      site,
		failNav:   make(map[string]error),
		failClick: make(map[string]error),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failNav[url]; err != nil {
		return err
	}
	p.current = url
	p.tagged = false
	p.navLog = append(p.navLog, url)
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.site[p.current].title, nil
}

func (p *fakePage) Elements(ctx context.Context) ([]ElementInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tagged = true
	p.extractLog = append(p.extractLog, p.current)
	return p.site[p.current].elements, nil
}

func (p *fakePage) Click(ctx context.Context, index int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := fmt.Sprintf("%s#%d", p.current, index)
	p.clickLog = append(p.clickLog, key)
	if !p.tagged {
		return "", errors.New("no element tagged with that index")
	}
	if err := p.failClick[key]; err != nil {
		return "", err
	}
	if target, ok := p.site[p.current].clickTargets[index]; ok {
		p.current = target
		return target, nil
	}
	return p.current, nil
}

func (p *fakePage) Fill(ctx context.Context, index int, value string) error { return nil }
func (p *fakePage) Close() error                                           { return nil }

// fakeStore records everything the engine writes.
type fakeStore struct {
	mu       sync.Mutex
	screens  []schemas.Screen
	elements []schemas.Element
	failElem error
	nextID   int64
}

func (s *fakeStore) RegisterScreen(ctx context.Context, screen schemas.Screen) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	screen.ID = s.nextID
	s.screens = append(s.screens, screen)
	return s.nextID, nil
}

func (s *fakeStore) AddElement(ctx context.Context, el schemas.Element) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failElem != nil {
		return 0, s.failElem
	}
	s.nextID++
	el.ID = s.nextID
	s.elements = append(s.elements, el)
	return s.nextID, nil
}

func (s *fakeStore) screenURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, len(s.screens))
	for i, sc := range s.screens {
		urls[i] = sc.URL
	}
	return urls
}

func link(index int, text, href string) ElementInfo {
	return ElementInfo{
		Index: index, Tag: "a", Text: text, Href: href, Visible: true,
	}
}

func testCrawlerConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		MaxDepth:          15,
		NavigationTimeout: time.Second,
		ClickTimeout:      time.Second,
	}
}

func newTestExplorer(page Page, store schemas.LocatorStore, cfg config.CrawlerConfig) *Explorer {
	return NewExplorer(page, store, nil, nil, cfg, config.AuthConfig{}, nil, nil)
}

func authCreds(user, pass string) config.AuthConfig {
	return config.AuthConfig{Username: user, Password: pass}
}

func TestExplorerVisitsDepthFirstLeftToRight(t *testing.T) {
	// A links to B and C; B links back to A. The back-link must be clicked
	// (its signature is new) but A must not be explored twice.
	site := map[string]fakeSite{
		"https://app.test/a": {
			title: "Page A",
			elements: []ElementInfo{
				link(0, "To B", "/b"),
				link(1, "To C", "/c"),
			},
			clickTargets: map[int]string{0: "https://app.test/b", 1: "https://app.test/c"},
		},
		"https://app.test/b": {
			title:        "Page B",
			elements:     []ElementInfo{link(0, "Back to A", "/a")},
			clickTargets: map[int]string{0: "https://app.test/a"},
		},
		"https://app.test/c": {
			title:    "Page C",
			elements: []ElementInfo{link(0, "Nowhere", "/c")},
		},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	summary, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	want := []string{
		"https://app.test/a",
		"https://app.test/b",
		"https://app.test/c",
	}
	if diff := cmp.Diff(want, store.screenURLs()); diff != "" {
		t.Errorf("exploration order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, summary.Screens)
	assert.Equal(t, schemas.StatusCompleted, summary.Status)
}

func TestExplorerTerminatesOnCycles(t *testing.T) {
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements:     []ElementInfo{link(0, "To B", "/b")},
			clickTargets: map[int]string{0: "https://app.test/b"},
		},
		"https://app.test/b": {
			elements:     []ElementInfo{link(0, "To A", "/a")},
			clickTargets: map[int]string{0: "https://app.test/a"},
		},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not terminate on a cyclic link graph")
	}
	assert.Len(t, store.screenURLs(), 2)
}

func TestExplorerNeverClicksSameSignatureTwice(t *testing.T) {
	// Both A and B link to C. C is explored once, and every click signature
	// appears at most once in the click log.
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements: []ElementInfo{
				link(0, "To B", "/b"),
				link(1, "To C", "/c"),
			},
			clickTargets: map[int]string{0: "https://app.test/b", 1: "https://app.test/c"},
		},
		"https://app.test/b": {
			elements:     []ElementInfo{link(0, "To C", "/c")},
			clickTargets: map[int]string{0: "https://app.test/c"},
		},
		"https://app.test/c": {},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	_, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, c := range page.clickLog {
		seen[c]++
	}
	for sig, count := range seen {
		assert.Equal(t, 1, count, "signature %s clicked more than once", sig)
	}
	assert.Len(t, store.screenURLs(), 3)
}

func TestExplorerNeverClicksDestructiveElements(t *testing.T) {
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements: []ElementInfo{
				{Index: 0, Tag: "button", Text: "Logout", Visible: true},
				link(1, "Settings", "/settings"),
				{Index: 2, Tag: "button", ID: "delete-account", Text: "", Visible: true},
			},
			clickTargets: map[int]string{
				0: "https://app.test/logged-out",
				1: "https://app.test/settings",
				2: "https://app.test/gone",
			},
		},
		"https://app.test/settings": {},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	_, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	assert.NotContains(t, page.clickLog, "https://app.test/a#0", "logout button was clicked")
	assert.NotContains(t, page.clickLog, "https://app.test/a#2", "delete button was clicked")
	assert.NotContains(t, store.screenURLs(), "https://app.test/logged-out")
}

func TestExplorerBacktracksAfterEveryNavigatingClick(t *testing.T) {
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements: []ElementInfo{
				link(0, "To B", "/b"),
				link(1, "To C", "/c"),
			},
			clickTargets: map[int]string{0: "https://app.test/b", 1: "https://app.test/c"},
		},
		"https://app.test/b": {},
		"https://app.test/c": {},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	_, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	// The second click on A must have happened while back on A: its log
	// entry names A as the click origin.
	assert.Contains(t, page.clickLog, "https://app.test/a#1")
}

func TestExplorerRespectsDepthBound(t *testing.T) {
	// A chain a0 -> a1 -> a2 -> ... with depth bound 2 stops after a2.
	site := make(map[string]fakeSite)
	for i := 0; i < 6; i++ {
		url := fmt.Sprintf("https://app.test/p%d", i)
		next := fmt.Sprintf("https://app.test/p%d", i+1)
		site[url] = fakeSite{
			elements:     []ElementInfo{link(0, "Next", next)},
			clickTargets: map[int]string{0: next},
		}
	}
	page := newFakePage(site)
	store := &fakeStore{}

	cfg := testCrawlerConfig()
	cfg.MaxDepth = 2
	_, err := newTestExplorer(page, store, cfg).Run(context.Background(), "https://app.test/p0")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://app.test/p0",
		"https://app.test/p1",
		"https://app.test/p2",
	}, store.screenURLs())
}

func TestExplorerAbsorbsNavigationFailures(t *testing.T) {
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements: []ElementInfo{
				link(0, "Broken", "/broken"),
				link(1, "Fine", "/fine"),
			},
			clickTargets: map[int]string{0: "https://app.test/broken", 1: "https://app.test/fine"},
		},
		"https://app.test/fine": {},
	}
	page := newFakePage(site)
	page.failNav["https://app.test/broken"] = errors.New("connection refused")
	store := &fakeStore{}

	summary, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	assert.Contains(t, store.screenURLs(), "https://app.test/fine")
	assert.Equal(t, schemas.StatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.Failures[schemas.FailureNavigation])
}

func TestExplorerFailedClickIsNoNavigation(t *testing.T) {
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements: []ElementInfo{
				link(0, "Flaky", "/b"),
				link(1, "Solid", "/c"),
			},
			clickTargets: map[int]string{0: "https://app.test/b", 1: "https://app.test/c"},
		},
		"https://app.test/c": {},
	}
	page := newFakePage(site)
	page.failClick["https://app.test/a#0"] = errors.New("element detached")
	store := &fakeStore{}

	summary, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	assert.NotContains(t, store.screenURLs(), "https://app.test/b")
	assert.Contains(t, store.screenURLs(), "https://app.test/c")
	assert.Equal(t, 1, summary.Failures[schemas.FailureInteraction])
}

func TestExplorerRetagsBetweenBacktrackedClicks(t *testing.T) {
	// Backtracking reloads the page and drops the index tags, so every
	// navigating click after the first depends on a fresh extraction pass.
	site := map[string]fakeSite{
		"https://app.test/a": {
			elements: []ElementInfo{
				link(0, "To B", "/b"),
				link(1, "To C", "/c"),
			},
			clickTargets: map[int]string{0: "https://app.test/b", 1: "https://app.test/c"},
		},
		"https://app.test/b": {},
		"https://app.test/c": {},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	summary, err := newTestExplorer(page, store, testCrawlerConfig()).Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	assert.Contains(t, page.clickLog, "https://app.test/a#1")
	assert.Contains(t, store.screenURLs(), "https://app.test/c")
	assert.Empty(t, summary.Failures)

	retags := 0
	for _, u := range page.extractLog {
		if u == "https://app.test/a" {
			retags++
		}
	}
	assert.Equal(t, 3, retags, "one initial pass plus one after each backtrack")
}

func TestInteractorSamePageLandingIsNoNavigation(t *testing.T) {
	for _, target := range []string{"https://app.test/a#details", "https://app.test/a/"} {
		site := map[string]fakeSite{
			"https://app.test/a": {
				elements:     []ElementInfo{link(0, "Stay", target)},
				clickTargets: map[int]string{0: target},
			},
		}
		page := newFakePage(site)
		ctx := context.Background()
		require.NoError(t, page.Navigate(ctx, "https://app.test/a"))
		_, err := page.Elements(ctx)
		require.NoError(t, err)

		state := NewCrawlState("s1")
		discovered := NewInteractor(state, nil).Interact(ctx, page, "https://app.test/a",
			site["https://app.test/a"].elements)

		assert.Empty(t, discovered, "landing on %s is still the same page", target)
		assert.Len(t, page.navLog, 1, "no backtrack for %s", target)
		assert.Empty(t, state.Failures)
	}
}

func TestExplorerCancelledContextAborts(t *testing.T) {
	site := map[string]fakeSite{"https://app.test/a": {}}
	page := newFakePage(site)
	store := &fakeStore{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestExplorer(page, store, testCrawlerConfig()).Run(ctx, "https://app.test/a")
	require.Error(t, err)
	assert.Equal(t, schemas.StatusAborted, summary.Status)
}

func TestExplorerSeedsExploredAfterStart(t *testing.T) {
	site := map[string]fakeSite{
		"https://app.test/a":      {},
		"https://app.test/seed-1": {},
		"https://app.test/seed-2": {},
	}
	page := newFakePage(site)
	store := &fakeStore{}

	explorer := NewExplorer(page, store, nil, nil, testCrawlerConfig(), config.AuthConfig{},
		[]string{"https://app.test/seed-1", "https://app.test/seed-2"}, nil)
	_, err := explorer.Run(context.Background(), "https://app.test/a")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://app.test/a",
		"https://app.test/seed-1",
		"https://app.test/seed-2",
	}, store.screenURLs())
}
