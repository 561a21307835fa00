package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uimap/uimap-cli/api/schemas"
	"github.com/uimap/uimap-cli/internal/config"
)

// frame is one unit of pending traversal work.
type frame struct {
	url   string
	depth int
}

// Explorer drives one crawl session: an explicit depth-first work stack over
// pages, with extraction and interaction on each. The stack replaces the
// obvious mutual recursion so the traversal state is a value, not a call
// tree; children are pushed in reverse discovery order, which keeps the
// visit order identical to the recursive left-to-right walk.
type Explorer struct {
	page    Page
	store   schemas.LocatorStore
	scope   ScopeManager
	login   LoginStrategy
	limiter *rate.Limiter
	cfg     config.CrawlerConfig
	creds   config.AuthConfig
	seeds   []string
	logger  *zap.Logger
}

// NewExplorer assembles the engine. login may be nil to disable the
// authentication attempt; seeds are extra start URLs explored at depth 1.
func NewExplorer(page Page, store schemas.LocatorStore, scope ScopeManager, login LoginStrategy,
	cfg config.CrawlerConfig, creds config.AuthConfig, seeds []string, logger *zap.Logger) *Explorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.NavPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.NavPerSecond), 1)
	}
	return &Explorer{
		page:    page,
		store:   store,
		scope:   scope,
		login:   login,
		limiter: limiter,
		cfg:     cfg,
		creds:   creds,
		seeds:   seeds,
		logger:  logger.Named("Explorer"),
	}
}

// Run crawls from startURL until the work stack drains, the depth bound
// prunes everything left, or ctx is cancelled. Every absorbable failure is
// recorded and skipped; the only way out early is losing the page resource
// or the context. Always returns a summary, even alongside an error.
func (e *Explorer) Run(ctx context.Context, startURL string) (*schemas.CrawlSummary, error) {
	started := time.Now()
	state := NewCrawlState(uuid.NewString())
	registry := NewScreenRegistry(e.store, state, e.logger)
	extractor := NewExtractor(e.store, state, e.logger)
	interactor := NewInteractor(state, e.logger)

	start, err := NormalizeURL(startURL)
	if err != nil {
		return state.Summary(schemas.StatusFailed, started, time.Now()),
			fmt.Errorf("invalid start URL: %w", err)
	}

	e.logger.Info("Starting crawl session",
		zap.String("session_id", state.SessionID),
		zap.String("start_url", start),
		zap.Int("max_depth", e.cfg.MaxDepth))

	e.authenticate(ctx, state, start)

	// Seeds sit under the start frame so the start page is explored first.
	stack := make([]frame, 0, len(e.seeds)+1)
	for i := len(e.seeds) - 1; i >= 0; i-- {
		if seed, ok := e.admissible(e.seeds[i]); ok {
			stack = append(stack, frame{url: seed, depth: 1})
		}
	}
	stack = append(stack, frame{url: start, depth: 0})

	for len(stack) > 0 {
		if ctx.Err() != nil {
			e.logger.Warn("Crawl cancelled", zap.Error(ctx.Err()))
			return state.Summary(schemas.StatusAborted, started, time.Now()), ctx.Err()
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.depth > e.cfg.MaxDepth {
			continue
		}
		if !state.MarkVisited(top.url) {
			continue
		}

		children := e.explorePage(ctx, state, registry, extractor, interactor, top)

		// Reverse push preserves left-to-right DOM discovery order.
		for i := len(children) - 1; i >= 0; i-- {
			if child, ok := e.admissible(children[i]); ok && !state.Visited(child) {
				stack = append(stack, frame{url: child, depth: top.depth + 1})
			}
		}
	}

	summary := state.Summary(schemas.StatusCompleted, started, time.Now())
	e.logger.Info("Crawl session complete",
		zap.String("session_id", summary.SessionID),
		zap.Int("screens", summary.Screens),
		zap.Int("elements", summary.Elements),
		zap.Int("clicks", summary.Clicks),
		zap.Duration("duration", summary.Duration()))
	return summary, nil
}

// explorePage visits one frame: navigate, register, extract, interact.
// Returns the URLs discovered by interaction, in DOM order.
func (e *Explorer) explorePage(ctx context.Context, state *CrawlState, registry *ScreenRegistry,
	extractor *Extractor, interactor *Interactor, f frame) []string {

	if err := e.waitNav(ctx); err != nil {
		return nil
	}
	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
	err := e.page.Navigate(navCtx, f.url)
	cancel()
	if err != nil {
		state.RecordFailure(schemas.FailureNavigation, f.url, "visit", err)
		e.logger.Warn("Navigation failed, skipping page",
			zap.String("url", f.url), zap.Int("depth", f.depth), zap.Error(err))
		return nil
	}
	e.settle(ctx)

	e.logger.Info("Exploring page", zap.String("url", f.url), zap.Int("depth", f.depth))

	title, err := e.page.Title(ctx)
	if err != nil {
		state.RecordFailure(schemas.FailureExtraction, f.url, "title", err)
	}

	screenID, screenOK := int64(0), false
	if id, err := registry.Register(ctx, f.url, title); err != nil {
		state.RecordFailure(schemas.FailurePersistence, f.url, "register", err)
		e.logger.Warn("Screen registration failed; page will be interacted but not extracted",
			zap.String("url", f.url), zap.Error(err))
	} else {
		screenID, screenOK = id, true
	}

	elements, err := e.page.Elements(ctx)
	if err != nil {
		state.RecordFailure(schemas.FailureExtraction, f.url, "elements", err)
		e.logger.Warn("Element extraction failed, skipping page content",
			zap.String("url", f.url), zap.Error(err))
		return nil
	}

	if screenOK {
		extractor.Extract(ctx, f.url, screenID, elements)
	}

	return interactor.Interact(ctx, e.page, f.url, elements)
}

// authenticate fires the login strategy once at session start when the entry
// URL looks like a login page. The outcome does not gate the crawl: an
// attempt that went nowhere is recorded and forgotten.
func (e *Explorer) authenticate(ctx context.Context, state *CrawlState, start string) {
	if e.login == nil || e.creds.Username == "" || !LooksLikeLogin(start) {
		return
	}

	e.logger.Info("Start URL looks like a login page, attempting authentication",
		zap.String("url", start))

	if err := e.page.Navigate(ctx, start); err != nil {
		state.RecordFailure(schemas.FailureAuthentication, start, "navigate", err)
		return
	}
	e.settle(ctx)

	if err := e.login.Attempt(ctx, e.page, e.creds.Username, e.creds.Password); err != nil {
		state.RecordFailure(schemas.FailureAuthentication, start, "attempt", err)
		e.logger.Warn("Authentication attempt failed, proceeding unauthenticated",
			zap.Error(err))
		return
	}
	e.logger.Info("Authentication attempted, proceeding with crawl")
}

// admissible normalizes a discovered URL and applies the scope check.
func (e *Explorer) admissible(raw string) (string, bool) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", false
	}
	if e.scope != nil && !e.scope.IsInScope(u) {
		return "", false
	}
	return normalized, true
}

func (e *Explorer) waitNav(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Explorer) settle(ctx context.Context) {
	if e.cfg.PostLoadWait <= 0 {
		return
	}
	select {
	case <-time.After(e.cfg.PostLoadWait):
	case <-ctx.Done():
	}
}
