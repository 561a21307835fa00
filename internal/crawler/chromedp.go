package crawler

import (
	"context"
	"fmt"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/uimap/uimap-cli/internal/config"
)

// extractScript enumerates every DOM node in document order, computes
// visibility browser-side, and tags each node with a data-uimap-index
// attribute so later clicks can address it without re-walking the DOM.
// Text is clipped in the page to keep the eval payload bounded.
const extractScript = `
(() => {
  const results = [];
  const nodes = document.querySelectorAll('*');
  let index = 0;
  for (const node of nodes) {
    const tag = node.tagName.toLowerCase();
    if (tag === 'script' || tag === 'style' || tag === 'meta' ||
        tag === 'link' || tag === 'head' || tag === 'html' || tag === 'noscript') {
      continue;
    }
    const style = window.getComputedStyle(node);
    const rect = node.getBoundingClientRect();
    const visible = rect.width > 0 && rect.height > 0 &&
      style.display !== 'none' && style.visibility !== 'hidden' &&
      style.opacity !== '0';
    node.setAttribute('data-uimap-index', String(index));
    results.push({
      index: index,
      tag: tag,
      id: node.id || '',
      name: node.getAttribute('name') || '',
      type: node.getAttribute('type') || '',
      href: node.getAttribute('href') || '',
      text: (node.innerText || node.value || '').trim().slice(0, 500),
      ariaLabel: node.getAttribute('aria-label') || '',
      dataTestId: node.getAttribute('data-testid') || '',
      role: node.getAttribute('role') || '',
      placeholder: node.getAttribute('placeholder') || '',
      onClick: node.hasAttribute('onclick'),
      visible: visible,
      disabled: node.disabled === true,
    });
    index++;
  }
  return results;
})()
`

// ChromePage implements Page on a single chromedp browser context. One
// instance serves one crawl session and must be Closed when it ends.
type ChromePage struct {
	ctx          context.Context
	cancelCtx    context.CancelFunc
	cancelAlloc  context.CancelFunc
	clickTimeout time.Duration
	logger       *zap.Logger
}

// NewChromePage launches a browser according to cfg and returns a page ready
// to navigate. The returned page inherits cancellation from parent.
func NewChromePage(parent context.Context, cfg config.BrowserConfig, clickTimeout time.Duration, logger *zap.Logger) (*ChromePage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ChromePage")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	// Starts the browser process eagerly so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	// Dismiss alert/confirm/prompt dialogs automatically; a blocked dialog
	// would otherwise stall every click that follows.
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if _, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(browserCtx,
					cdppage.HandleJavaScriptDialog(false)); err != nil {
					logger.Debug("Failed to dismiss dialog", zap.Error(err))
				}
			}()
		}
	})

	logger.Debug("Browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.Int("width", cfg.WindowWidth),
		zap.Int("height", cfg.WindowHeight))

	return &ChromePage{
		ctx:          browserCtx,
		cancelCtx:    cancelCtx,
		cancelAlloc:  cancelAlloc,
		clickTimeout: clickTimeout,
		logger:       logger,
	}, nil
}

// Navigate loads url and waits for the document body to be ready.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// URL reports the page's current location.
func (p *ChromePage) URL(ctx context.Context) (string, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Title reports the current document title.
func (p *ChromePage) Title(ctx context.Context) (string, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// Elements runs the extraction script and decodes one ElementInfo per node.
func (p *ChromePage) Elements(ctx context.Context) ([]ElementInfo, error) {
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	var elements []ElementInfo
	if err := chromedp.Run(runCtx, chromedp.Evaluate(extractScript, &elements)); err != nil {
		return nil, fmt.Errorf("extraction script: %w", err)
	}
	return elements, nil
}

// Click scrolls the indexed node into view, clicks it within the configured
// timeout, and reports the URL the page settled on.
func (p *ChromePage) Click(ctx context.Context, index int) (string, error) {
	sel := fmt.Sprintf(`[data-uimap-index="%d"]`, index)

	clickCtx, cancel := context.WithTimeout(ctx, p.clickTimeout)
	runCtx, cancelRun := p.bind(clickCtx)
	err := chromedp.Run(runCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	cancelRun()
	cancel()
	if err != nil {
		return "", fmt.Errorf("click %s: %w", sel, err)
	}

	// Give any triggered navigation a beat to commit before reading back.
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return p.URL(ctx)
}

// Fill focuses the indexed node and types value into it.
func (p *ChromePage) Fill(ctx context.Context, index int, value string) error {
	sel := fmt.Sprintf(`[data-uimap-index="%d"]`, index)
	runCtx, cancel := p.bind(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

// Close tears down the browser context and process.
func (p *ChromePage) Close() error {
	p.cancelCtx()
	p.cancelAlloc()
	return nil
}

// bind couples the browser context to the caller's context so cancellation
// or deadline from either side stops the CDP action.
func (p *ChromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
