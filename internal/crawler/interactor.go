package crawler

import (
	"context"

	"go.uber.org/zap"

	"github.com/uimap/uimap-cli/api/schemas"
)

// Interactor systematically clicks through a page's interactive elements,
// harvesting the URLs those clicks navigate to. After every navigating click
// it returns to the page it started from, so the next candidate is attempted
// against the original DOM.
type Interactor struct {
	state  *CrawlState
	logger *zap.Logger
}

// NewInteractor returns an interactor bound to the session state.
func NewInteractor(state *CrawlState, logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{state: state, logger: logger.Named("Interactor")}
}

// Interact walks the candidates in DOM order and clicks each visible,
// clickable, non-destructive element whose signature has not been clicked
// before, anywhere in the session. The signature is committed to the ledger
// before the click is attempted and stays committed even if the click fails.
// Returns the ordered list of new URLs the clicks navigated to.
func (i *Interactor) Interact(ctx context.Context, page Page, pageURL string, elements []ElementInfo) []string {
	var discovered []string

	for _, el := range elements {
		if !IsVisible(el) || !IsClickable(el) || el.Disabled {
			continue
		}
		if IsDestructive(el) {
			i.logger.Debug("Skipping destructive element",
				zap.String("url", pageURL), zap.String("text", el.Text))
			continue
		}

		sig := ClickSignature(pageURL, el)
		if !i.state.MarkClicked(sig) {
			continue
		}

		landedURL, err := page.Click(ctx, el.Index)
		i.state.Clicks++
		if err != nil {
			// A failed click counts as "no navigation"; move on.
			i.state.RecordFailure(schemas.FailureInteraction, pageURL, sig, err)
			i.logger.Debug("Click failed, continuing",
				zap.String("signature", sig), zap.Error(err))
			continue
		}

		if landedURL == "" {
			continue
		}
		normalized, err := NormalizeURL(landedURL)
		if err != nil {
			i.state.RecordFailure(schemas.FailureInteraction, landedURL, sig, err)
			continue
		}
		if normalized == pageURL {
			// Fragment jumps and slash respellings are still this page.
			continue
		}

		discovered = append(discovered, normalized)
		i.logger.Debug("Click navigated",
			zap.String("from", pageURL), zap.String("to", normalized))

		// Backtrack before touching the next candidate. If we cannot get
		// back, the remaining candidates on this page are unreachable.
		if err := page.Navigate(ctx, pageURL); err != nil {
			i.state.RecordFailure(schemas.FailureNavigation, pageURL, "backtrack", err)
			i.logger.Warn("Backtrack failed, abandoning remaining candidates",
				zap.String("url", pageURL), zap.Error(err))
			break
		}
		// The reload dropped the index attributes the extraction pass wrote
		// into the DOM; run a fresh pass so the remaining candidates stay
		// addressable by index.
		if _, err := page.Elements(ctx); err != nil {
			i.state.RecordFailure(schemas.FailureExtraction, pageURL, "retag", err)
			i.logger.Warn("Failed to re-tag page after backtrack, abandoning remaining candidates",
				zap.String("url", pageURL), zap.Error(err))
			break
		}
	}

	return discovered
}
