package crawler

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/uimap/uimap-cli/api/schemas"
)

// Extractor turns one extraction pass over a page into locator records in
// the store. Each unique element costs one store write; there is no batching.
type Extractor struct {
	store  schemas.LocatorStore
	state  *CrawlState
	logger *zap.Logger
}

// NewExtractor wires the extractor to the storage collaborator.
func NewExtractor(store schemas.LocatorStore, state *CrawlState, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{store: store, state: state, logger: logger.Named("Extractor")}
}

// Extract filters the pass down to visible elements carrying at least one
// identifying hook, dedupes them by page signature, and submits one locator
// per survivor. A single element's failure is recorded and skipped; the pass
// always runs to completion.
func (e *Extractor) Extract(ctx context.Context, pageURL string, screenID int64, elements []ElementInfo) int {
	ledger := make(pageLedger)
	extracted := 0

	for _, el := range elements {
		if !IsVisible(el) {
			continue
		}
		if strings.TrimSpace(el.Text) == "" && el.ID == "" && el.Href == "" {
			continue
		}
		if !ledger.add(PageSignature(el)) {
			continue
		}

		loc := BuildSelector(el)
		record := schemas.Element{
			ScreenID:         screenID,
			Name:             schemas.Truncate(DeriveName(el)),
			Type:             ElementType(el),
			ElementID:        schemas.Truncate(el.ID),
			NameAttr:         schemas.Truncate(el.Name),
			DataTestID:       schemas.Truncate(el.DataTestID),
			AriaLabel:        schemas.Truncate(el.AriaLabel),
			Role:             el.Role,
			CSSSelector:      schemas.Truncate(loc.CSS),
			XPath:            schemas.Truncate(loc.XPath),
			TextContent:      schemas.Truncate(strings.TrimSpace(el.Text)),
			StabilityScore:   StabilityScore(loc.Priority),
			SelectorPriority: loc.Priority,
		}

		if _, err := e.store.AddElement(ctx, record); err != nil {
			e.state.RecordFailure(schemas.FailurePersistence, pageURL, record.Name, err)
			e.logger.Warn("Failed to persist element, continuing",
				zap.String("url", pageURL), zap.String("element", record.Name), zap.Error(err))
			continue
		}
		extracted++
	}

	e.state.Elements += extracted
	e.logger.Debug("Extraction pass complete",
		zap.String("url", pageURL),
		zap.Int("candidates", len(elements)),
		zap.Int("extracted", extracted))
	return extracted
}
