package schemas

import "context"

// LocatorStore is the slice of the storage collaborator the crawl engine
// consumes: one registration per screen, one write per extracted element.
// Implemented by the pgx store and by the HTTP client in internal/service.
type LocatorStore interface {
	// RegisterScreen creates or resolves the screen for (session, url) and
	// returns its identifier. Idempotent per (session, url).
	RegisterScreen(ctx context.Context, screen Screen) (int64, error)
	// AddElement persists one locator record. The engine does not depend on
	// the returned id; duplicates by (screen, selector, text) are upserted.
	AddElement(ctx context.Context, el Element) (int64, error)
}

// Repository is the full storage contract served by the API layer. The crawl
// engine only ever sees the LocatorStore subset; the rest completes the data
// lifecycle for downstream consumers.
type Repository interface {
	LocatorStore

	VerifyElement(ctx context.Context, id int64, verified bool) error
	ListScreens(ctx context.Context, sessionID string) ([]Screen, error)
	ListElements(ctx context.Context, sessionID, elementType string) ([]Element, error)
	LatestSessionElements(ctx context.Context) ([]Element, error)
	ListSessions(ctx context.Context, limit int) ([]SessionInfo, error)
	ExportContext(ctx context.Context, sessionID string) (*ContextExport, error)
	SaveSummary(ctx context.Context, summary CrawlSummary) error
}
