package crawler

import "context"

// ElementInfo is the raw, browser-side view of one DOM node as returned by a
// single extraction pass. Index is the node's position in DOM document order
// within that pass; it is also how the node is addressed for clicking.
type ElementInfo struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Href        string `json:"href"`
	Text        string `json:"text"`
	AriaLabel   string `json:"ariaLabel"`
	DataTestID  string `json:"dataTestId"`
	Role        string `json:"role"`
	Placeholder string `json:"placeholder"`
	OnClick     bool   `json:"onClick"`
	Visible     bool   `json:"visible"`
	Disabled    bool   `json:"disabled"`
}

// Page is the single browser resource a crawl session drives. Implementations
// are not safe for concurrent use; one session owns its page exclusively.
type Page interface {
	// Navigate loads the given URL and waits for the document to settle.
	Navigate(ctx context.Context, url string) error
	// URL reports the page's current address.
	URL(ctx context.Context) (string, error)
	// Title reports the current document title.
	Title(ctx context.Context) (string, error)
	// Elements runs one extraction pass and returns every candidate node in
	// DOM document order. Indexes are only valid until the next pass.
	Elements(ctx context.Context) ([]ElementInfo, error)
	// Click clicks the node tagged with the given extraction index and
	// returns the page URL observed after the click settles.
	Click(ctx context.Context, index int) (string, error)
	// Fill types value into the node tagged with the given extraction index.
	Fill(ctx context.Context, index int, value string) error
	// Close releases the underlying browser resources.
	Close() error
}
