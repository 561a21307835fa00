package schemas

import "time"

// MaxFieldLength bounds every text-bearing field persisted for a screen or
// element. Longer values are truncated, never rejected.
const MaxFieldLength = 500

// Truncate clips s to MaxFieldLength characters. The original data arrives
// pre-clipped from the extraction script; this is the authoritative bound
// before anything is written out. Clipping happens on rune boundaries so
// multi-byte text never becomes invalid UTF-8.
func Truncate(s string) string {
	if len(s) <= MaxFieldLength {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxFieldLength {
		return s
	}
	return string(runes[:MaxFieldLength])
}

// Screen is one logically distinct page of the target application, keyed by
// its normalized URL. Identity is assigned by the store.
type Screen struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Element is one interactive DOM node's extracted identity: enough selector
// and attribute material for a test generator to re-find the node.
type Element struct {
	ID               int64     `json:"id"`
	ScreenID         int64     `json:"screen_id"`
	Name             string    `json:"element_name"`
	Type             string    `json:"element_type"`
	ElementID        string    `json:"element_id,omitempty"`
	NameAttr         string    `json:"element_name_attr,omitempty"`
	DataTestID       string    `json:"data_testid,omitempty"`
	AriaLabel        string    `json:"aria_label,omitempty"`
	Role             string    `json:"role,omitempty"`
	CSSSelector      string    `json:"css_selector"`
	XPath            string    `json:"xpath"`
	TextContent      string    `json:"text_content,omitempty"`
	StabilityScore   int       `json:"stability_score"`
	SelectorPriority int       `json:"selector_priority"`
	Verified         bool      `json:"verified"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FailureKind classifies a swallowed crawl failure.
type FailureKind string

const (
	FailureNavigation     FailureKind = "navigation"
	FailureExtraction     FailureKind = "extraction"
	FailureInteraction    FailureKind = "interaction"
	FailureAuthentication FailureKind = "authentication"
	FailurePersistence    FailureKind = "persistence"
)

// Failure is a typed record of an error the crawl engine absorbed without
// aborting the traversal.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	URL    string      `json:"url,omitempty"`
	Detail string      `json:"detail,omitempty"`
	Err    string      `json:"error"`
	At     time.Time   `json:"at"`
}

// Session terminal statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

// CrawlSummary is the session-level output of one crawl.
type CrawlSummary struct {
	SessionID  string              `json:"session_id"`
	Screens    int                 `json:"screens_discovered"`
	Elements   int                 `json:"elements_extracted"`
	Clicks     int                 `json:"clicks_performed"`
	Failures   map[FailureKind]int `json:"failures,omitempty"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Duration is the wall-clock length of the session.
func (s *CrawlSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// SessionInfo is the per-session row returned by session listings.
type SessionInfo struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	TotalScreens  int       `json:"total_pages"`
	TotalElements int       `json:"total_elements"`
}

// ScreenExport is one screen with its elements nested, as consumed by
// downstream (LLM-facing) tooling.
type ScreenExport struct {
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

// ContextExport is the read-only aggregation of everything a session wrote.
type ContextExport struct {
	SessionID string         `json:"session_id"`
	Screens   []ScreenExport `json:"screens"`
}
