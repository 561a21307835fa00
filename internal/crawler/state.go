package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/uimap/uimap-cli/api/schemas"
)

// CrawlState carries everything one session accumulates: the three dedup
// ledgers, the URL to screen-id cache, swallowed failures, and counters. It
// is an explicit value threaded through the engine, never a package global,
// and is discarded when the session ends. All ledgers are monotonic; nothing
// is ever evicted.
type CrawlState struct {
	SessionID string

	visited   map[string]bool
	clicked   map[string]bool
	screenIDs map[string]int64

	Failures []schemas.Failure
	Screens  int
	Elements int
	Clicks   int
}

// NewCrawlState returns an empty state for the given session.
func NewCrawlState(sessionID string) *CrawlState {
	return &CrawlState{
		SessionID: sessionID,
		visited:   make(map[string]bool),
		clicked:   make(map[string]bool),
		screenIDs: make(map[string]int64),
	}
}

// NormalizeURL strips the fragment and a trailing slash so that trivially
// distinct spellings of one page collapse to one visited entry. Reports an
// error for URLs that cannot be parsed at all.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable url %q: %w", raw, err)
	}
	u.Fragment = ""
	s := u.String()
	if strings.HasSuffix(u.Path, "/") && u.Path != "/" {
		s = strings.TrimSuffix(s, "/")
	}
	return s, nil
}

// Visited reports whether the URL has already been explored this session.
func (s *CrawlState) Visited(url string) bool {
	return s.visited[url]
}

// MarkVisited records the URL as explored. Returns false if it was already
// in the set, so callers can treat the first marking as the visit.
func (s *CrawlState) MarkVisited(url string) bool {
	if s.visited[url] {
		return false
	}
	s.visited[url] = true
	return true
}

// ClickSignature is the global identity of one interaction candidate:
// the page URL, the element's DOM-order extraction index, and its tag.
// The index is a snapshot of the DOM at extraction time, so a page that
// mutates between extraction and click can alias two different nodes to one
// signature. Known limitation, carried deliberately.
func ClickSignature(pageURL string, el ElementInfo) string {
	return fmt.Sprintf("%s:%d:%s", pageURL, el.Index, strings.ToLower(el.Tag))
}

// MarkClicked enters the signature into the global click ledger. Returns
// false if it was already present. The entry is made before the click is
// attempted and is never withdrawn, even when the click fails.
func (s *CrawlState) MarkClicked(sig string) bool {
	if s.clicked[sig] {
		return false
	}
	s.clicked[sig] = true
	return true
}

// ScreenID returns the cached store id for a registered URL.
func (s *CrawlState) ScreenID(url string) (int64, bool) {
	id, ok := s.screenIDs[url]
	return id, ok
}

// CacheScreenID records the store id assigned to a URL's screen.
func (s *CrawlState) CacheScreenID(url string, id int64) {
	s.screenIDs[url] = id
}

// RecordFailure appends one typed failure record. Failures never abort the
// traversal; they only show up in the summary.
func (s *CrawlState) RecordFailure(kind schemas.FailureKind, url, detail string, err error) {
	f := schemas.Failure{Kind: kind, URL: url, Detail: detail, At: time.Now()}
	if err != nil {
		f.Err = err.Error()
	}
	s.Failures = append(s.Failures, f)
}

// Summary rolls the state up into the session's terminal output.
func (s *CrawlState) Summary(status string, started, finished time.Time) *schemas.CrawlSummary {
	summary := &schemas.CrawlSummary{
		SessionID:  s.SessionID,
		Screens:    s.Screens,
		Elements:   s.Elements,
		Clicks:     s.Clicks,
		Status:     status,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if len(s.Failures) > 0 {
		summary.Failures = make(map[schemas.FailureKind]int, len(s.Failures))
		for _, f := range s.Failures {
			summary.Failures[f.Kind]++
		}
	}
	return summary
}

// pageLedger dedupes elements within one extraction pass by their content
// signature. Scoped to a single page visit.
type pageLedger map[string]bool

// PageSignature is the within-page identity of an element: tag, id, visible
// text, href. Two nodes that agree on all four yield one locator.
func PageSignature(el ElementInfo) string {
	return fmt.Sprintf("%s:%s:%s:%s",
		strings.ToLower(el.Tag), el.ID, strings.TrimSpace(el.Text), el.Href)
}

func (l pageLedger) add(sig string) bool {
	if l[sig] {
		return false
	}
	l[sig] = true
	return true
}
