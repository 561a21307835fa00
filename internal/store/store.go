package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/uimap/uimap-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when an id or session has no row behind it.
var ErrNotFound = errors.New("store: not found")

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of schemas.Repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New verifies the connection and returns a ready store.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// RegisterScreen upserts the screen for (session, url) and returns its id.
// Re-registering refreshes title and name but never creates a second row.
func (s *Store) RegisterScreen(ctx context.Context, screen schemas.Screen) (int64, error) {
	query := `
        INSERT INTO screens (session_id, url, name, title)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (session_id, url) DO UPDATE SET
            name = EXCLUDED.name,
            title = EXCLUDED.title,
            updated_at = now()
        RETURNING id;
    `
	var id int64
	err := s.pool.QueryRow(ctx, query,
		screen.SessionID, screen.URL, screen.Name, screen.Title).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to register screen %s: %w", screen.URL, err)
	}
	return id, nil
}

// AddElement upserts one locator row, keyed by (screen, selector, text).
func (s *Store) AddElement(ctx context.Context, el schemas.Element) (int64, error) {
	query := `
        INSERT INTO elements (
            screen_id, element_name, element_type, element_id, element_name_attr,
            data_testid, aria_label, role, css_selector, xpath, text_content,
            stability_score, selector_priority
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (screen_id, css_selector, text_content) DO UPDATE SET
            element_name = EXCLUDED.element_name,
            stability_score = EXCLUDED.stability_score,
            selector_priority = EXCLUDED.selector_priority,
            updated_at = now()
        RETURNING id;
    `
	var id int64
	err := s.pool.QueryRow(ctx, query,
		el.ScreenID, el.Name, el.Type, el.ElementID, el.NameAttr,
		el.DataTestID, el.AriaLabel, el.Role, el.CSSSelector, el.XPath,
		el.TextContent, el.StabilityScore, el.SelectorPriority).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to add element %q: %w", el.Name, err)
	}
	return id, nil
}

// VerifyElement flips the verified flag on one locator.
func (s *Store) VerifyElement(ctx context.Context, id int64, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE elements SET verified = $2, updated_at = now() WHERE id = $1;`,
		id, verified)
	if err != nil {
		return fmt.Errorf("failed to update element %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListScreens returns the screens of one session, oldest first.
func (s *Store) ListScreens(ctx context.Context, sessionID string) ([]schemas.Screen, error) {
	query := `
        SELECT id, session_id, url, name, title, created_at, updated_at
        FROM screens
        WHERE session_id = $1
        ORDER BY id ASC;
    `
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query screens: %w", err)
	}
	defer rows.Close()

	var screens []schemas.Screen
	for rows.Next() {
		var sc schemas.Screen
		if err := rows.Scan(&sc.ID, &sc.SessionID, &sc.URL, &sc.Name, &sc.Title,
			&sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan screen row: %w", err)
		}
		screens = append(screens, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during screen iteration: %w", err)
	}
	return screens, nil
}

const elementColumns = `
    e.id, e.screen_id, e.element_name, e.element_type, e.element_id,
    e.element_name_attr, e.data_testid, e.aria_label, e.role,
    e.css_selector, e.xpath, e.text_content, e.stability_score,
    e.selector_priority, e.verified, e.created_at, e.updated_at
`

// ListElements returns locators for a session, optionally filtered by
// element type. Empty sessionID means all sessions.
func (s *Store) ListElements(ctx context.Context, sessionID, elementType string) ([]schemas.Element, error) {
	query := `
        SELECT ` + elementColumns + `
        FROM elements e
        JOIN screens sc ON sc.id = e.screen_id
        WHERE ($1 = '' OR sc.session_id = $1)
          AND ($2 = '' OR e.element_type = $2)
        ORDER BY e.id ASC;
    `
	rows, err := s.pool.Query(ctx, query, sessionID, elementType)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}
	defer rows.Close()
	return scanElements(rows)
}

// LatestSessionElements returns the locators of the most recently started
// session, or ErrNotFound when nothing has been crawled yet.
func (s *Store) LatestSessionElements(ctx context.Context) ([]schemas.Element, error) {
	var sessionID string
	err := s.pool.QueryRow(ctx,
		`SELECT session_id FROM screens ORDER BY created_at DESC, id DESC LIMIT 1;`,
	).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest session: %w", err)
	}
	return s.ListElements(ctx, sessionID, "")
}

// ListSessions returns the most recent sessions with their screen and
// element counts.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]schemas.SessionInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT sc.session_id, MIN(sc.created_at) AS started,
               COUNT(DISTINCT sc.id), COUNT(e.id)
        FROM screens sc
        LEFT JOIN elements e ON e.screen_id = sc.id
        GROUP BY sc.session_id
        ORDER BY started DESC
        LIMIT $1;
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []schemas.SessionInfo
	for rows.Next() {
		var info schemas.SessionInfo
		if err := rows.Scan(&info.SessionID, &info.CreatedAt,
			&info.TotalScreens, &info.TotalElements); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during session iteration: %w", err)
	}
	return sessions, nil
}

// ExportContext assembles the full nested view of one session: every screen
// with its locators, in discovery order.
func (s *Store) ExportContext(ctx context.Context, sessionID string) (*schemas.ContextExport, error) {
	screens, err := s.ListScreens(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(screens) == 0 {
		return nil, ErrNotFound
	}

	elements, err := s.ListElements(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	byScreen := make(map[int64][]schemas.Element, len(screens))
	for _, el := range elements {
		byScreen[el.ScreenID] = append(byScreen[el.ScreenID], el)
	}

	export := &schemas.ContextExport{SessionID: sessionID}
	for _, sc := range screens {
		export.Screens = append(export.Screens, schemas.ScreenExport{
			Name:     sc.Name,
			URL:      sc.URL,
			Title:    sc.Title,
			Elements: byScreen[sc.ID],
		})
	}
	return export, nil
}

// SaveSummary upserts the session's terminal record.
func (s *Store) SaveSummary(ctx context.Context, summary schemas.CrawlSummary) error {
	failures, err := json.Marshal(summary.Failures)
	if err != nil {
		return fmt.Errorf("failed to marshal failure counts: %w", err)
	}
	query := `
        INSERT INTO crawl_sessions (
            session_id, status, screens_discovered, elements_extracted,
            clicks_performed, failures, started_at, finished_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (session_id) DO UPDATE SET
            status = EXCLUDED.status,
            screens_discovered = EXCLUDED.screens_discovered,
            elements_extracted = EXCLUDED.elements_extracted,
            clicks_performed = EXCLUDED.clicks_performed,
            failures = EXCLUDED.failures,
            finished_at = EXCLUDED.finished_at;
    `
	if _, err := s.pool.Exec(ctx, query,
		summary.SessionID, summary.Status, summary.Screens, summary.Elements,
		summary.Clicks, failures, summary.StartedAt.UTC(), summary.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save crawl summary: %w", err)
	}
	return nil
}

func scanElements(rows pgx.Rows) ([]schemas.Element, error) {
	var elements []schemas.Element
	for rows.Next() {
		var el schemas.Element
		if err := rows.Scan(
			&el.ID, &el.ScreenID, &el.Name, &el.Type, &el.ElementID,
			&el.NameAttr, &el.DataTestID, &el.AriaLabel, &el.Role,
			&el.CSSSelector, &el.XPath, &el.TextContent, &el.StabilityScore,
			&el.SelectorPriority, &el.Verified, &el.CreatedAt, &el.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan element row: %w", err)
		}
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during element iteration: %w", err)
	}
	return elements, nil
}
