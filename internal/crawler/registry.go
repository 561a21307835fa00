package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/uimap/uimap-cli/api/schemas"
)

// ScreenRegistry maps URLs to store-assigned screen ids, issuing at most one
// registration call per URL per session.
type ScreenRegistry struct {
	store  schemas.LocatorStore
	state  *CrawlState
	logger *zap.Logger
}

// NewScreenRegistry wires the registry to the storage collaborator and the
// session state holding the id cache.
func NewScreenRegistry(store schemas.LocatorStore, state *CrawlState, logger *zap.Logger) *ScreenRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreenRegistry{store: store, state: state, logger: logger.Named("ScreenRegistry")}
}

// Register resolves the screen id for the URL, registering it with the store
// on first sight and serving the cached id afterwards.
func (r *ScreenRegistry) Register(ctx context.Context, pageURL, title string) (int64, error) {
	if id, ok := r.state.ScreenID(pageURL); ok {
		return id, nil
	}

	screen := schemas.Screen{
		SessionID: r.state.SessionID,
		URL:       schemas.Truncate(pageURL),
		Name:      DeriveScreenName(pageURL),
		Title:     schemas.Truncate(title),
	}
	id, err := r.store.RegisterScreen(ctx, screen)
	if err != nil {
		return 0, fmt.Errorf("register screen %s: %w", pageURL, err)
	}

	r.state.CacheScreenID(pageURL, id)
	r.state.Screens++
	r.logger.Debug("Registered screen",
		zap.String("url", pageURL), zap.Int64("screen_id", id))
	return id, nil
}

// DeriveScreenName turns a URL into a short snake_case screen label from the
// last meaningful path segment, "home" for the root.
func DeriveScreenName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "home"
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return "home"
	}
	name := strings.ToLower(last)
	for _, sep := range []string{"-", ".", " "} {
		name = strings.ReplaceAll(name, sep, "_")
	}
	return name
}
