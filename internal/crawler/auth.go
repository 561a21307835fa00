package crawler

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// loginPathMarkers trigger the authentication attempt when any of them
// appears in the start URL.
var loginPathMarkers = []string{"login", "signin", "auth"}

// LooksLikeLogin reports whether the URL smells like a login page.
func LooksLikeLogin(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range loginPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LoginStrategy attempts to authenticate on the given page. Implementations
// report mechanical failures only; whether the credentials were accepted is
// deliberately not distinguished, and the crawl proceeds either way.
type LoginStrategy interface {
	Attempt(ctx context.Context, page Page, username, password string) error
}

// FormLoginStrategy is the default heuristic: fill the first text or email
// input with the identifier, the first password input with the secret, click
// the first plausible submit control, and wait a bounded interval for the
// app to react.
type FormLoginStrategy struct {
	Wait   time.Duration
	Logger *zap.Logger
}

var errNoLoginForm = errors.New("no recognizable login form on page")

// Attempt performs one pass of the form heuristic.
func (s *FormLoginStrategy) Attempt(ctx context.Context, page Page, username, password string) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("FormLogin")

	elements, err := page.Elements(ctx)
	if err != nil {
		return err
	}

	userIdx, passIdx, submitIdx := -1, -1, -1
	for _, el := range elements {
		if !IsVisible(el) {
			continue
		}
		tag := strings.ToLower(el.Tag)
		typ := strings.ToLower(el.Type)
		switch {
		case userIdx < 0 && tag == "input" && (typ == "" || typ == "text" || typ == "email"):
			userIdx = el.Index
		case passIdx < 0 && tag == "input" && typ == "password":
			passIdx = el.Index
		case submitIdx < 0 && isSubmitCandidate(el):
			submitIdx = el.Index
		}
	}

	if passIdx < 0 || submitIdx < 0 {
		return errNoLoginForm
	}

	if userIdx >= 0 {
		if err := page.Fill(ctx, userIdx, username); err != nil {
			return err
		}
	}
	if err := page.Fill(ctx, passIdx, password); err != nil {
		return err
	}
	if _, err := page.Click(ctx, submitIdx); err != nil {
		return err
	}

	logger.Info("Submitted login form, waiting for application to settle")
	select {
	case <-time.After(s.Wait):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func isSubmitCandidate(el ElementInfo) bool {
	tag := strings.ToLower(el.Tag)
	typ := strings.ToLower(el.Type)
	if tag == "input" && typ == "submit" {
		return true
	}
	if tag != "button" {
		return false
	}
	if typ == "submit" || typ == "" {
		text := strings.ToLower(strings.TrimSpace(el.Text))
		return text == "" || strings.Contains(text, "log in") ||
			strings.Contains(text, "login") || strings.Contains(text, "sign in") ||
			strings.Contains(text, "submit") || strings.Contains(text, "continue")
	}
	return false
}
