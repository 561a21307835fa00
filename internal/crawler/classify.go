package crawler

import "strings"

// clickableTags and clickableRoles define what the crawl considers worth
// interacting with. Everything else is extracted but never clicked.
var clickableTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
	"label":    true,
}

var clickableRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"tab":      true,
	"menuitem": true,
}

// destructiveMarkers are matched case-insensitively against an element's
// accessible text and identifying attributes. A hit disqualifies the element
// from interaction no matter how clickable it looks.
var destructiveMarkers = []string{
	"logout",
	"log out",
	"signout",
	"sign out",
	"delete",
	"remove",
	"unsubscribe",
}

// IsVisible reports whether the element rendered with a non-zero box and no
// hiding styles. The determination is made browser-side during extraction;
// this just reads the flag.
func IsVisible(el ElementInfo) bool {
	return el.Visible
}

// IsClickable reports whether the element is an interaction candidate, by
// tag, ARIA role, or an inline onclick handler.
func IsClickable(el ElementInfo) bool {
	if clickableTags[strings.ToLower(el.Tag)] {
		return true
	}
	if clickableRoles[strings.ToLower(el.Role)] {
		return true
	}
	return el.OnClick
}

// IsDestructive reports whether clicking the element risks mutating session
// or account state. Checks the visible text plus every identifying attribute,
// so an icon-only button named id="logout-btn" is still caught.
func IsDestructive(el ElementInfo) bool {
	haystack := strings.ToLower(strings.Join([]string{
		el.Text, el.ID, el.Name, el.AriaLabel, el.DataTestID, el.Href,
	}, " "))
	for _, marker := range destructiveMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}
