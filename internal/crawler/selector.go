package crawler

import (
	"fmt"
	"regexp"
	"strings"
)

// Locator is the durable addressing produced for one element: a CSS selector
// and an XPath, plus the priority tier of the attribute they were built from
// (1 is most stable, 5 is a structural fallback).
type Locator struct {
	CSS      string
	XPath    string
	Priority int
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// BuildSelector derives a Locator from the element's extracted attributes,
// preferring test hooks over ids, ids over ARIA labels, and labels over
// anything content-derived. It never fails: an element with nothing stable
// gets a structural tag selector.
func BuildSelector(el ElementInfo) Locator {
	tag := strings.ToLower(el.Tag)

	if el.DataTestID != "" {
		return Locator{
			CSS:      fmt.Sprintf(`[data-testid=%s]`, cssString(el.DataTestID)),
			XPath:    fmt.Sprintf(`//%s[@data-testid=%s]`, tag, xpathString(el.DataTestID)),
			Priority: 1,
		}
	}
	if el.ID != "" {
		css := "#" + el.ID
		if !plainIdent.MatchString(el.ID) {
			css = fmt.Sprintf(`[id=%s]`, cssString(el.ID))
		}
		return Locator{
			CSS:      css,
			XPath:    fmt.Sprintf(`//%s[@id=%s]`, tag, xpathString(el.ID)),
			Priority: 1,
		}
	}
	if el.AriaLabel != "" {
		return Locator{
			CSS:      fmt.Sprintf(`%s[aria-label=%s]`, tag, cssString(el.AriaLabel)),
			XPath:    fmt.Sprintf(`//%s[@aria-label=%s]`, tag, xpathString(el.AriaLabel)),
			Priority: 2,
		}
	}
	if el.Name != "" {
		return Locator{
			CSS:      fmt.Sprintf(`%s[name=%s]`, tag, cssString(el.Name)),
			XPath:    fmt.Sprintf(`//%s[@name=%s]`, tag, xpathString(el.Name)),
			Priority: 2,
		}
	}
	if tag == "a" && el.Href != "" {
		return Locator{
			CSS:      fmt.Sprintf(`a[href=%s]`, cssString(el.Href)),
			XPath:    fmt.Sprintf(`//a[@href=%s]`, xpathString(el.Href)),
			Priority: 3,
		}
	}
	if text := strings.TrimSpace(el.Text); text != "" && len(text) <= 80 {
		if xp, ok := xpathText(text); ok {
			return Locator{
				CSS:      tag,
				XPath:    fmt.Sprintf(`//%s[normalize-space()=%s]`, tag, xp),
				Priority: 4,
			}
		}
	}

	// Structural fallback. Positional, brittle, but never absent.
	return Locator{
		CSS:      tag,
		XPath:    fmt.Sprintf(`//%s[%d]`, tag, el.Index+1),
		Priority: 5,
	}
}

// StabilityScore maps a locator priority tier to the 0-100 score persisted
// alongside the element, so downstream ranking does not need the tier table.
func StabilityScore(priority int) int {
	switch priority {
	case 1:
		return 100
	case 2:
		return 80
	case 3:
		return 60
	case 4:
		return 40
	default:
		return 20
	}
}

// DeriveName picks the best human-readable label for the element, falling
// back through its attributes to a generic tag-based name.
func DeriveName(el ElementInfo) string {
	for _, candidate := range []string{
		strings.TrimSpace(el.Text),
		el.AriaLabel,
		el.Placeholder,
		el.DataTestID,
		el.ID,
		el.Name,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return "unnamed_" + strings.ToLower(el.Tag)
}

// ElementType reports the element's functional type: the input type for
// inputs, the ARIA role when the tag alone says nothing, else the tag.
func ElementType(el ElementInfo) string {
	tag := strings.ToLower(el.Tag)
	if tag == "input" && el.Type != "" {
		return "input_" + strings.ToLower(el.Type)
	}
	if tag == "div" || tag == "span" {
		if role := strings.ToLower(el.Role); role != "" {
			return role
		}
	}
	return tag
}

// cssString quotes s for use in a CSS attribute selector.
func cssString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// xpathString quotes s as an XPath string literal, using concat() when the
// value mixes both quote characters.
func xpathString(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// xpathText quotes visible text for a normalize-space() comparison; reports
// false for text too hostile to embed.
func xpathText(text string) (string, bool) {
	if strings.ContainsAny(text, "\n\r") {
		return "", false
	}
	return xpathString(text), true
}
