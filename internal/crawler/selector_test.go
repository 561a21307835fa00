package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelectorPreferenceOrder(t *testing.T) {
	tests := []struct {
		name     string
		el       ElementInfo
		wantCSS  string
		wantXP   string
		wantPrio int
	}{
		{
			name:     "data-testid wins over everything",
			el:       ElementInfo{Tag: "button", DataTestID: "submit-btn", ID: "s1", Text: "Submit"},
			wantCSS:  `[data-testid="submit-btn"]`,
			wantXP:   `//button[@data-testid="submit-btn"]`,
			wantPrio: 1,
		},
		{
			name:     "id next",
			el:       ElementInfo{Tag: "input", ID: "email", AriaLabel: "Email"},
			wantCSS:  "#email",
			wantXP:   `//input[@id="email"]`,
			wantPrio: 1,
		},
		{
			name:     "hostile id falls back to attribute form",
			el:       ElementInfo{Tag: "div", ID: "x:y.z"},
			wantCSS:  `[id="x:y.z"]`,
			wantXP:   `//div[@id="x:y.z"]`,
			wantPrio: 1,
		},
		{
			name:     "aria-label",
			el:       ElementInfo{Tag: "button", AriaLabel: "Close dialog", Name: "close"},
			wantCSS:  `button[aria-label="Close dialog"]`,
			wantXP:   `//button[@aria-label="Close dialog"]`,
			wantPrio: 2,
		},
		{
			name:     "name attribute",
			el:       ElementInfo{Tag: "input", Name: "password"},
			wantCSS:  `input[name="password"]`,
			wantXP:   `//input[@name="password"]`,
			wantPrio: 2,
		},
		{
			name:     "anchor href",
			el:       ElementInfo{Tag: "a", Href: "/settings", Text: "Settings"},
			wantCSS:  `a[href="/settings"]`,
			wantXP:   `//a[@href="/settings"]`,
			wantPrio: 3,
		},
		{
			name:     "text content",
			el:       ElementInfo{Tag: "button", Text: "Save changes"},
			wantCSS:  "button",
			wantXP:   `//button[normalize-space()="Save changes"]`,
			wantPrio: 4,
		},
		{
			name:     "structural fallback",
			el:       ElementInfo{Tag: "div", Index: 4},
			wantCSS:  "div",
			wantXP:   "//div[5]",
			wantPrio: 5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loc := BuildSelector(tc.el)
			assert.Equal(t, tc.wantCSS, loc.CSS)
			assert.Equal(t, tc.wantXP, loc.XPath)
			assert.Equal(t, tc.wantPrio, loc.Priority)
		})
	}
}

func TestBuildSelectorNeverFails(t *testing.T) {
	loc := BuildSelector(ElementInfo{Tag: "span"})
	assert.NotEmpty(t, loc.CSS)
	assert.NotEmpty(t, loc.XPath)
	assert.Equal(t, 5, loc.Priority)
}

func TestXPathStringQuoting(t *testing.T) {
	assert.Equal(t, `"plain"`, xpathString("plain"))
	assert.Equal(t, `'say "hi"'`, xpathString(`say "hi"`))
	assert.Equal(t, `"it's fine"`, xpathString("it's fine"))
	// Mixed quotes require concat.
	assert.Equal(t, `concat("it's ", '"', "quoted", '"')`, xpathString(`it's "quoted"`))
}

func TestStabilityScore(t *testing.T) {
	assert.Equal(t, 100, StabilityScore(1))
	assert.Equal(t, 80, StabilityScore(2))
	assert.Equal(t, 60, StabilityScore(3))
	assert.Equal(t, 40, StabilityScore(4))
	assert.Equal(t, 20, StabilityScore(5))
	assert.Equal(t, 20, StabilityScore(99))
}

func TestDeriveName(t *testing.T) {
	assert.Equal(t, "Submit", DeriveName(ElementInfo{Tag: "button", Text: "  Submit  "}))
	assert.Equal(t, "Search box", DeriveName(ElementInfo{Tag: "input", AriaLabel: "Search box"}))
	assert.Equal(t, "Your email", DeriveName(ElementInfo{Tag: "input", Placeholder: "Your email"}))
	assert.Equal(t, "unnamed_div", DeriveName(ElementInfo{Tag: "DIV"}))
}

func TestElementType(t *testing.T) {
	assert.Equal(t, "input_email", ElementType(ElementInfo{Tag: "input", Type: "email"}))
	assert.Equal(t, "input", ElementType(ElementInfo{Tag: "input"}))
	assert.Equal(t, "button", ElementType(ElementInfo{Tag: "div", Role: "button"}))
	assert.Equal(t, "a", ElementType(ElementInfo{Tag: "A"}))
	assert.Equal(t, "span", ElementType(ElementInfo{Tag: "span"}))
}
