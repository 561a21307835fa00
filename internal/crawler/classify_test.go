package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsClickable(t *testing.T) {
	assert.True(t, IsClickable(ElementInfo{Tag: "a"}))
	assert.True(t, IsClickable(ElementInfo{Tag: "BUTTON"}))
	assert.True(t, IsClickable(ElementInfo{Tag: "select"}))
	assert.True(t, IsClickable(ElementInfo{Tag: "div", Role: "button"}))
	assert.True(t, IsClickable(ElementInfo{Tag: "li", Role: "menuitem"}))
	assert.True(t, IsClickable(ElementInfo{Tag: "div", OnClick: true}))

	assert.False(t, IsClickable(ElementInfo{Tag: "div"}))
	assert.False(t, IsClickable(ElementInfo{Tag: "span", Role: "presentation"}))
}

func TestIsDestructive(t *testing.T) {
	destructive := []ElementInfo{
		{Tag: "button", Text: "Logout"},
		{Tag: "button", Text: "Log Out"},
		{Tag: "a", Text: "Sign out", Href: "/bye"},
		{Tag: "button", Text: "Delete account"},
		{Tag: "button", Text: "REMOVE ITEM"},
		{Tag: "a", Text: "unsubscribe"},
		{Tag: "button", ID: "logout-btn"},
		{Tag: "a", Href: "/auth/logout"},
		{Tag: "button", AriaLabel: "Delete this row"},
		{Tag: "button", DataTestID: "remove-widget"},
	}
	for _, el := range destructive {
		assert.True(t, IsDestructive(el), "expected destructive: %+v", el)
	}

	safe := []ElementInfo{
		{Tag: "button", Text: "Login"},
		{Tag: "a", Text: "Sign in", Href: "/signin"},
		{Tag: "button", Text: "Save"},
	}
	for _, el := range safe {
		assert.False(t, IsDestructive(el), "expected safe: %+v", el)
	}
}

func TestIsVisibleTrustsExtractedFlag(t *testing.T) {
	assert.True(t, IsVisible(ElementInfo{Visible: true}))
	assert.False(t, IsVisible(ElementInfo{Visible: false}))
}
