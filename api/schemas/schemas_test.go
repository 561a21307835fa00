package schemas

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateClipsByCharacterNotByte(t *testing.T) {
	// 200 three-byte runes is 600 bytes but only 200 characters, well under
	// the bound; it must pass through untouched.
	short := strings.Repeat("日", 200)
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("日", 600)
	got := Truncate(long)
	assert.Equal(t, MaxFieldLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got), "truncation must not split a rune")

	ascii := strings.Repeat("x", 600)
	assert.Len(t, Truncate(ascii), MaxFieldLength)

	exact := strings.Repeat("y", MaxFieldLength)
	assert.Equal(t, exact, Truncate(exact))
}

func TestJSONEncodersAgreeOnZeroTimestamps(t *testing.T) {
	el := Element{
		ScreenID:    7,
		Name:        "Submit",
		Type:        "button",
		CSSSelector: `[data-testid="submit"]`,
		XPath:       `//button[@data-testid="submit"]`,
	}
	std, err := json.Marshal(el)
	require.NoError(t, err)
	fast, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(el)
	require.NoError(t, err)
	assert.JSONEq(t, string(std), string(fast))

	sc := Screen{SessionID: "sess-1", URL: "https://app.test/a", Name: "home"}
	std, err = json.Marshal(sc)
	require.NoError(t, err)
	fast, err = jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(sc)
	require.NoError(t, err)
	assert.JSONEq(t, string(std), string(fast))
}
