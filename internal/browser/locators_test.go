package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLocators(t *testing.T) {
	locs := DefaultLocators()
	assert.Equal(t, Locator{ByID, "resolving_input"}, locs.EmailInput)
	assert.Equal(t, Locator{ByID, "newPassword"}, locs.NewPasswordInput)
	assert.Equal(t, Locator{ByPartialLinkText, "Forgot your password"}, locs.ForgotPasswordLink)
	assert.Equal(t, Locator{ByID, "signin_button"}, locs.SignInButton)
}

func TestParseLocator(t *testing.T) {
	cases := []struct {
		raw  string
		want Locator
		ok   bool
	}{
		{"id=next_button", Locator{ByID, "next_button"}, true},
		{"css=button[type=submit]", Locator{ByCSS, "button[type=submit]"}, true},
		{"xpath=//button[1]", Locator{ByXPath, "//button[1]"}, true},
		{"link=Forgot your password", Locator{ByPartialLinkText, "Forgot your password"}, true},
		{"next_button", Locator{}, false},
		{"name=foo", Locator{}, false},
		{"id=", Locator{}, false},
	}
	for _, tc := range cases {
		loc, err := ParseLocator(tc.raw)
		if !tc.ok {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, loc, tc.raw)
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Run("replaces named locators only", func(t *testing.T) {
		locs := DefaultLocators()
		err := locs.ApplyOverrides(map[string]string{
			"next_button": "css=button.signin-next",
		})
		require.NoError(t, err)
		assert.Equal(t, Locator{ByCSS, "button.signin-next"}, locs.NextButton)
		assert.Equal(t, Locator{ByID, "resolving_input"}, locs.EmailInput)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		locs := DefaultLocators()
		err := locs.ApplyOverrides(map[string]string{"no_such_element": "id=x"})
		assert.ErrorContains(t, err, "no_such_element")
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		locs := DefaultLocators()
		err := locs.ApplyOverrides(map[string]string{"next_button": "button"})
		assert.Error(t, err)
	})
}

func TestSelector(t *testing.T) {
	cases := []struct {
		loc  Locator
		want string
	}{
		{Locator{ByID, "next_button"}, "#next_button"},
		{Locator{ByCSS, "input.email"}, "input.email"},
		{Locator{ByXPath, "//form//button"}, "//form//button"},
		{Locator{ByPartialLinkText, "Forgot your password"}, `//a[contains(., "Forgot your password")]`},
	}
	for _, tc := range cases {
		sel, by := selector(tc.loc)
		assert.Equal(t, tc.want, sel)
		assert.NotNil(t, by)
	}
}

func TestArtifactPath(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "/tmp/artifacts/rootreset-captcha_detected-1700000000.png",
		artifactPath("/tmp/artifacts", "captcha_detected", at))
}
