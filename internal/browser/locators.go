// File: internal/browser/locators.go
// Description: Declarative element locators for the signin and reset pages.
// The defaults track the provider's current page structure; operators can
// override any of them through configuration when the pages change.
package browser

import (
	"fmt"
	"strings"
)

// Strategy names how a locator value is interpreted.
type Strategy string

const (
	ByID              Strategy = "id"
	ByCSS             Strategy = "css"
	ByXPath           Strategy = "xpath"
	ByPartialLinkText Strategy = "link"
)

// Locator identifies one element on a page.
type Locator struct {
	By    Strategy
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// LocatorSet holds every element the reset flow touches.
type LocatorSet struct {
	RootUserLink       Locator // entry link on the account signin page
	EmailInput         Locator // root user email field
	NextButton         Locator
	ForgotPasswordLink Locator
	NewPasswordInput   Locator // on the reset-link page
	ConfirmPassword    Locator
	SubmitButton       Locator
	PasswordInput      Locator // on the login verification page
	SignInButton       Locator
}

// DefaultLocators returns the locators for the current signin pages.
func DefaultLocators() LocatorSet {
	return LocatorSet{
		RootUserLink:       Locator{ByPartialLinkText, "Sign in using root user email"},
		EmailInput:         Locator{ByID, "resolving_input"},
		NextButton:         Locator{ByID, "next_button"},
		ForgotPasswordLink: Locator{ByPartialLinkText, "Forgot your password"},
		NewPasswordInput:   Locator{ByID, "newPassword"},
		ConfirmPassword:    Locator{ByID, "confirmPassword"},
		SubmitButton:       Locator{ByID, "submitButton"},
		PasswordInput:      Locator{ByID, "password"},
		SignInButton:       Locator{ByID, "signin_button"},
	}
}

// overrideKeys maps configuration keys to LocatorSet fields.
func (s *LocatorSet) fieldByKey(key string) *Locator {
	switch key {
	case "root_user_link":
		return &s.RootUserLink
	case "email_input":
		return &s.EmailInput
	case "next_button":
		return &s.NextButton
	case "forgot_password_link":
		return &s.ForgotPasswordLink
	case "new_password_input":
		return &s.NewPasswordInput
	case "confirm_password":
		return &s.ConfirmPassword
	case "submit_button":
		return &s.SubmitButton
	case "password_input":
		return &s.PasswordInput
	case "signin_button":
		return &s.SignInButton
	default:
		return nil
	}
}

// ApplyOverrides replaces individual locators with "strategy=value" entries
// from configuration, e.g. {"next_button": "css=button[type=submit]"}.
func (s *LocatorSet) ApplyOverrides(overrides map[string]string) error {
	for key, raw := range overrides {
		field := s.fieldByKey(key)
		if field == nil {
			return fmt.Errorf("unknown locator override %q", key)
		}
		loc, err := ParseLocator(raw)
		if err != nil {
			return fmt.Errorf("locator override %q: %w", key, err)
		}
		*field = loc
	}
	return nil
}

// ParseLocator parses a "strategy=value" string into a Locator.
func ParseLocator(raw string) (Locator, error) {
	by, value, ok := strings.Cut(raw, "=")
	if !ok || value == "" {
		return Locator{}, fmt.Errorf("expected strategy=value, got %q", raw)
	}
	switch Strategy(by) {
	case ByID, ByCSS, ByXPath, ByPartialLinkText:
		return Locator{By: Strategy(by), Value: value}, nil
	default:
		return Locator{}, fmt.Errorf("unknown locator strategy %q", by)
	}
}
