// File: internal/browser/driver.go
// Description: The Driver abstraction the orchestrator talks to. The
// production implementation wraps chromedp; tests substitute fakes.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// Driver is one live browser session. Implementations must be safe to Close
// more than once; only the first call tears the session down.
type Driver interface {
	// Navigate loads url and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error

	// WaitClickable blocks until the element is visible and enabled.
	WaitClickable(ctx context.Context, loc Locator) error

	// WaitPresent blocks until the element exists in the DOM.
	WaitPresent(ctx context.Context, loc Locator) error

	// Click waits for the element to be clickable, then clicks it.
	Click(ctx context.Context, loc Locator) error

	// ClearAndType empties the element and types text into it.
	ClearAndType(ctx context.Context, loc Locator, text string) error

	// CurrentURL reports the top frame's URL.
	CurrentURL(ctx context.Context) (string, error)

	// PageContainsText reports whether the rendered document contains text,
	// case-insensitively.
	PageContainsText(ctx context.Context, text string) (bool, error)

	// Screenshot captures the viewport to the artifact directory and returns
	// the file path. Failures are reported but never abort the flow.
	Screenshot(ctx context.Context, label string) (string, error)

	Close() error
}

// Factory opens a fresh browser session. The orchestrator calls it once per
// run so a crashed browser never leaks into the next invocation.
type Factory func(ctx context.Context) (Driver, error)

// ErrElementNotFound marks failures to locate or interact with an element
// before its wait deadline.
var ErrElementNotFound = errors.New("element not found")

// ElementError carries the locator and operation that failed.
type ElementError struct {
	Op      string
	Locator Locator
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

func elementErr(op string, loc Locator, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrElementNotFound, err)
	}
	return &ElementError{Op: op, Locator: loc, Err: err}
}
