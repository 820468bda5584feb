// internal/interact/page.go
package interact

import (
	"context"
	"time"

	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// Page is the seam between the interaction engine and the concrete browser
// session. The chromedp-backed session implements it for real runs; tests
// substitute a scripted fake.
//
// Methods fail with an error for any reason the engine treats as "this
// attempt did not work" (element missing, precondition never reached,
// dispatch failure). The engine converts those into boolean outcomes; errors
// never escape a logical click/fill operation.
type Page interface {
	// WaitPresent blocks until an element matching loc exists in the
	// document, or the timeout elapses.
	WaitPresent(ctx context.Context, loc selectors.Locator, timeout time.Duration) error
	// WaitVisible blocks until the element is rendered and visible.
	WaitVisible(ctx context.Context, loc selectors.Locator, timeout time.Duration) error
	// WaitStable blocks until the element's layout box stops moving.
	WaitStable(ctx context.Context, loc selectors.Locator, timeout time.Duration) error
	// WaitEditable blocks until the element accepts text input (enabled,
	// not readonly).
	WaitEditable(ctx context.Context, loc selectors.Locator, timeout time.Duration) error

	// Click dispatches a click on the first element matching loc.
	Click(ctx context.Context, loc selectors.Locator) error
	// Fill clears the field matching loc and types text into it.
	Fill(ctx context.Context, loc selectors.Locator, text string) error
	// Value reads back the current value of the field matching loc.
	Value(ctx context.Context, loc selectors.Locator) (string, error)

	// Reload performs a full page reload; this is the engine's recovery
	// action between retry attempts.
	Reload(ctx context.Context) error
	// WaitQuiet blocks until network activity settles, bounded by timeout.
	// Returning an error on timeout is allowed; callers treat quiescence as
	// best effort.
	WaitQuiet(ctx context.Context, timeout time.Duration) error
	// Sleep pauses for d, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}

// Navigator extends Page with the operations the orchestration pipeline
// needs beyond single-element interaction.
type Navigator interface {
	Page

	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// Texts returns the visible text of every element matching loc.
	Texts(ctx context.Context, loc selectors.Locator) ([]string, error)
	// Text returns the visible text of the first element matching loc.
	Text(ctx context.Context, loc selectors.Locator) (string, error)
	// HTML returns the inner HTML of the first element matching loc.
	HTML(ctx context.Context, loc selectors.Locator) (string, error)
	// ClickNth clicks the i-th (zero-based) element matching loc.
	ClickNth(ctx context.Context, loc selectors.Locator, i int) error
}
