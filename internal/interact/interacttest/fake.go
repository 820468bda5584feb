// Package interacttest provides a scripted in-memory Navigator for tests
// that exercise the interaction engine without a real browser.
package interacttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// ErrNotFound is returned by waits and reads when no element is scripted for
// the requested locator.
var ErrNotFound = errors.New("interacttest: element not scripted")

// Element describes the scripted state behind one locator key.
type Element struct {
	Visible  bool
	Editable bool
	Value    string
	Text     string
	HTML     string
	// Texts backs the list reads for row-style locators.
	Texts []string
	// ClickErr and FillErr force action failures.
	ClickErr error
	FillErr  error
	// EchoFill makes Fill update Value, so readbacks see the typed text.
	// Leave false to simulate a field that drops input.
	EchoFill bool
}

// Fake is a scripted Navigator. Elements are keyed by Locator.String().
// All methods are safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	elements map[string]*Element

	// URL tracks the last navigated address.
	URL string
	// NavigateErr forces Navigate to fail.
	NavigateErr error
	// OnNavigate, when set, runs on every Navigate after URL is recorded.
	// Tests use it to mutate state between poll cycles.
	OnNavigate func(url string)

	Reloads   int
	Navigates []string
	Clicks    []string
	Fills     map[string]string
	NthClicks []int
	// Probes records every WaitPresent lookup in order.
	Probes []string
}

func New() *Fake {
	return &Fake{
		elements: make(map[string]*Element),
		Fills:    make(map[string]string),
	}
}

// Script registers (or replaces) the element behind loc.
func (f *Fake) Script(loc selectors.Locator, el Element) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[loc.String()] = &el
}

// Remove unscripts the element behind loc.
func (f *Fake) Remove(loc selectors.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, loc.String())
}

func (f *Fake) get(loc selectors.Locator) (*Element, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[loc.String()]
	return el, ok
}

func (f *Fake) WaitPresent(ctx context.Context, loc selectors.Locator, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.Probes = append(f.Probes, loc.String())
	f.mu.Unlock()
	if _, ok := f.get(loc); !ok {
		return ErrNotFound
	}
	return nil
}

func (f *Fake) WaitVisible(ctx context.Context, loc selectors.Locator, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := f.get(loc)
	if !ok || !el.Visible {
		return ErrNotFound
	}
	return nil
}

func (f *Fake) WaitStable(ctx context.Context, loc selectors.Locator, _ time.Duration) error {
	return f.WaitVisible(ctx, loc, 0)
}

func (f *Fake) WaitEditable(ctx context.Context, loc selectors.Locator, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := f.get(loc)
	if !ok || !el.Editable {
		return ErrNotFound
	}
	return nil
}

func (f *Fake) Click(ctx context.Context, loc selectors.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := f.get(loc)
	if !ok {
		return ErrNotFound
	}
	f.mu.Lock()
	f.Clicks = append(f.Clicks, loc.String())
	f.mu.Unlock()
	return el.ClickErr
}

func (f *Fake) Fill(ctx context.Context, loc selectors.Locator, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := f.get(loc)
	if !ok {
		return ErrNotFound
	}
	if el.FillErr != nil {
		return el.FillErr
	}
	f.mu.Lock()
	f.Fills[loc.String()] = text
	if el.EchoFill {
		el.Value = text
	}
	f.mu.Unlock()
	return nil
}

func (f *Fake) Value(ctx context.Context, loc selectors.Locator) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el, ok := f.get(loc)
	if !ok {
		return "", ErrNotFound
	}
	return el.Value, nil
}

func (f *Fake) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.Reloads++
	f.mu.Unlock()
	return nil
}

func (f *Fake) WaitQuiet(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Sleep returns immediately so retry and settle pauses cost tests nothing.
func (f *Fake) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	f.mu.Lock()
	f.URL = url
	f.Navigates = append(f.Navigates, url)
	hook := f.OnNavigate
	f.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return nil
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, nil
}

func (f *Fake) Texts(ctx context.Context, loc selectors.Locator) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, ok := f.get(loc)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]string(nil), el.Texts...), nil
}

func (f *Fake) Text(ctx context.Context, loc selectors.Locator) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el, ok := f.get(loc)
	if !ok {
		return "", ErrNotFound
	}
	return el.Text, nil
}

func (f *Fake) HTML(ctx context.Context, loc selectors.Locator) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el, ok := f.get(loc)
	if !ok {
		return "", ErrNotFound
	}
	return el.HTML, nil
}

func (f *Fake) ClickNth(ctx context.Context, loc selectors.Locator, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := f.get(loc); !ok {
		return ErrNotFound
	}
	f.mu.Lock()
	f.NthClicks = append(f.NthClicks, i)
	f.mu.Unlock()
	return nil
}
