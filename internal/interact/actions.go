// internal/interact/actions.go
package interact

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// Timing defaults for single-element actions. The state timeout bounds each
// precondition wait; the settle delay gives client-side handlers a beat to
// react before we verify anything.
const (
	defaultStateTimeout = 5 * time.Second
	defaultSettleDelay  = 1 * time.Second
	defaultQuietTimeout = 10 * time.Second
)

// ExecutorOptions tune the action executor. Zero values fall back to the
// package defaults above.
type ExecutorOptions struct {
	StateTimeout time.Duration
	SettleDelay  time.Duration
	QuietTimeout time.Duration
}

func (o ExecutorOptions) withDefaults() ExecutorOptions {
	if o.StateTimeout <= 0 {
		o.StateTimeout = defaultStateTimeout
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if o.QuietTimeout <= 0 {
		o.QuietTimeout = defaultQuietTimeout
	}
	return o
}

// Executor performs clicks and fills on located elements, enforcing the
// visible/stable/editable preconditions and verifying outcomes. Every
// failure mode surfaces as a boolean false; errors are consumed here.
type Executor struct {
	page   Page
	opts   ExecutorOptions
	logger *zap.Logger
}

// NewExecutor creates an Executor bound to a page.
func NewExecutor(page Page, opts ExecutorOptions, logger *zap.Logger) *Executor {
	return &Executor{
		page:   page,
		opts:   opts.withDefaults(),
		logger: logger.Named("executor"),
	}
}

// Click waits for the element to become visible and stop moving, dispatches
// the click, pauses for the settle delay, and then waits (best effort,
// bounded) for the network to go quiet. Any precondition timeout or dispatch
// failure yields false.
func (e *Executor) Click(ctx context.Context, loc selectors.Locator) bool {
	if err := e.page.WaitVisible(ctx, loc, e.opts.StateTimeout); err != nil {
		e.logger.Debug("Click precondition failed: not visible.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if err := e.page.WaitStable(ctx, loc, e.opts.StateTimeout); err != nil {
		e.logger.Debug("Click precondition failed: not stable.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if err := e.page.Click(ctx, loc); err != nil {
		e.logger.Debug("Click dispatch failed.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if err := e.page.Sleep(ctx, e.opts.SettleDelay); err != nil {
		return false
	}
	// Quiescence is a heuristic for "the page finished reacting"; a timeout
	// here does not fail the click.
	if err := e.page.WaitQuiet(ctx, e.opts.QuietTimeout); err != nil {
		e.logger.Debug("Network did not settle after click.", zap.String("locator", loc.String()), zap.Error(err))
	}
	e.logger.Debug("Click succeeded.", zap.String("locator", loc.String()))
	return true
}

// Fill waits for the element to become visible and editable, clears it,
// types text, pauses for the settle delay, and reads the field back. Success
// requires a byte-exact match between the readback and the intended text;
// this guards against sites that silently reject or truncate input.
func (e *Executor) Fill(ctx context.Context, loc selectors.Locator, text string) bool {
	if err := e.page.WaitVisible(ctx, loc, e.opts.StateTimeout); err != nil {
		e.logger.Debug("Fill precondition failed: not visible.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if err := e.page.WaitEditable(ctx, loc, e.opts.StateTimeout); err != nil {
		e.logger.Debug("Fill precondition failed: not editable.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if err := e.page.Fill(ctx, loc, text); err != nil {
		e.logger.Debug("Fill dispatch failed.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if err := e.page.Sleep(ctx, e.opts.SettleDelay); err != nil {
		return false
	}
	got, err := e.page.Value(ctx, loc)
	if err != nil {
		e.logger.Debug("Fill readback failed.", zap.String("locator", loc.String()), zap.Error(err))
		return false
	}
	if got != text {
		e.logger.Warn("Fill verification mismatch.",
			zap.String("locator", loc.String()),
			zap.Int("wrote_len", len(text)),
			zap.Int("read_len", len(got)))
		return false
	}
	e.logger.Debug("Fill succeeded.", zap.String("locator", loc.String()))
	return true
}
