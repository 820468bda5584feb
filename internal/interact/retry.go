// internal/interact/retry.go
package interact

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// Recovery and retry defaults. A full page reload (rather than a cheap local
// retry) is the recovery action because the most common failure mode against
// an external, occasionally slow-loading site is a half-rendered page; a
// local retry would keep hitting the same half-rendered DOM.
const (
	defaultMaxAttempts  = 3
	defaultLocateBudget = 30 * time.Second
	defaultReloadWait   = 2 * time.Second
)

// attemptState tracks where a logical operation sits in its lifecycle.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateRecovering
	stateSucceeded
	stateFailed
)

// RetrierOptions tune the retry controller. Zero values fall back to the
// package defaults.
type RetrierOptions struct {
	MaxAttempts  int
	LocateBudget time.Duration
	ReloadWait   time.Duration
	QuietTimeout time.Duration
}

func (o RetrierOptions) withDefaults() RetrierOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.LocateBudget <= 0 {
		o.LocateBudget = defaultLocateBudget
	}
	if o.ReloadWait <= 0 {
		o.ReloadWait = defaultReloadWait
	}
	if o.QuietTimeout <= 0 {
		o.QuietTimeout = defaultQuietTimeout
	}
	return o
}

// Retrier wraps locate-plus-act in a bounded retry loop. Terminal outcomes
// are booleans; nothing in this package panics or returns errors for
// expected conditions like "element never showed up".
type Retrier struct {
	page     Page
	finder   *Finder
	registry selectors.Registry
	opts     RetrierOptions
	logger   *zap.Logger
}

// NewRetrier creates a retry controller over a page and registry.
func NewRetrier(page Page, registry selectors.Registry, opts RetrierOptions, logger *zap.Logger) *Retrier {
	return &Retrier{
		page:     page,
		finder:   NewFinder(page, logger),
		registry: registry,
		opts:     opts.withDefaults(),
		logger:   logger.Named("retrier"),
	}
}

// Do runs one logical operation: locate the named element, hand the result
// to action, and on failure reload the page and try again, up to the
// configured attempt bound. The reload-and-wait recovery runs only between
// attempts, never after the final failure.
func (r *Retrier) Do(ctx context.Context, name selectors.Element, action func(LocateResult) bool) bool {
	spec, ok := r.registry.Lookup(name)
	if !ok {
		r.logger.Error("Unknown element requested.", zap.String("element", string(name)))
		return false
	}

	state := stateAttempting
	remaining := r.opts.MaxAttempts
	for state != stateSucceeded && state != stateFailed {
		switch state {
		case stateAttempting:
			attempt := r.opts.MaxAttempts - remaining + 1
			r.logger.Debug("Attempting element operation.",
				zap.String("element", string(name)),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.opts.MaxAttempts))

			res := r.finder.Locate(ctx, spec, r.opts.LocateBudget)
			if res.Found && action(res) {
				state = stateSucceeded
				continue
			}
			if !res.Found {
				r.logger.Debug("Element not found this attempt.", zap.String("element", string(name)))
			}
			remaining--
			if remaining <= 0 || ctx.Err() != nil {
				state = stateFailed
				continue
			}
			state = stateRecovering

		case stateRecovering:
			r.logger.Debug("Reloading page before retry.", zap.String("element", string(name)))
			if err := r.page.Reload(ctx); err != nil {
				r.logger.Warn("Page reload failed during recovery.", zap.Error(err))
			}
			if err := r.page.WaitQuiet(ctx, r.opts.QuietTimeout); err != nil {
				r.logger.Debug("Network did not settle after reload.", zap.Error(err))
			}
			if err := r.page.Sleep(ctx, r.opts.ReloadWait); err != nil {
				state = stateFailed
				continue
			}
			state = stateAttempting
		}
	}

	if state == stateFailed {
		r.logger.Warn("Element operation exhausted retries.",
			zap.String("element", string(name)),
			zap.Int("attempts", r.opts.MaxAttempts))
		return false
	}
	return true
}

// Click locates name and clicks it with exec's precondition gating,
// retrying with reloads.
func (r *Retrier) Click(ctx context.Context, exec *Executor, name selectors.Element) bool {
	return r.Do(ctx, name, func(res LocateResult) bool {
		return exec.Click(ctx, res.Locator)
	})
}

// Fill locates name and fills it with text, verifying the readback,
// retrying with reloads.
func (r *Retrier) Fill(ctx context.Context, exec *Executor, name selectors.Element, text string) bool {
	return r.Do(ctx, name, func(res LocateResult) bool {
		return exec.Fill(ctx, res.Locator, text)
	})
}
