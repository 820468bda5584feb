// internal/interact/locator.go
package interact

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// LocateResult reports the outcome of a registry lookup against the live
// page. A zero Found value is a normal, expected outcome, not an error; the
// retry controller decides what to do with it.
type LocateResult struct {
	Found   bool
	Locator selectors.Locator
}

// Finder resolves logical element names to live locators by walking a spec's
// candidate lists against the page.
type Finder struct {
	page   Page
	logger *zap.Logger
}

// NewFinder creates a Finder bound to a page.
func NewFinder(page Page, logger *zap.Logger) *Finder {
	return &Finder{page: page, logger: logger.Named("finder")}
}

// Locate tries each primary candidate in order, then each fallback
// candidate, and returns the first locator under which an element appears in
// the document. The timeout budget is split evenly across each list so total
// wait time stays bounded regardless of list length, trading per-candidate
// patience for overall responsiveness.
func (f *Finder) Locate(ctx context.Context, spec selectors.Spec, budget time.Duration) LocateResult {
	if res := f.tryList(ctx, spec.Primary, budget, "primary"); res.Found {
		return res
	}
	f.logger.Debug("All primary locators failed, trying fallbacks.",
		zap.String("element", string(spec.Name)))
	return f.tryList(ctx, spec.Fallback, budget, "fallback")
}

func (f *Finder) tryList(ctx context.Context, list []selectors.Locator, budget time.Duration, rank string) LocateResult {
	if len(list) == 0 {
		return LocateResult{}
	}
	share := budget / time.Duration(len(list))
	for _, loc := range list {
		if ctx.Err() != nil {
			return LocateResult{}
		}
		if err := f.page.WaitPresent(ctx, loc, share); err != nil {
			f.logger.Debug("Locator miss.",
				zap.String("rank", rank),
				zap.String("locator", loc.String()),
				zap.Error(err))
			continue
		}
		f.logger.Debug("Locator hit.",
			zap.String("rank", rank),
			zap.String("locator", loc.String()))
		return LocateResult{Found: true, Locator: loc}
	}
	return LocateResult{}
}
