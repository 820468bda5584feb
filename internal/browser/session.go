// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/config"
	"github.com/n0xframe/tavreg-cli/internal/cookies"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

const (
	stablePollInterval = 100 * time.Millisecond
	quietPollInterval  = 500 * time.Millisecond
)

// Session is one isolated browser tab. It implements interact.Navigator so
// the interaction engine never touches chromedp directly.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	tabCtx    context.Context
	tabCancel context.CancelFunc

	onClose func()
}

func newSession(allocCtx, ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(allocCtx)
	id := uuid.NewString()
	s := &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger.Named("session").With(zap.String("session_id", id[:8])),
		tabCtx:    tabCtx,
		tabCancel: cancel,
	}
	// Materialize the tab now so a broken browser fails fast.
	if err := s.run(ctx, cfg.NavigationTimeout, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: opening tab: %w", err)
	}
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Close tears down the tab and releases the manager's session slot.
func (s *Session) Close() {
	s.tabCancel()
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
}

// run executes chromedp actions on this tab, bounded by both the caller's
// context and an optional timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// query maps a typed locator onto a chromedp selector. Text locators go
// through the DOM search API as XPath; everything else is plain CSS.
func query(loc selectors.Locator) (string, chromedp.QueryOption) {
	if css := loc.CSS(); css != "" {
		return css, chromedp.ByQuery
	}
	return loc.XPath(), chromedp.BySearch
}

// nodeExpr returns a JS expression evaluating to the first element matching
// loc, or null.
func nodeExpr(loc selectors.Locator) string {
	if css := loc.CSS(); css != "" {
		return fmt.Sprintf(`document.querySelector(%q)`, css)
	}
	return fmt.Sprintf(
		`document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
		loc.XPath())
}

// nodesExpr returns a JS expression evaluating to an array of all elements
// matching loc.
func nodesExpr(loc selectors.Locator) string {
	if css := loc.CSS(); css != "" {
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%q))`, css)
	}
	return fmt.Sprintf(`(() => {
		const snap = document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const out = [];
		for (let i = 0; i < snap.snapshotLength; i++) out.push(snap.snapshotItem(i));
		return out;
	})()`, loc.XPath())
}

func (s *Session) WaitPresent(ctx context.Context, loc selectors.Locator, timeout time.Duration) error {
	q, opt := query(loc)
	return s.run(ctx, timeout, chromedp.WaitReady(q, opt))
}

func (s *Session) WaitVisible(ctx context.Context, loc selectors.Locator, timeout time.Duration) error {
	q, opt := query(loc)
	return s.run(ctx, timeout, chromedp.WaitVisible(q, opt))
}

// WaitEditable waits for the element to be enabled and then polls until it
// sheds any readonly state, which WaitEnabled alone does not catch.
func (s *Session) WaitEditable(ctx context.Context, loc selectors.Locator, timeout time.Duration) error {
	q, opt := query(loc)
	if err := s.run(ctx, timeout, chromedp.WaitEnabled(q, opt)); err != nil {
		return err
	}

	script := editableExpr(loc)
	deadline := time.Now().Add(timeout)
	for {
		var editable bool
		if err := s.run(ctx, timeout, chromedp.Evaluate(script, &editable)); err != nil {
			return err
		}
		if editable {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("browser: element %s stayed readonly", loc)
		}
		if err := s.Sleep(ctx, stablePollInterval); err != nil {
			return err
		}
	}
}

// editableExpr returns a JS expression that is true once the element exists,
// is not disabled, and carries no readonly state.
func editableExpr(loc selectors.Locator) string {
	return fmt.Sprintf(`(() => {
		const el = %s;
		return !!el && !el.disabled && !el.readOnly && !el.hasAttribute("readonly");
	})()`, nodeExpr(loc))
}

// WaitStable polls the element's bounding box until two consecutive samples
// agree, which filters out entrance animations and late layout shifts.
func (s *Session) WaitStable(ctx context.Context, loc selectors.Locator, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return "";
		const r = el.getBoundingClientRect();
		return [r.x, r.y, r.width, r.height].join(",");
	})()`, nodeExpr(loc))

	deadline := time.Now().Add(timeout)
	last := ""
	for {
		var rect string
		if err := s.run(ctx, timeout, chromedp.Evaluate(script, &rect)); err != nil {
			return err
		}
		if rect != "" && rect == last {
			return nil
		}
		last = rect
		if time.Now().After(deadline) {
			return fmt.Errorf("browser: element %s never settled", loc)
		}
		if err := s.Sleep(ctx, stablePollInterval); err != nil {
			return err
		}
	}
}

func (s *Session) Click(ctx context.Context, loc selectors.Locator) error {
	q, opt := query(loc)
	return s.run(ctx, s.cfg.NavigationTimeout, chromedp.Click(q, opt))
}

func (s *Session) Fill(ctx context.Context, loc selectors.Locator, text string) error {
	q, opt := query(loc)
	return s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Clear(q, opt),
		chromedp.SendKeys(q, text, opt),
	)
}

func (s *Session) Value(ctx context.Context, loc selectors.Locator) (string, error) {
	q, opt := query(loc)
	var out string
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Value(q, &out, opt))
	return out, err
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, s.cfg.NavigationTimeout, chromedp.Reload())
}

// WaitQuiet waits for the document to finish loading and for the resource
// count to stop growing between samples. Best effort: a busy page returns an
// error at the deadline rather than blocking forever.
func (s *Session) WaitQuiet(ctx context.Context, timeout time.Duration) error {
	const script = `(() => {
		return document.readyState + ":" + performance.getEntriesByType("resource").length;
	})()`

	deadline := time.Now().Add(timeout)
	last := ""
	for {
		var state string
		if err := s.run(ctx, timeout, chromedp.Evaluate(script, &state)); err != nil {
			return err
		}
		if strings.HasPrefix(state, "complete:") && state == last {
			return nil
		}
		last = state
		if time.Now().After(deadline) {
			return errors.New("browser: network never went quiet")
		}
		if err := s.Sleep(ctx, quietPollInterval); err != nil {
			return err
		}
	}
}

func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.tabCtx.Done():
		return s.tabCtx.Err()
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url))
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Location(&url))
	return url, err
}

func (s *Session) Text(ctx context.Context, loc selectors.Locator) (string, error) {
	q, opt := query(loc)
	var out string
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Text(q, &out, opt))
	return out, err
}

func (s *Session) HTML(ctx context.Context, loc selectors.Locator) (string, error) {
	q, opt := query(loc)
	var out string
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.InnerHTML(q, &out, opt))
	return out, err
}

func (s *Session) Texts(ctx context.Context, loc selectors.Locator) ([]string, error) {
	script := fmt.Sprintf(`%s.map(el => el.innerText || el.textContent || "")`, nodesExpr(loc))
	var out []string
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(script, &out))
	return out, err
}

func (s *Session) ClickNth(ctx context.Context, loc selectors.Locator, i int) error {
	script := fmt.Sprintf(`(() => {
		const els = %s;
		if (%d >= els.length) return false;
		els[%d].click();
		return true;
	})()`, nodesExpr(loc), i, i)

	var clicked bool
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("browser: no element %d for %s", i, loc)
	}
	return nil
}

// SetCookies installs saved webmail cookies into the tab before navigation.
func (s *Session) SetCookies(ctx context.Context, cs []cookies.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cs))
	for _, c := range cs {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: sameSiteFromString(c.SameSite),
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return s.run(ctx, s.cfg.NavigationTimeout, storage.SetCookies(params))
}

// ExportCookies reads the tab's current cookie jar in the on-disk format.
func (s *Session) ExportCookies(ctx context.Context) ([]cookies.Cookie, error) {
	var out []cookies.Cookie
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.ActionFunc(func(cctx context.Context) error {
		raw, err := storage.GetCookies().Do(cctx)
		if err != nil {
			return err
		}
		for _, c := range raw {
			out = append(out, cookies.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	return out, err
}

func sameSiteFromString(v string) network.CookieSameSite {
	switch strings.ToLower(v) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
