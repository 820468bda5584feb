// internal/mail/inbox.go
package mail

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/n0xframe/tavreg-cli/internal/interact"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// ErrNoVerificationMail is returned when the polling window closes without a
// matching message landing in the inbox.
var ErrNoVerificationMail = errors.New("mail: verification message never arrived")

const (
	defaultPollInterval = 30 * time.Second
	defaultMaxWait      = 5 * time.Minute
	defaultLocateBudget = 15 * time.Second
	openSettleDelay     = 2 * time.Second
)

// InboxOptions tunes the polling loop. Zero values fall back to the webmail
// provider's sensible defaults.
type InboxOptions struct {
	// MailURL is the webmail inbox address to poll.
	MailURL string
	// SenderMarker identifies the verification message among inbox rows.
	// Matching is case-insensitive against row text.
	SenderMarker string
	// PollInterval is the pause between inbox refreshes.
	PollInterval time.Duration
	// MaxWait bounds the whole polling window.
	MaxWait time.Duration
	// LocateBudget bounds each selector lookup inside a poll cycle.
	LocateBudget time.Duration
}

func (o InboxOptions) withDefaults() InboxOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = defaultMaxWait
	}
	if o.LocateBudget <= 0 {
		o.LocateBudget = defaultLocateBudget
	}
	return o
}

// Inbox drives the webmail UI through a Navigator, looking for the
// verification message addressed to a freshly registered account.
type Inbox struct {
	nav      interact.Navigator
	finder   *interact.Finder
	registry selectors.Registry
	opts     InboxOptions
	logger   *zap.Logger
}

func NewInbox(nav interact.Navigator, registry selectors.Registry, opts InboxOptions, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inbox{
		nav:      nav,
		finder:   interact.NewFinder(nav, logger),
		registry: registry,
		opts:     opts.withDefaults(),
		logger:   logger.Named("inbox"),
	}
}

// AwaitVerificationLink polls the inbox until a message matching the sender
// marker (or the recipient's local part) appears, opens it, and extracts the
// confirmation link from its body. It returns ErrNoVerificationMail when the
// window closes empty.
func (in *Inbox) AwaitVerificationLink(ctx context.Context, recipient string) (string, error) {
	deadline := time.Now().Add(in.opts.MaxWait)
	limiter := rate.NewLimiter(rate.Every(in.opts.PollInterval), 1)

	localPart := recipient
	if at := strings.IndexByte(recipient, '@'); at > 0 {
		localPart = recipient[:at]
	}

	for poll := 1; ; poll++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			in.logger.Warn("polling window closed",
				zap.Int("polls", poll-1),
				zap.Duration("max_wait", in.opts.MaxWait))
			return "", ErrNoVerificationMail
		}

		link, found, err := in.checkOnce(ctx, localPart, poll)
		if err != nil {
			return "", err
		}
		if found {
			return link, nil
		}
	}
}

// checkOnce refreshes the inbox and inspects it a single time. A hard error
// aborts the whole poll loop; "nothing yet" is reported as found=false.
func (in *Inbox) checkOnce(ctx context.Context, localPart string, poll int) (string, bool, error) {
	if err := in.nav.Navigate(ctx, in.opts.MailURL); err != nil {
		return "", false, err
	}
	_ = in.nav.WaitQuiet(ctx, in.opts.LocateBudget)

	rowsSpec, ok := in.registry.Lookup(selectors.InboxRows)
	if !ok {
		return "", false, errors.New("mail: inbox rows selector not registered")
	}
	res := in.finder.Locate(ctx, rowsSpec, in.opts.LocateBudget)
	if !res.Found {
		in.logger.Debug("inbox empty", zap.Int("poll", poll))
		return "", false, nil
	}

	texts, err := in.nav.Texts(ctx, res.Locator)
	if err != nil {
		return "", false, err
	}
	idx := in.matchRow(texts, localPart)
	if idx < 0 {
		in.logger.Debug("no matching message",
			zap.Int("poll", poll),
			zap.Int("rows", len(texts)))
		return "", false, nil
	}

	in.logger.Info("verification message found",
		zap.Int("poll", poll),
		zap.Int("row", idx))
	link, err := in.openAndExtract(ctx, res.Locator, idx)
	if err != nil {
		return "", false, err
	}
	if link == "" {
		// The message matched but carried no usable link. Keep polling;
		// some providers deliver a placeholder before the real mail.
		in.logger.Warn("matched message without verification link", zap.Int("row", idx))
		return "", false, nil
	}
	return link, true, nil
}

// matchRow returns the index of the first inbox row that mentions either the
// sender marker or the recipient's local part, or -1.
func (in *Inbox) matchRow(texts []string, localPart string) int {
	marker := strings.ToLower(in.opts.SenderMarker)
	local := strings.ToLower(localPart)
	for i, t := range texts {
		row := strings.ToLower(t)
		if marker != "" && strings.Contains(row, marker) {
			return i
		}
		if local != "" && strings.Contains(row, local) {
			return i
		}
	}
	return -1
}

func (in *Inbox) openAndExtract(ctx context.Context, rows selectors.Locator, idx int) (string, error) {
	if err := in.nav.ClickNth(ctx, rows, idx); err != nil {
		return "", err
	}
	_ = in.nav.Sleep(ctx, openSettleDelay)

	bodySpec, ok := in.registry.Lookup(selectors.MessageBody)
	if !ok {
		return "", errors.New("mail: message body selector not registered")
	}
	res := in.finder.Locate(ctx, bodySpec, in.opts.LocateBudget)
	if !res.Found {
		return "", nil
	}

	// Prefer the raw markup: verification links commonly live in anchor
	// hrefs rather than visible text.
	body, err := in.nav.HTML(ctx, res.Locator)
	if err != nil || strings.TrimSpace(body) == "" {
		body, err = in.nav.Text(ctx, res.Locator)
		if err != nil {
			return "", err
		}
	} else {
		body = FlattenHTML(body)
	}

	link, ok := ExtractVerificationLink(body)
	if !ok {
		return "", nil
	}
	return link, nil
}
