// File: internal/orchestrator/orchestrator.go
// Description: Runs the end-to-end registration pipeline. It is injected
// with a session factory and configured components via interfaces, making it
// decoupled and testable.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/account"
	"github.com/n0xframe/tavreg-cli/internal/config"
	"github.com/n0xframe/tavreg-cli/internal/interact"
	"github.com/n0xframe/tavreg-cli/internal/mail"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

// Outcome classifies how far one registration attempt got. Failures are
// ordinary results here, not errors; only infrastructure problems surface as
// RunResult.Err.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeSignupFailed Outcome = "signup_failed"
	OutcomeMailTimeout  Outcome = "mail_timeout"
	OutcomeVerifyFailed Outcome = "verify_failed"
	OutcomeKeyNotFound  Outcome = "key_not_found"
	OutcomePanic        Outcome = "panic"
)

// RunResult is the report for a single account attempt.
type RunResult struct {
	Email   string
	Key     string
	Outcome Outcome
	Err     error
}

// Summary aggregates a batch.
type Summary struct {
	Requested int
	Succeeded int
	Failed    int
	Results   []RunResult
}

// SessionFactory opens a fresh browser session for one pipeline run and
// returns it with its teardown. The factory is where ambient session state
// (saved webmail cookies) gets installed.
type SessionFactory func(ctx context.Context) (interact.Navigator, func(), error)

// RecordSink persists one finished registration.
type RecordSink interface {
	Append(account.Record) error
}

// IdentitySource mints the accounts to register.
type IdentitySource interface {
	Next() (account.Identity, error)
}

// keyPattern matches the service's API key format inside scraped text.
var keyPattern = regexp.MustCompile(`tvly-[A-Za-z0-9_-]+`)

// loginProbeBudget is how long the pipeline looks for a login form after
// following the verification link before concluding none is needed.
const loginProbeBudget = 5 * time.Second

// Orchestrator runs registration pipelines over fresh browser sessions.
type Orchestrator struct {
	cfg        *config.Config
	registry   selectors.Registry
	identities IdentitySource
	sink       RecordSink
	newSession SessionFactory
	logger     *zap.Logger
}

// New wires an Orchestrator. All dependencies are required.
func New(
	cfg *config.Config,
	registry selectors.Registry,
	identities IdentitySource,
	sink RecordSink,
	newSession SessionFactory,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if cfg == nil || registry == nil || identities == nil || sink == nil || newSession == nil || logger == nil {
		return nil, errors.New("orchestrator: nil dependency")
	}
	return &Orchestrator{
		cfg:        cfg,
		registry:   registry,
		identities: identities,
		sink:       sink,
		newSession: newSession,
		logger:     logger.Named("orchestrator"),
	}, nil
}

// Run executes count sequential registrations, each on its own session. A
// failed or panicking iteration is recorded and the batch moves on.
func (o *Orchestrator) Run(ctx context.Context, count int) Summary {
	summary := Summary{Requested: count}

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("Batch interrupted.", zap.Int("completed", i-1), zap.Error(err))
			break
		}

		o.logger.Info("Starting registration.", zap.Int("run", i), zap.Int("total", count))
		res := o.runIsolated(ctx)
		summary.Results = append(summary.Results, res)

		if res.Outcome == OutcomeSuccess {
			summary.Succeeded++
			o.logger.Info("Registration complete.",
				zap.Int("run", i),
				zap.String("email", res.Email))
		} else {
			summary.Failed++
			o.logger.Error("Registration failed.",
				zap.Int("run", i),
				zap.String("email", res.Email),
				zap.String("outcome", string(res.Outcome)),
				zap.Error(res.Err))
		}
	}

	o.logger.Info("Batch finished.",
		zap.Int("requested", summary.Requested),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary
}

// runIsolated opens a session, runs one pipeline, and contains panics so a
// single bad iteration cannot take down the batch. Teardown always runs.
func (o *Orchestrator) runIsolated(ctx context.Context) (res RunResult) {
	defer func() {
		if r := recover(); r != nil {
			res = RunResult{
				Outcome: OutcomePanic,
				Err:     fmt.Errorf("orchestrator: pipeline panic: %v", r),
			}
		}
	}()

	nav, closeSession, err := o.newSession(ctx)
	if err != nil {
		return RunResult{Outcome: OutcomeSignupFailed, Err: fmt.Errorf("orchestrator: opening session: %w", err)}
	}
	defer closeSession()

	return o.runOne(ctx, nav)
}

// runOne drives a full registration on an open session.
func (o *Orchestrator) runOne(ctx context.Context, nav interact.Navigator) RunResult {
	id, err := o.identities.Next()
	if err != nil {
		return RunResult{Outcome: OutcomeSignupFailed, Err: err}
	}
	res := RunResult{Email: id.Email}

	exec := interact.NewExecutor(nav, interact.ExecutorOptions{
		StateTimeout: o.cfg.Interact.StateTimeout,
		SettleDelay:  o.cfg.Interact.SettleDelay,
		QuietTimeout: o.cfg.Interact.QuietTimeout,
	}, o.logger)
	retrier := interact.NewRetrier(nav, o.registry, interact.RetrierOptions{
		MaxAttempts:  o.cfg.Interact.MaxAttempts,
		LocateBudget: o.cfg.Interact.LocateBudget,
		ReloadWait:   o.cfg.Interact.ReloadWait,
		QuietTimeout: o.cfg.Interact.QuietTimeout,
	}, o.logger)

	if !o.signup(ctx, nav, exec, retrier, id) {
		res.Outcome = OutcomeSignupFailed
		return res
	}

	inbox := mail.NewInbox(nav, o.registry, mail.InboxOptions{
		MailURL:      o.cfg.Mail.InboxURL,
		SenderMarker: o.cfg.Mail.SenderMarker,
		PollInterval: o.cfg.Mail.PollInterval,
		MaxWait:      o.cfg.Mail.MaxWait,
	}, o.logger)

	link, err := inbox.AwaitVerificationLink(ctx, id.Email)
	if err != nil {
		res.Outcome = OutcomeMailTimeout
		res.Err = err
		return res
	}

	if !o.verify(ctx, nav, exec, retrier, id, link) {
		res.Outcome = OutcomeVerifyFailed
		return res
	}

	key, ok := o.scrapeKey(ctx, nav, retrier)
	if !ok {
		res.Outcome = OutcomeKeyNotFound
		return res
	}

	if err := o.sink.Append(account.Record{
		Email:     id.Email,
		Password:  id.Password,
		Key:       key,
		CreatedAt: time.Now(),
	}); err != nil {
		res.Outcome = OutcomeKeyNotFound
		res.Err = err
		return res
	}

	res.Key = key
	res.Outcome = OutcomeSuccess
	return res
}

// signup walks the account creation form. Returns false when any required
// step never succeeds within its retry budget.
func (o *Orchestrator) signup(ctx context.Context, nav interact.Navigator, exec *interact.Executor, retrier *interact.Retrier, id account.Identity) bool {
	if err := nav.Navigate(ctx, o.cfg.Target.HomeURL); err != nil {
		o.logger.Error("Home page unreachable.", zap.Error(err))
		return false
	}
	_ = nav.WaitQuiet(ctx, o.cfg.Interact.QuietTimeout)

	// The signup entry point moves around between deployments. If no button
	// turns up, the direct signup URL is the stable escape hatch.
	if !retrier.Click(ctx, exec, selectors.SignupButton) {
		o.logger.Warn("Signup button not found, navigating directly.",
			zap.String("url", o.cfg.Target.SignupURL))
		if err := nav.Navigate(ctx, o.cfg.Target.SignupURL); err != nil {
			return false
		}
		_ = nav.WaitQuiet(ctx, o.cfg.Interact.QuietTimeout)
	}

	if !retrier.Fill(ctx, exec, selectors.EmailInput, id.Email) {
		return false
	}
	if !retrier.Click(ctx, exec, selectors.ContinueButton) {
		return false
	}
	if !retrier.Fill(ctx, exec, selectors.PasswordInput, id.Password) {
		return false
	}
	return retrier.Click(ctx, exec, selectors.SubmitButton)
}

// verify follows the confirmation link, logging in first when the target
// bounces the fresh session to its login form.
func (o *Orchestrator) verify(ctx context.Context, nav interact.Navigator, exec *interact.Executor, retrier *interact.Retrier, id account.Identity, link string) bool {
	if err := nav.Navigate(ctx, link); err != nil {
		o.logger.Error("Verification link unreachable.", zap.String("link", link), zap.Error(err))
		return false
	}
	_ = nav.WaitQuiet(ctx, o.cfg.Interact.QuietTimeout)

	if !o.loginPrompted(ctx, nav) {
		return true
	}

	o.logger.Info("Login required after verification.")
	if !retrier.Fill(ctx, exec, selectors.LoginEmailInput, id.Email) {
		return false
	}
	// Some deployments split email and password across two screens with a
	// continue button in between. Submitting a single-screen form before the
	// password is typed trips site-side validation, so the click only happens
	// when no password field has rendered yet.
	if !o.fieldPresent(ctx, nav, selectors.LoginPasswordInput) {
		_ = retrier.Click(ctx, exec, selectors.LoginSubmitButton)
	}
	if !retrier.Fill(ctx, exec, selectors.LoginPasswordInput, id.Password) {
		return false
	}
	return retrier.Click(ctx, exec, selectors.LoginSubmitButton)
}

// loginPrompted probes for a login form with a short budget.
func (o *Orchestrator) loginPrompted(ctx context.Context, nav interact.Navigator) bool {
	if url, err := nav.CurrentURL(ctx); err == nil && strings.Contains(strings.ToLower(url), "login") {
		return true
	}
	return o.fieldPresent(ctx, nav, selectors.LoginEmailInput)
}

// fieldPresent checks for el with the short probe budget.
func (o *Orchestrator) fieldPresent(ctx context.Context, nav interact.Navigator, el selectors.Element) bool {
	spec, ok := o.registry.Lookup(el)
	if !ok {
		return false
	}
	finder := interact.NewFinder(nav, o.logger)
	return finder.Locate(ctx, spec, loginProbeBudget).Found
}

// scrapeKey pulls the API key off the dashboard.
func (o *Orchestrator) scrapeKey(ctx context.Context, nav interact.Navigator, retrier *interact.Retrier) (string, bool) {
	if err := nav.Navigate(ctx, o.cfg.Target.APIKeyURL); err != nil {
		return "", false
	}
	_ = nav.WaitQuiet(ctx, o.cfg.Interact.QuietTimeout)

	var key string
	found := retrier.Do(ctx, selectors.APIKeyField, func(res interact.LocateResult) bool {
		if !res.Found {
			return false
		}
		if v, err := nav.Value(ctx, res.Locator); err == nil {
			if k := keyPattern.FindString(v); k != "" {
				key = k
				return true
			}
		}
		if txt, err := nav.Text(ctx, res.Locator); err == nil {
			if k := keyPattern.FindString(txt); k != "" {
				key = k
				return true
			}
		}
		return false
	})
	return key, found
}
