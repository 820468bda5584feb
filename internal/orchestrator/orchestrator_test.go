package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/account"
	"github.com/n0xframe/tavreg-cli/internal/config"
	"github.com/n0xframe/tavreg-cli/internal/interact"
	"github.com/n0xframe/tavreg-cli/internal/interact/interacttest"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

type memorySink struct {
	records []account.Record
}

func (m *memorySink) Append(r account.Record) error {
	m.records = append(m.records, r)
	return nil
}

type fixedIdentity struct {
	id account.Identity
}

func (f fixedIdentity) Next() (account.Identity, error) { return f.id, nil }

type panicIdentity struct{}

func (panicIdentity) Next() (account.Identity, error) { panic("identity backend exploded") }

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Mail.InboxURL = "https://mail.test/inbox"
	cfg.Mail.PollInterval = time.Millisecond
	cfg.Mail.MaxWait = 250 * time.Millisecond
	cfg.Interact.LocateBudget = 20 * time.Millisecond
	cfg.Interact.StateTimeout = 20 * time.Millisecond
	cfg.Interact.SettleDelay = time.Millisecond
	cfg.Interact.QuietTimeout = time.Millisecond
	cfg.Interact.ReloadWait = time.Millisecond
	return cfg
}

// scriptHappyPath loads a fake with every page the pipeline visits: signup
// form, inbox that fills on the second refresh, and a dashboard with a key.
func scriptHappyPath(fake *interacttest.Fake, cfg *config.Config) {
	reg := selectors.Default()

	fake.Script(reg[selectors.SignupButton].Primary[0], interacttest.Element{Visible: true})
	fake.Script(reg[selectors.EmailInput].Primary[1], interacttest.Element{
		Visible: true, Editable: true, EchoFill: true,
	})
	fake.Script(reg[selectors.ContinueButton].Primary[0], interacttest.Element{Visible: true})
	fake.Script(reg[selectors.PasswordInput].Primary[1], interacttest.Element{
		Visible: true, Editable: true, EchoFill: true,
	})
	fake.Script(reg[selectors.APIKeyField].Primary[0], interacttest.Element{
		Visible: true, Value: "tvly-abc123xyz",
	})

	rowsLoc := reg[selectors.InboxRows].Primary[0]
	bodyLoc := reg[selectors.MessageBody].Primary[0]
	var inboxVisits atomic.Int32
	fake.OnNavigate = func(url string) {
		if url != cfg.Mail.InboxURL {
			return
		}
		if inboxVisits.Add(1) == 2 {
			fake.Script(rowsLoc, interacttest.Element{
				Visible: true,
				Texts:   []string{"Tavily verify your email"},
			})
			fake.Script(bodyLoc, interacttest.Element{
				Visible: true,
				HTML:    `<a href="https://app.tavily.com/verify?token=abc123">Verify</a>`,
			})
		}
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, ids IdentitySource, sink RecordSink, fake *interacttest.Fake, closed *atomic.Int32) *Orchestrator {
	t.Helper()
	factory := func(ctx context.Context) (interact.Navigator, func(), error) {
		return fake, func() { closed.Add(1) }, nil
	}
	o, err := New(cfg, selectors.Default(), ids, sink, factory, zap.NewNop())
	require.NoError(t, err)
	return o
}

func TestRunRegistersAccountEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	fake := interacttest.New()
	scriptHappyPath(fake, cfg)

	sink := &memorySink{}
	ids := fixedIdentity{account.Identity{Email: "u-ab12cd34@2925.com", Password: "TavilyAuto123!"}}
	var closed atomic.Int32
	o := newTestOrchestrator(t, cfg, ids, sink, fake, &closed)

	summary := o.Run(context.Background(), 1)

	require.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "tvly-abc123xyz", res.Key)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "u-ab12cd34@2925.com", rec.Email)
	assert.Equal(t, "TavilyAuto123!", rec.Password)
	assert.Equal(t, "tvly-abc123xyz", rec.Key)

	assert.Equal(t, int32(1), closed.Load(), "session teardown must run")
	assert.Contains(t, fake.Navigates, "https://app.tavily.com/verify?token=abc123")
}

func TestRunRecordsNothingOnSignupFailure(t *testing.T) {
	cfg := testConfig()
	// Completely blank pages: every locate misses, every attempt fails.
	fake := interacttest.New()

	sink := &memorySink{}
	ids := fixedIdentity{account.Identity{Email: "u@2925.com", Password: "pw"}}
	var closed atomic.Int32
	o := newTestOrchestrator(t, cfg, ids, sink, fake, &closed)

	summary := o.Run(context.Background(), 2)

	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	for _, res := range summary.Results {
		assert.Equal(t, OutcomeSignupFailed, res.Outcome)
	}
	assert.Empty(t, sink.records, "partial runs must not produce output lines")
	assert.Equal(t, int32(2), closed.Load(), "each iteration gets its own session and teardown")
}

func TestRunTimesOutWaitingForMail(t *testing.T) {
	cfg := testConfig()
	fake := interacttest.New()
	scriptHappyPath(fake, cfg)
	// Suppress the inbox: mail never arrives.
	fake.OnNavigate = nil

	sink := &memorySink{}
	ids := fixedIdentity{account.Identity{Email: "u@2925.com", Password: "pw"}}
	var closed atomic.Int32
	o := newTestOrchestrator(t, cfg, ids, sink, fake, &closed)

	summary := o.Run(context.Background(), 1)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeMailTimeout, summary.Results[0].Outcome)
	assert.Empty(t, sink.records)
}

func TestRunContainsPanics(t *testing.T) {
	cfg := testConfig()
	fake := interacttest.New()

	sink := &memorySink{}
	var closed atomic.Int32
	o := newTestOrchestrator(t, cfg, panicIdentity{}, sink, fake, &closed)

	summary := o.Run(context.Background(), 2)

	assert.Equal(t, 2, summary.Failed)
	for _, res := range summary.Results {
		assert.Equal(t, OutcomePanic, res.Outcome)
		assert.ErrorContains(t, res.Err, "identity backend exploded")
	}
	assert.Equal(t, int32(2), closed.Load(), "teardown must survive a panicking pipeline")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	cfg := testConfig()
	fake := interacttest.New()
	sink := &memorySink{}
	var closed atomic.Int32
	o := newTestOrchestrator(t, cfg, fixedIdentity{}, sink, fake, &closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary := o.Run(ctx, 5)

	assert.Empty(t, summary.Results)
	assert.Equal(t, int32(0), closed.Load())
}

// loginPage scripts a login form and returns the orchestrator plus the
// engine pieces verify needs. When twoScreen is set the password field is
// left unscripted, as on forms that reveal it only after the first submit.
func loginPage(t *testing.T, fake *interacttest.Fake, twoScreen bool) (*Orchestrator, *interact.Executor, *interact.Retrier) {
	t.Helper()
	reg := selectors.Default()

	fake.Script(reg[selectors.LoginEmailInput].Primary[2], interacttest.Element{
		Visible: true, Editable: true, EchoFill: true,
	})
	if !twoScreen {
		fake.Script(reg[selectors.LoginPasswordInput].Primary[1], interacttest.Element{
			Visible: true, Editable: true, EchoFill: true,
		})
	}
	fake.Script(reg[selectors.LoginSubmitButton].Primary[0], interacttest.Element{Visible: true})

	cfg := testConfig()
	var closed atomic.Int32
	o := newTestOrchestrator(t, cfg, fixedIdentity{}, &memorySink{}, fake, &closed)
	exec := interact.NewExecutor(fake, interact.ExecutorOptions{
		StateTimeout: cfg.Interact.StateTimeout,
		SettleDelay:  cfg.Interact.SettleDelay,
		QuietTimeout: cfg.Interact.QuietTimeout,
	}, zap.NewNop())
	retrier := interact.NewRetrier(fake, reg, interact.RetrierOptions{
		MaxAttempts:  cfg.Interact.MaxAttempts,
		LocateBudget: cfg.Interact.LocateBudget,
		ReloadWait:   cfg.Interact.ReloadWait,
		QuietTimeout: cfg.Interact.QuietTimeout,
	}, zap.NewNop())
	return o, exec, retrier
}

func countClicks(fake *interacttest.Fake, loc selectors.Locator) int {
	n := 0
	for _, c := range fake.Clicks {
		if c == loc.String() {
			n++
		}
	}
	return n
}

func TestVerifySingleScreenLoginSubmitsOnce(t *testing.T) {
	fake := interacttest.New()
	o, exec, retrier := loginPage(t, fake, false)
	reg := selectors.Default()
	id := account.Identity{Email: "u@2925.com", Password: "pw"}

	ok := o.verify(context.Background(), fake, exec, retrier, id,
		"https://app.tavily.com/login/verify?token=abc")
	require.True(t, ok)

	assert.Equal(t, 1, countClicks(fake, reg[selectors.LoginSubmitButton].Primary[0]),
		"a form with the password field already rendered must not be submitted before the password is typed")
	assert.Equal(t, "pw", fake.Fills[reg[selectors.LoginPasswordInput].Primary[1].String()])
}

func TestVerifyTwoScreenLoginClicksThrough(t *testing.T) {
	fake := interacttest.New()
	o, exec, retrier := loginPage(t, fake, true)
	reg := selectors.Default()
	id := account.Identity{Email: "u@2925.com", Password: "pw"}

	ok := o.verify(context.Background(), fake, exec, retrier, id,
		"https://app.tavily.com/login/verify?token=abc")

	// The password screen never renders here, so verify fails, but the
	// intermediate submit that reveals it must still have been clicked.
	assert.False(t, ok)
	assert.GreaterOrEqual(t, countClicks(fake, reg[selectors.LoginSubmitButton].Primary[0]), 1)
}

func TestNewRejectsNilDependencies(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}
