package interact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/interact/interacttest"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

func fastRetrier(fake *interacttest.Fake, reg selectors.Registry) *Retrier {
	return NewRetrier(fake, reg, RetrierOptions{
		MaxAttempts:  3,
		LocateBudget: 10 * time.Millisecond,
		ReloadWait:   time.Millisecond,
		QuietTimeout: time.Millisecond,
	}, zap.NewNop())
}

func singleElementRegistry(loc selectors.Locator) selectors.Registry {
	return selectors.Registry{
		selectors.SignupButton: {
			Name:    selectors.SignupButton,
			Primary: []selectors.Locator{loc},
		},
	}
}

func TestDoSucceedsFirstAttemptWithoutReload(t *testing.T) {
	loc := selectors.ID("go")
	fake := interacttest.New()
	fake.Script(loc, interacttest.Element{Visible: true})

	r := fastRetrier(fake, singleElementRegistry(loc))
	ok := r.Do(context.Background(), selectors.SignupButton, func(res LocateResult) bool {
		return res.Found
	})

	assert.True(t, ok)
	assert.Zero(t, fake.Reloads, "no recovery when the first attempt succeeds")
}

func TestDoReloadsBetweenAttemptsButNotAfterFinal(t *testing.T) {
	loc := selectors.ID("never")
	fake := interacttest.New()

	r := fastRetrier(fake, singleElementRegistry(loc))
	ok := r.Do(context.Background(), selectors.SignupButton, func(LocateResult) bool {
		t.Fatal("action must not run when the element is absent")
		return false
	})

	assert.False(t, ok)
	// Three attempts bracket exactly two recoveries.
	assert.Equal(t, 2, fake.Reloads)
}

func TestDoRetriesWhenActionRejectsResult(t *testing.T) {
	loc := selectors.ID("flaky")
	fake := interacttest.New()
	fake.Script(loc, interacttest.Element{Visible: true})

	calls := 0
	r := fastRetrier(fake, singleElementRegistry(loc))
	ok := r.Do(context.Background(), selectors.SignupButton, func(res LocateResult) bool {
		calls++
		return calls == 2
	})

	require.True(t, ok)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, fake.Reloads, "one recovery between the two attempts")
}

func TestDoUnknownElementFailsFast(t *testing.T) {
	fake := interacttest.New()
	r := fastRetrier(fake, selectors.Registry{})

	ok := r.Do(context.Background(), selectors.SignupButton, func(LocateResult) bool { return true })
	assert.False(t, ok)
	assert.Zero(t, fake.Reloads)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	loc := selectors.ID("never")
	fake := interacttest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := fastRetrier(fake, singleElementRegistry(loc))
	ok := r.Do(ctx, selectors.SignupButton, func(LocateResult) bool { return true })

	assert.False(t, ok)
	assert.Zero(t, fake.Reloads, "no recovery churn on a dead context")
}

func TestClickAndFillConvenienceWrappers(t *testing.T) {
	btn := selectors.ID("submit")
	field := selectors.ID("email")
	reg := selectors.Registry{
		selectors.SubmitButton: {
			Name:    selectors.SubmitButton,
			Primary: []selectors.Locator{btn},
		},
		selectors.EmailInput: {
			Name:    selectors.EmailInput,
			Primary: []selectors.Locator{field},
		},
	}

	fake := interacttest.New()
	fake.Script(btn, interacttest.Element{Visible: true})
	fake.Script(field, interacttest.Element{Visible: true, Editable: true, EchoFill: true})

	r := fastRetrier(fake, reg)
	exec := fastExecutor(fake)

	assert.True(t, r.Fill(context.Background(), exec, selectors.EmailInput, "u@2925.com"))
	assert.True(t, r.Click(context.Background(), exec, selectors.SubmitButton))
	assert.Equal(t, "u@2925.com", fake.Fills[field.String()])
	assert.Equal(t, []string{btn.String()}, fake.Clicks)
}
