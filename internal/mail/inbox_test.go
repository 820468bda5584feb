package mail

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/n0xframe/tavreg-cli/internal/interact/interacttest"
	"github.com/n0xframe/tavreg-cli/internal/selectors"
)

func fastInboxOptions() InboxOptions {
	return InboxOptions{
		MailURL:      "https://mail.test/inbox",
		SenderMarker: "tavily",
		PollInterval: time.Millisecond,
		MaxWait:      250 * time.Millisecond,
		LocateBudget: 10 * time.Millisecond,
	}
}

func TestInboxFindsMailOnLaterPoll(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := interacttest.New()
	reg := selectors.Default()
	rowsLoc := reg[selectors.InboxRows].Primary[0]
	bodyLoc := reg[selectors.MessageBody].Primary[0]

	var polls atomic.Int32
	fake.OnNavigate = func(string) {
		// The verification mail lands on the second refresh.
		if polls.Add(1) == 2 {
			fake.Script(rowsLoc, interacttest.Element{
				Visible: true,
				Texts:   []string{"Newsletter weekly digest", "Tavily verify your email"},
			})
			fake.Script(bodyLoc, interacttest.Element{
				Visible: true,
				HTML:    `<a href="https://app.tavily.com/verify?token=abc123">Verify</a>`,
			})
		}
	}

	in := NewInbox(fake, reg, fastInboxOptions(), zap.NewNop())
	link, err := in.AwaitVerificationLink(context.Background(), "user123@2925.com")
	require.NoError(t, err)
	assert.Equal(t, "https://app.tavily.com/verify?token=abc123", link)
	assert.Equal(t, []int{1}, fake.NthClicks, "should open the matching row, not the first")
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestInboxMatchesRecipientLocalPart(t *testing.T) {
	fake := interacttest.New()
	reg := selectors.Default()
	rowsLoc := reg[selectors.InboxRows].Primary[0]
	bodyLoc := reg[selectors.MessageBody].Primary[0]

	fake.Script(rowsLoc, interacttest.Element{
		Visible: true,
		Texts:   []string{"to: user123 please confirm"},
	})
	fake.Script(bodyLoc, interacttest.Element{
		Visible: true,
		Text:    "open https://app.tavily.com/verify?token=z1",
	})

	opts := fastInboxOptions()
	opts.SenderMarker = ""
	in := NewInbox(fake, reg, opts, zap.NewNop())
	link, err := in.AwaitVerificationLink(context.Background(), "user123@2925.com")
	require.NoError(t, err)
	assert.Equal(t, "https://app.tavily.com/verify?token=z1", link)
}

func TestInboxTimesOutWhenNothingArrives(t *testing.T) {
	fake := interacttest.New()
	in := NewInbox(fake, selectors.Default(), fastInboxOptions(), zap.NewNop())

	link, err := in.AwaitVerificationLink(context.Background(), "ghost@2925.com")
	require.ErrorIs(t, err, ErrNoVerificationMail)
	assert.Empty(t, link)
	assert.NotEmpty(t, fake.Navigates, "should have refreshed the inbox at least once")
}

func TestInboxKeepsPollingPastLinklessMatch(t *testing.T) {
	fake := interacttest.New()
	reg := selectors.Default()
	rowsLoc := reg[selectors.InboxRows].Primary[0]
	bodyLoc := reg[selectors.MessageBody].Primary[0]

	fake.Script(rowsLoc, interacttest.Element{
		Visible: true,
		Texts:   []string{"Tavily is setting up your account"},
	})
	fake.Script(bodyLoc, interacttest.Element{
		Visible: true,
		Text:    "Your account is being prepared. No action needed yet.",
	})

	in := NewInbox(fake, reg, fastInboxOptions(), zap.NewNop())
	_, err := in.AwaitVerificationLink(context.Background(), "user@2925.com")
	require.ErrorIs(t, err, ErrNoVerificationMail)
	assert.Greater(t, len(fake.NthClicks), 1, "should reopen the message on later polls")
}

func TestInboxHonorsContextCancellation(t *testing.T) {
	fake := interacttest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastInboxOptions()
	opts.MaxWait = time.Hour
	in := NewInbox(fake, selectors.Default(), opts, zap.NewNop())
	_, err := in.AwaitVerificationLink(ctx, "user@2925.com")
	require.ErrorIs(t, err, context.Canceled)
}
