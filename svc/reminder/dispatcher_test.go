package reminder_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/memberkit/pkg/email"
	"github.com/dmitrymomot/memberkit/svc/membership"
	"github.com/dmitrymomot/memberkit/svc/reminder"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	return m.Called(ctx, params).Error(0)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func annual() *membership.Plan {
	return &membership.Plan{
		ID:        "annual",
		ShortName: "Annual",
		LongName:  "Annual Membership",
		Enabled:   true,
		Fees:      membership.Fees{Fixed: membership.FeePair{New: 5000, Renew: 4500}, Processing: 50},
	}
}

func member(uid int64) *membership.Membership {
	return &membership.Membership{
		UID:     uid,
		PlanID:  "annual",
		Expires: membership.MustParseDate("2024-06-30"),
		Status:  membership.StatusActive,
		Number:  "M00001",
	}
}

type dispatcherFixture struct {
	sender    *mockSender
	outbox    *reminder.MemoryOutbox
	directory *reminder.MemoryDirectory
	d         *reminder.Dispatcher
}

func newDispatcher(t *testing.T, opts ...reminder.DispatcherOption) *dispatcherFixture {
	t.Helper()
	renderer, err := reminder.NewTemplateRenderer("USD")
	require.NoError(t, err)

	f := &dispatcherFixture{
		sender:    &mockSender{},
		outbox:    reminder.NewMemoryOutbox(),
		directory: reminder.NewMemoryDirectory(),
	}
	f.directory.Put(1, reminder.Recipient{Email: "ada@example.com", Name: "Ada"})
	f.directory.Put(2, reminder.Recipient{Name: "No Mail"})

	base := []reminder.DispatcherOption{
		reminder.WithClock(membership.FixedClock(membership.MustParseDate("2024-06-10"))),
		reminder.WithRateLimit(0, 0),
		reminder.WithRenewURL("https://example.com/renew/%d"),
		reminder.WithDispatcherLogger(discard),
	}
	f.d = reminder.NewDispatcher(f.directory, renderer, f.sender, f.outbox, append(base, opts...)...)
	return f
}

func TestDispatcherDispatch(t *testing.T) {
	t.Parallel()

	t.Run("sends and records", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t)
		f.sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p email.SendEmailParams) bool {
			return p.SendTo == "ada@example.com" &&
				p.Subject == "Your Annual Membership membership expires in 20 days" &&
				p.Tag == "expiry-reminder"
		})).Return(nil).Once()

		require.NoError(t, f.d.Dispatch(context.Background(), member(1), annual()))
		f.sender.AssertExpectations(t)

		entries, err := f.outbox.List(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "ada@example.com", entries[0].Email)
		assert.Equal(t, "2024-06-30", entries[0].Expires.Format(time.DateOnly))
	})

	t.Run("body carries renewal price and link", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t)
		var sent email.SendEmailParams
		f.sender.On("SendEmail", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(1).(email.SendEmailParams) }).
			Return(nil).Once()

		require.NoError(t, f.d.Dispatch(context.Background(), member(1), annual()))
		assert.Contains(t, sent.BodyHTML, "45.50")
		assert.Contains(t, sent.BodyHTML, "https://example.com/renew/1")
		assert.Contains(t, sent.BodyText, "M00001")
	})

	t.Run("unknown recipient", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t)
		err := f.d.Dispatch(context.Background(), member(42), annual())
		require.ErrorIs(t, err, reminder.ErrRecipientNotFound)
		f.sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("recipient without email", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t)
		err := f.d.Dispatch(context.Background(), member(2), annual())
		require.ErrorIs(t, err, reminder.ErrNoEmail)
	})

	t.Run("send failure is not recorded", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t)
		f.sender.On("SendEmail", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		err := f.d.Dispatch(context.Background(), member(1), annual())
		require.ErrorIs(t, err, reminder.ErrSendFailed)

		entries, err := f.outbox.List(context.Background(), 1)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("breaker opens after consecutive failures", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t, reminder.WithBreaker(2, time.Hour))
		f.sender.On("SendEmail", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Times(2)

		ctx := context.Background()
		require.ErrorIs(t, f.d.Dispatch(ctx, member(1), annual()), reminder.ErrSendFailed)
		require.ErrorIs(t, f.d.Dispatch(ctx, member(1), annual()), reminder.ErrSendFailed)

		err := f.d.Dispatch(ctx, member(1), annual())
		require.ErrorIs(t, err, gobreaker.ErrOpenState)
		f.sender.AssertNumberOfCalls(t, "SendEmail", 2)
	})

	t.Run("invalid params do not trip the breaker", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t, reminder.WithBreaker(1, time.Hour))
		f.sender.On("SendEmail", mock.Anything, mock.Anything).Return(email.ErrInvalidParams).Times(2)

		ctx := context.Background()
		require.Error(t, f.d.Dispatch(ctx, member(1), annual()))
		err := f.d.Dispatch(ctx, member(1), annual())
		require.ErrorIs(t, err, email.ErrInvalidParams)
		f.sender.AssertNumberOfCalls(t, "SendEmail", 2)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		f := newDispatcher(t, reminder.WithRateLimit(0.001, 1))
		f.sender.On("SendEmail", mock.Anything, mock.Anything).Return(nil).Once()

		require.NoError(t, f.d.Dispatch(context.Background(), member(1), annual()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, f.d.Dispatch(ctx, member(1), annual()))
		f.sender.AssertNumberOfCalls(t, "SendEmail", 1)
	})
}

func TestDispatcherClearedByRenewal(t *testing.T) {
	t.Parallel()
	f := newDispatcher(t)
	f.sender.On("SendEmail", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	require.NoError(t, f.d.Dispatch(ctx, member(1), annual()))

	var clearer membership.ReminderClearer = f.outbox
	require.NoError(t, clearer.Clear(ctx, 1))

	entries, err := f.outbox.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewDispatcherPanics(t *testing.T) {
	t.Parallel()
	renderer, err := reminder.NewTemplateRenderer("USD")
	require.NoError(t, err)
	assert.Panics(t, func() {
		reminder.NewDispatcher(nil, renderer, &mockSender{}, reminder.NewMemoryOutbox())
	})
}
