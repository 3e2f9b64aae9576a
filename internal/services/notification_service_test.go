package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/notify"
)

// fakeNotifier records sent messages and fails addresses on demand.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []notify.Message
	failAddr map[string]error
	block    chan struct{}
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failAddr[msg.Address]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newNotificationEnv(t *testing.T, notifier notify.Notifier) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.notifications = NewNotificationService(
		env.mem.Templates, env.reporting, notifier, env.audit, nil, logger.New("test"), 2)
	return env
}

func TestRenderTemplate_SubstitutesReservedPlaceholders(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})

	tmpl := models.NotificationTemplate{
		Subject: "Dues for {{year}}",
		Body:    "Dear {{owner_name}}, plot {{plot_number}} owes {{amount}} for {{year}}.",
	}
	subject, body, err := env.notifications.RenderTemplate(tmpl, map[string]string{
		"owner_name":  "Anna Petrova",
		"plot_number": "17",
		"year":        "2024",
		"amount":      "5000.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dues for 2024", subject)
	assert.Equal(t, "Dear Anna Petrova, plot 17 owes 5000.00 for 2024.", body)
}

func TestRenderTemplate_MissingReservedPlaceholderFails(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})

	tmpl := models.NotificationTemplate{Body: "Plot {{plot_number}}, {{amount}}"}
	_, _, err := env.notifications.RenderTemplate(tmpl, map[string]string{
		"plot_number": "17",
	})
	assert.ErrorIs(t, err, ErrMissingPlaceholder)
}

func TestRenderTemplate_UnknownPlaceholderPassesThrough(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})

	tmpl := models.NotificationTemplate{Body: "Hello {{owner_name}}, see {{custom_field}}"}
	_, body, err := env.notifications.RenderTemplate(tmpl, map[string]string{
		"owner_name": "Anna",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Anna, see {{custom_field}}", body)
}

func TestUnpaidRecipients_ChannelSelectionAndExclusions(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})
	ctx := context.Background()

	emailParcel := env.parcel(t, "1")
	telegramParcel := env.parcel(t, "2")
	noContactParcel := env.parcel(t, "3")
	orphanParcel := env.parcel(t, "4")

	emailOwner, err := env.identity.RegisterOwner(ctx, "Anna Petrova", "79001112233", "anna@example.org")
	require.NoError(t, err)
	telegramOwner, err := env.identity.RegisterOwner(ctx, "Boris Ivanov", "79004445566", "")
	require.NoError(t, err)
	silentOwner, err := env.identity.RegisterOwner(ctx, "Clara Smirnova", "", "")
	require.NoError(t, err)

	_, err = env.timeline.AssignOwner(ctx, emailParcel.ID, emailOwner.ID, day(2020, 1, 1))
	require.NoError(t, err)
	_, err = env.timeline.AssignOwner(ctx, telegramParcel.ID, telegramOwner.ID, day(2020, 1, 1))
	require.NoError(t, err)
	_, err = env.timeline.AssignOwner(ctx, noContactParcel.ID, silentOwner.ID, day(2020, 1, 1))
	require.NoError(t, err)

	for _, p := range []uuid.UUID{emailParcel.ID, telegramParcel.ID, noContactParcel.ID, orphanParcel.ID} {
		_, err := env.dues.AssessDue(ctx, p, 2024, 500000)
		require.NoError(t, err)
	}

	recipients, err := env.notifications.UnpaidRecipients(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, recipients, 4)

	byPlot := make(map[string]models.Recipient, len(recipients))
	for _, r := range recipients {
		byPlot[r.PlotNumber] = r
	}

	// Email wins when both contacts exist.
	assert.Equal(t, models.ChannelEmail, byPlot["1"].Channel)
	assert.Equal(t, "anna@example.org", byPlot["1"].Address)
	assert.False(t, byPlot["1"].Excluded)

	// Phone falls back to telegram.
	assert.Equal(t, models.ChannelTelegram, byPlot["2"].Channel)
	assert.Equal(t, "79004445566", byPlot["2"].Address)

	// No contact at all is reported, not dropped.
	assert.True(t, byPlot["3"].Excluded)
	assert.Equal(t, "no_contact", byPlot["3"].ExcludeReason)

	// Parcel without an owner likewise.
	assert.True(t, byPlot["4"].Excluded)
	assert.Equal(t, "no_owner", byPlot["4"].ExcludeReason)
}

func TestUnpaidRecipients_PaidParcelsAreNotTargeted(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})
	ctx := context.Background()

	parcel := env.parcel(t, "1")
	owner, err := env.identity.RegisterOwner(ctx, "Anna Petrova", "", "anna@example.org")
	require.NoError(t, err)
	_, err = env.timeline.AssignOwner(ctx, parcel.ID, owner.ID, day(2020, 1, 1))
	require.NoError(t, err)
	_, err = env.dues.AssessDue(ctx, parcel.ID, 2024, 500000)
	require.NoError(t, err)
	_, err = env.dues.RecordPayment(ctx, parcel.ID, 2024, 500000, day(2024, 5, 1))
	require.NoError(t, err)

	recipients, err := env.notifications.UnpaidRecipients(ctx, 2024)
	require.NoError(t, err)
	assert.Empty(t, recipients)
}

func setupDispatchFixture(t *testing.T, env *testEnv) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	for _, contact := range []struct {
		plot  string
		name  string
		email string
	}{
		{plot: "1", name: "Anna Petrova", email: "anna@example.org"},
		{plot: "2", name: "Boris Ivanov", email: "boris@example.org"},
		{plot: "3", name: "Clara Smirnova", email: ""},
	} {
		parcel := env.parcel(t, contact.plot)
		owner, err := env.identity.RegisterOwner(ctx, contact.name, "", contact.email)
		require.NoError(t, err)
		_, err = env.timeline.AssignOwner(ctx, parcel.ID, owner.ID, day(2020, 1, 1))
		require.NoError(t, err)
		_, err = env.dues.AssessDue(ctx, parcel.ID, 2024, 500000)
		require.NoError(t, err)
	}

	tmpl, err := env.notifications.SaveTemplate(ctx, models.NotificationTemplate{
		Name:    "debt reminder",
		Channel: models.ChannelEmail,
		Subject: "Dues {{year}}",
		Body:    "Dear {{owner_name}}, plot {{plot_number}} owes {{amount}}.",
	})
	require.NoError(t, err)
	return tmpl.ID
}

func TestDispatchBulk_SendsToReachableRecipientsOnly(t *testing.T) {
	notifier := &fakeNotifier{}
	env := newNotificationEnv(t, notifier)
	ctx := context.Background()

	templateID := setupDispatchFixture(t, env)

	recipients, err := env.notifications.UnpaidRecipients(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, recipients, 3)

	report, err := env.notifications.DispatchBulk(ctx, templateID, recipients)
	require.NoError(t, err)

	// Two owners have email, the third is excluded for lack of contact.
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, notifier.sentCount())

	excluded := 0
	for _, outcome := range report.Outcomes {
		if !outcome.Sent {
			excluded++
			assert.Equal(t, "no_contact", outcome.Reason)
		}
	}
	assert.Equal(t, 1, excluded)
}

func TestDispatchBulk_TransportFailureDoesNotAbortBatch(t *testing.T) {
	notifier := &fakeNotifier{
		failAddr: map[string]error{"anna@example.org": errors.New("mailbox full")},
	}
	env := newNotificationEnv(t, notifier)
	ctx := context.Background()

	templateID := setupDispatchFixture(t, env)
	recipients, err := env.notifications.UnpaidRecipients(ctx, 2024)
	require.NoError(t, err)

	report, err := env.notifications.DispatchBulk(ctx, templateID, recipients)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 3, report.Total)

	failed := false
	for _, outcome := range report.Outcomes {
		if outcome.Recipient.Address == "anna@example.org" {
			assert.False(t, outcome.Sent)
			assert.Contains(t, outcome.Reason, "mailbox full")
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestDispatchBulk_UnknownTemplate(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})

	_, err := env.notifications.DispatchBulk(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDispatchBulk_CancelledContextStopsIssuingSends(t *testing.T) {
	notifier := &fakeNotifier{block: make(chan struct{})}
	env := newNotificationEnv(t, notifier)
	ctx, cancel := context.WithCancel(context.Background())

	templateID := setupDispatchFixture(t, env)
	recipients, err := env.notifications.UnpaidRecipients(context.Background(), 2024)
	require.NoError(t, err)

	cancel()
	close(notifier.block)

	report, err := env.notifications.DispatchBulk(ctx, templateID, recipients)
	require.NoError(t, err)

	// The report still covers every recipient; nothing is silently dropped.
	assert.Equal(t, 3, report.Total)
	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, 0, report.Sent)
}

func TestTemplateCRUD(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})
	ctx := context.Background()

	tmpl, err := env.notifications.SaveTemplate(ctx, models.NotificationTemplate{
		Name:    "reminder",
		Channel: models.ChannelEmail,
		Body:    "Plot {{plot_number}}",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, tmpl.ID)

	tmpl.Body = "Plot {{plot_number}}, amount {{amount}}"
	updated, err := env.notifications.SaveTemplate(ctx, tmpl)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, updated.ID)

	listed, err := env.notifications.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, env.notifications.DeleteTemplate(ctx, tmpl.ID))
	_, err = env.notifications.GetTemplate(ctx, tmpl.ID)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestSaveTemplate_Validation(t *testing.T) {
	env := newNotificationEnv(t, &fakeNotifier{})
	ctx := context.Background()

	_, err := env.notifications.SaveTemplate(ctx, models.NotificationTemplate{
		Channel: models.ChannelEmail, Body: "x",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.notifications.SaveTemplate(ctx, models.NotificationTemplate{
		Name: "bad channel", Channel: "carrier-pigeon", Body: "x",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
