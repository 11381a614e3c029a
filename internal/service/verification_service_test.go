package service

import (
	"context"
	"regexp"
	"testing"

	"matchwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

func codeFromMessage(t *testing.T, body string) string {
	t.Helper()
	m := codeRe.FindStringSubmatch(body)
	require.NotNil(t, m, "no code in message body: %s", body)
	return m[1]
}

func TestVerificationHappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	person, _ := env.submitLead(t, "ada@example.com")

	verification, err := env.verify.Start(ctx, person.ID, models.ChannelEmail, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", verification.Contact)
	require.Equal(t, 1, env.worker.count())
	assert.Equal(t, models.ChannelEmail, env.worker.last().Channel)

	code := codeFromMessage(t, env.worker.last().Body)
	token, err := env.verify.Check(ctx, verification.ID, code, "sess-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := env.db.GetPerson(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PersonConfirmed, got.Status)

	personID, err := env.verify.PersonIDForToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, person.ID, personID)
}

func TestVerificationWrongCode(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	person, _ := env.submitLead(t, "ada@example.com")
	verification, err := env.verify.Start(ctx, person.ID, models.ChannelEmail, "")
	require.NoError(t, err)

	_, err = env.verify.Check(ctx, verification.ID, "000000", "")
	assert.ErrorIs(t, err, ErrInvalidCode)

	// The person stays pending.
	got, err := env.db.GetPerson(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PersonPending, got.Status)
}

func TestVerificationAttemptBudget(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	person, _ := env.submitLead(t, "ada@example.com")
	verification, err := env.verify.Start(ctx, person.ID, models.ChannelEmail, "")
	require.NoError(t, err)

	// MaxAttempts is 3 in the test config.
	for i := 0; i < 3; i++ {
		_, err = env.verify.Check(ctx, verification.ID, "000000", "")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}

	code := codeFromMessage(t, env.worker.last().Body)
	_, err = env.verify.Check(ctx, verification.ID, code, "")
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestVerificationResendRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	person, _ := env.submitLead(t, "ada@example.com")

	// ResendLimit is 2 in the test config.
	_, err := env.verify.Start(ctx, person.ID, models.ChannelEmail, "")
	require.NoError(t, err)
	_, err = env.verify.Start(ctx, person.ID, models.ChannelEmail, "")
	require.NoError(t, err)

	_, err = env.verify.Start(ctx, person.ID, models.ChannelEmail, "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestVerificationSMSUsesPhone(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	person, _ := env.submitLead(t, "ada@example.com")

	verification, err := env.verify.Start(ctx, person.ID, models.ChannelSMS, "")
	require.NoError(t, err)
	assert.Equal(t, person.Phone, verification.Contact)
	assert.Equal(t, models.ChannelSMS, env.worker.last().Channel)
	assert.Empty(t, env.worker.last().Subject)
}

func TestVerificationRecheckStillRequiresCode(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	person, _ := env.submitLead(t, "ada@example.com")
	verification, err := env.verify.Start(ctx, person.ID, models.ChannelEmail, "")
	require.NoError(t, err)

	code := codeFromMessage(t, env.worker.last().Body)
	_, err = env.verify.Check(ctx, verification.ID, code, "")
	require.NoError(t, err)

	// A wrong code never yields a token, not even after confirmation.
	token, err := env.verify.Check(ctx, verification.ID, "000000", "")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Empty(t, token)

	// The correct code re-issues a token without touching status.
	token, err = env.verify.Check(ctx, verification.ID, code, "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := env.db.GetPerson(ctx, person.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PersonConfirmed, got.Status)
}
