package service

import (
	"context"
	"testing"
	"time"

	"matchwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) logEvent(t *testing.T, sessionID, eventType, source, campaign string) {
	t.Helper()
	require.NoError(t, e.db.InsertFunnelEvent(context.Background(), &models.FunnelEvent{
		SessionID:   sessionID,
		Type:        eventType,
		UTMSource:   source,
		UTMCampaign: campaign,
	}))
}

func TestFunnelStageCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Three sessions land, two submit, one verifies.
	for _, sess := range []string{"a", "b", "c"} {
		env.logEvent(t, sess, models.EventPageView, "google", "spring")
		env.logEvent(t, sess, models.EventWizardStep, "", "")
	}
	env.logEvent(t, "a", models.EventWizardSubmit, "", "")
	env.logEvent(t, "b", models.EventWizardSubmit, "", "")
	env.logEvent(t, "a", models.EventVerifyStart, "", "")
	env.logEvent(t, "a", models.EventVerified, "", "")

	report, err := env.stats.Funnel(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, report.Stages, len(models.FunnelStages))

	byStage := make(map[string]FunnelStage)
	for _, row := range report.Stages {
		byStage[row.Stage] = row
	}

	assert.Equal(t, int64(3), byStage[models.EventPageView].Sessions)
	assert.Equal(t, int64(3), byStage[models.EventWizardStep].Sessions)
	assert.Equal(t, int64(2), byStage[models.EventWizardSubmit].Sessions)
	assert.Equal(t, int64(1), byStage[models.EventVerified].Sessions)
	assert.Equal(t, int64(0), byStage[models.EventBookingCreated].Sessions)

	// wizard_submit converted 2 of 3 wizard_step sessions.
	assert.InDelta(t, 2.0/3.0, byStage[models.EventWizardSubmit].Conversion, 0.001)
	// verified converted 1 of 1 verify_start sessions.
	assert.InDelta(t, 1.0, byStage[models.EventVerified].Conversion, 0.001)
}

func TestFunnelCampaignBreakdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.logEvent(t, "a", models.EventPageView, "google", "spring")
	env.logEvent(t, "a", models.EventWizardSubmit, "", "")
	env.logEvent(t, "b", models.EventPageView, "google", "spring")
	env.logEvent(t, "c", models.EventPageView, "meta", "retarget")
	env.logEvent(t, "c", models.EventWizardSubmit, "", "")
	env.logEvent(t, "c", models.EventVerified, "", "")
	env.logEvent(t, "c", models.EventBookingCreated, "", "")

	report, err := env.stats.Funnel(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, report.Campaigns, 2)

	// Sorted by session volume, then source.
	google := report.Campaigns[0]
	assert.Equal(t, "google", google.UTMSource)
	assert.Equal(t, "spring", google.UTMCampaign)
	assert.Equal(t, int64(2), google.Sessions)
	assert.Equal(t, int64(1), google.Submitted)
	assert.Equal(t, int64(0), google.Booked)

	meta := report.Campaigns[1]
	assert.Equal(t, "meta", meta.UTMSource)
	assert.Equal(t, int64(1), meta.Sessions)
	assert.Equal(t, int64(1), meta.Verified)
	assert.Equal(t, int64(1), meta.Booked)
}

func TestFunnelRespectsDateRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.logEvent(t, "a", models.EventPageView, "", "")

	report, err := env.stats.Funnel(ctx, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	for _, row := range report.Stages {
		assert.Zero(t, row.Sessions)
	}
	assert.Empty(t, report.Campaigns)
}

func TestDashboardCounts(t *testing.T) {
	env := newTestEnv(t)
	env.seedTherapist(t, "Dr. One", []string{"anxiety"}, 2, 10)
	ctx := context.Background()

	env.submitLead(t, "ada@example.com")
	env.submitLead(t, "bob@example.com")

	counts, err := env.stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.PeopleByStatus[models.PersonPending])
	assert.Empty(t, counts.BookingsByStatus)
}
