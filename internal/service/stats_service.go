package service

import (
	"context"
	"sort"
	"time"

	"matchwell/internal/domain"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
)

// FunnelStage is one row of the funnel report: how many sessions reached the
// stage, and what share of the previous stage converted.
type FunnelStage struct {
	Stage      string  `json:"stage"`
	Sessions   int64   `json:"sessions"`
	Conversion float64 `json:"conversion"` // vs previous stage, 0..1
}

// CampaignStats breaks the funnel edges down per UTM campaign.
type CampaignStats struct {
	UTMSource   string `json:"utm_source"`
	UTMCampaign string `json:"utm_campaign"`
	Sessions    int64  `json:"sessions"`
	Submitted   int64  `json:"submitted"`
	Verified    int64  `json:"verified"`
	Booked      int64  `json:"booked"`
}

// FunnelReport is the admin dashboard payload for a date range.
type FunnelReport struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Stages    []FunnelStage   `json:"stages"`
	Campaigns []CampaignStats `json:"campaigns"`
}

// DashboardCounts are the headline numbers on the admin landing page.
type DashboardCounts struct {
	PeopleByStatus   map[string]int64 `json:"people_by_status"`
	BookingsByStatus map[string]int64 `json:"bookings_by_status"`
}

// StatsService aggregates the funnel event log into reports.
type StatsService struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewStatsService(store domain.Store, logger *zerolog.Logger) *StatsService {
	return &StatsService{store: store, logger: logger}
}

// Funnel builds the stage report for [from, to). A session counts toward a
// stage if it logged that event type at least once; conversion is measured
// against the preceding stage, so later stages can never exceed earlier ones
// within a cohort.
func (s *StatsService) Funnel(ctx context.Context, from, to time.Time) (*FunnelReport, error) {
	evs, err := s.store.GetFunnelEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	type sessionInfo struct {
		stages      map[string]bool
		utmSource   string
		utmCampaign string
	}
	sessions := make(map[string]*sessionInfo)
	for _, ev := range evs {
		info, ok := sessions[ev.SessionID]
		if !ok {
			info = &sessionInfo{stages: make(map[string]bool)}
			sessions[ev.SessionID] = info
		}
		info.stages[ev.Type] = true
		// First non-empty attribution wins for the session.
		if info.utmSource == "" && ev.UTMSource != "" {
			info.utmSource = ev.UTMSource
			info.utmCampaign = ev.UTMCampaign
		}
	}

	report := &FunnelReport{From: from, To: to}

	var prev int64
	for i, stage := range models.FunnelStages {
		var count int64
		for _, info := range sessions {
			if info.stages[stage] {
				count++
			}
		}
		row := FunnelStage{Stage: stage, Sessions: count}
		if i > 0 && prev > 0 {
			row.Conversion = float64(count) / float64(prev)
		}
		report.Stages = append(report.Stages, row)
		prev = count
	}

	// Per-campaign breakdown over the edges staff actually steer by.
	type campaignKey struct{ source, campaign string }
	byCampaign := make(map[campaignKey]*CampaignStats)
	for _, info := range sessions {
		key := campaignKey{info.utmSource, info.utmCampaign}
		cs, ok := byCampaign[key]
		if !ok {
			cs = &CampaignStats{UTMSource: key.source, UTMCampaign: key.campaign}
			byCampaign[key] = cs
		}
		cs.Sessions++
		if info.stages[models.EventWizardSubmit] {
			cs.Submitted++
		}
		if info.stages[models.EventVerified] {
			cs.Verified++
		}
		if info.stages[models.EventBookingCreated] {
			cs.Booked++
		}
	}
	for _, cs := range byCampaign {
		report.Campaigns = append(report.Campaigns, *cs)
	}
	sort.Slice(report.Campaigns, func(i, j int) bool {
		a, b := report.Campaigns[i], report.Campaigns[j]
		if a.Sessions != b.Sessions {
			return a.Sessions > b.Sessions
		}
		if a.UTMSource != b.UTMSource {
			return a.UTMSource < b.UTMSource
		}
		return a.UTMCampaign < b.UTMCampaign
	})

	return report, nil
}

// Dashboard returns the headline status counts.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	people, err := s.store.CountPeopleByStatus(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.CountBookingsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardCounts{PeopleByStatus: people, BookingsByStatus: bookings}, nil
}
