package dashboard

import (
	"context"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/emotion"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
)

// Text shown by the statistics panel.
const (
	MsgStatsFailed = "Failed to load statistics. Please try again later."
	NoDataLabel    = "No data"
	NoDataDuration = "0"
)

// StatsPoller loads aggregate emotion statistics into the stats panel.
type StatsPoller struct {
	d *deps
}

// FetchStats requests the current statistics and replaces the stats panel
// with the outcome. The returned error has already been shown.
func (p *StatsPoller) FetchStats(ctx context.Context) error {
	p.d.state.Update(func(s *Snapshot) {
		s.Stats.Phase = PhaseLoading
		s.Stats.LoadingVisible = true
		s.Stats.ContentVisible = false
		s.Stats.Error = Banner{}
	})
	p.d.log.Debug("Stats", "Fetching %s", api.PathEmotionStats)

	var snap api.StatsSnapshot
	err := p.d.backend.GetJSON(ctx, api.PathEmotionStats, &snap)
	if err == nil {
		err = checkStatsStatus(snap)
	}
	now := p.d.clock.Now()
	if err != nil {
		p.d.log.Error("Stats", "Error fetching statistics: %v", err)
		p.d.count(func(m *metrics.Metrics) { m.MarkStats(false, now) })
		msg := api.MessageOf(err, MsgStatsFailed)
		p.d.state.Update(func(s *Snapshot) {
			prev := s.Stats
			s.Stats = StatsPanel{
				Phase:        PhaseError,
				LastUpdate:   prev.LastUpdate,
				VisitorCount: prev.VisitorCount,
				Error:        Banner{Visible: true, Kind: BannerError, Text: msg},
			}
		})
		return err
	}

	p.d.count(func(m *metrics.Metrics) { m.MarkStats(true, now) })
	panel := statsPanel(snap)
	panel.LastUpdate = now
	p.d.state.Update(func(s *Snapshot) { s.Stats = panel })
	p.d.log.Debug("Stats", "Stats panel now %s (%d visitors)", panel.Phase, panel.VisitorCount)
	return nil
}

// checkStatsStatus rejects a statistics document that does not report an
// ok status, including one that omits the field.
func checkStatsStatus(snap api.StatsSnapshot) error {
	switch snap.Status {
	case "ok", "success":
		return nil
	}
	return &api.ProtocolError{Path: api.PathEmotionStats, Status: snap.Status, Message: snap.Message}
}

func statsPanel(snap api.StatsSnapshot) StatsPanel {
	if snap.IsEmpty {
		return StatsPanel{
			Phase:          PhaseEmpty,
			ContentVisible: true,
			Dominant:       NoDataLabel,
			DominantColor:  emotion.DefaultColor,
			AvgDuration:    NoDataDuration,
			VisitorCount:   snap.VisitorCount,
			EmptyNotice:    true,
		}
	}
	return StatsPanel{
		Phase:          PhaseDisplay,
		ContentVisible: true,
		Dominant:       snap.OverallDominantEmotion,
		DominantColor:  emotion.Color(snap.OverallDominantEmotion),
		AvgDuration:    snap.DurationText(),
		VisitorCount:   snap.VisitorCount,
		Rows:           emotion.Rows(snap.AvgEmotionPercentages),
	}
}
