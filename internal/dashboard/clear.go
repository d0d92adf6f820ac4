package dashboard

import (
	"context"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
)

const (
	ClearQuestion  = "Are you sure you want to clear all emotion data? This cannot be undone."
	MsgCleared     = "All data cleared successfully"
	MsgClearFailed = "Failed to clear data"
)

// DataClearer asks for confirmation and then wipes the backend's emotion log.
type DataClearer struct {
	d     *deps
	stats *StatsPoller
}

// RequestClear opens the confirmation prompt.
func (c *DataClearer) RequestClear() {
	c.d.state.Update(func(s *Snapshot) {
		s.Prompt = &Prompt{Kind: PromptClear, Question: ClearQuestion}
	})
}

// CancelClear closes the confirmation prompt without contacting the backend.
func (c *DataClearer) CancelClear() {
	c.d.state.Update(func(s *Snapshot) {
		if s.Prompt != nil && s.Prompt.Kind == PromptClear {
			s.Prompt = nil
		}
	})
}

// ConfirmClear closes the prompt and issues the clear request. On success a
// banner is shown and the statistics are reloaded once.
func (c *DataClearer) ConfirmClear(ctx context.Context) error {
	var open bool
	c.d.state.Update(func(s *Snapshot) {
		if s.Prompt != nil && s.Prompt.Kind == PromptClear {
			open = true
			s.Prompt = nil
		}
	})
	if !open {
		c.d.count(func(m *metrics.Metrics) { m.ValidationErrors.Add(1) })
		return &api.ValidationError{Field: "confirm", Message: "no clear request is pending"}
	}

	var res api.StatusResult
	if err := c.d.backend.PostJSON(ctx, api.PathClearData, nil, &res); err != nil {
		c.d.log.Error("Clear", "Error clearing data: %v", err)
		c.d.state.ShowBanner(SlotNotice, BannerError, api.MessageOf(err, MsgClearFailed), 0)
		return err
	}

	msg := res.Message
	if msg == "" {
		msg = MsgCleared
	}
	c.d.count(func(m *metrics.Metrics) { m.ClearRequests.Add(1) })
	c.d.log.Info("Clear", "Emotion data cleared")
	c.d.state.ShowBanner(SlotNotice, BannerSuccess, msg, c.d.opts.BannerTimeout)

	_ = c.stats.FetchStats(ctx)
	return nil
}
