package dashboard

import (
	"context"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
)

const (
	MsgNoCameras         = "No cameras available"
	MsgCamerasFailed     = "Failed to load cameras"
	MsgSwitchFailed      = "Failed to switch camera"
	MsgAddFailed         = "Failed to add camera"
	MsgCameraURLRequired = "Please enter a camera URL"
)

// CameraRegistry keeps the camera list in sync with the backend.
type CameraRegistry struct {
	d *deps
}

// FetchCameras loads the camera list. Entries keep server order.
func (r *CameraRegistry) FetchCameras(ctx context.Context) error {
	r.d.state.Update(func(s *Snapshot) { s.Cameras.Loading = true })

	var listing api.CameraListing
	err := r.d.backend.GetJSON(ctx, api.PathCameras, &listing)
	now := r.d.clock.Now()
	if err != nil {
		r.d.log.Error("Cameras", "Error loading cameras: %v", err)
		r.d.count(func(m *metrics.Metrics) { m.MarkCameras(false, now) })
		r.d.state.Update(func(s *Snapshot) { s.Cameras.Loading = false })
		r.d.state.ShowBanner(SlotCameraError, BannerError,
			api.MessageOf(err, MsgCamerasFailed), r.d.opts.BannerTimeout)
		return err
	}

	entries := make([]CameraEntry, 0, len(listing.AvailableCameras))
	for _, name := range listing.AvailableCameras {
		entries = append(entries, CameraEntry{Name: name, Active: name == listing.ActiveCamera})
	}
	r.d.count(func(m *metrics.Metrics) { m.MarkCameras(true, now) })
	r.d.state.Update(func(s *Snapshot) {
		s.Cameras.Loading = false
		s.Cameras.Loaded = true
		s.Cameras.Entries = entries
		s.Cameras.Active = listing.ActiveCamera
	})
	r.d.log.Debug("Cameras", "%d cameras, active %q", len(entries), listing.ActiveCamera)
	return nil
}
