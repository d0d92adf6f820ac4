package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dj-oyu/affectra-dashboard/internal/api"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
)

// CameraMutator switches the active camera and registers new ones.
type CameraMutator struct {
	d        *deps
	registry *CameraRegistry
}

// SelectCamera makes name the active camera and reloads the list on success.
// The status line hides a few seconds after the outcome either way.
func (m *CameraMutator) SelectCamera(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		m.d.count(func(mt *metrics.Metrics) { mt.ValidationErrors.Add(1) })
		err := &api.ValidationError{Field: "camera_name", Message: "Please choose a camera"}
		m.d.state.ShowBanner(SlotCameraStatus, BannerError, err.Message, m.d.opts.StatusTimeout)
		return err
	}

	m.d.state.ShowBanner(SlotCameraStatus, BannerInfo, fmt.Sprintf("Switching to %s...", name), 0)

	var res api.MutationResult
	err := m.d.backend.PostForm(ctx, api.PathSelectCamera, url.Values{"camera_name": {name}}, &res)
	if err != nil {
		m.d.log.Error("Cameras", "Error switching to %q: %v", name, err)
		m.d.state.ShowBanner(SlotCameraStatus, BannerError,
			api.MessageOf(err, MsgSwitchFailed), m.d.opts.StatusTimeout)
		return err
	}

	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("Switched to %s", name)
	}
	m.d.count(func(mt *metrics.Metrics) { mt.CameraSwitches.Add(1) })
	m.d.log.Info("Cameras", "Active camera is now %q", name)
	m.d.state.ShowBanner(SlotCameraStatus, BannerSuccess, msg, m.d.opts.StatusTimeout)

	_ = m.registry.FetchCameras(ctx)
	return nil
}

// AddCamera registers an ESP32 camera stream. An empty name lets the backend
// pick one. On success the form collapses and the operator is asked whether
// to switch to the new camera.
func (m *CameraMutator) AddCamera(ctx context.Context, streamURL, name string) error {
	streamURL = strings.TrimSpace(streamURL)
	name = strings.TrimSpace(name)
	m.d.state.Update(func(s *Snapshot) {
		s.Cameras.FormURL = streamURL
		s.Cameras.FormName = name
	})

	if streamURL == "" {
		m.d.count(func(mt *metrics.Metrics) { mt.ValidationErrors.Add(1) })
		err := &api.ValidationError{Field: "url", Message: MsgCameraURLRequired}
		m.d.state.ShowBanner(SlotCameraStatus, BannerError, err.Message, 0)
		return err
	}

	m.d.state.ShowBanner(SlotCameraStatus, BannerInfo, "Adding camera...", 0)

	form := url.Values{"url": {streamURL}}
	if name != "" {
		form.Set("name", name)
	}
	var res api.MutationResult
	if err := m.d.backend.PostForm(ctx, api.PathAddCamera, form, &res); err != nil {
		m.d.log.Error("Cameras", "Error adding camera %s: %v", streamURL, err)
		m.d.state.ShowBanner(SlotCameraStatus, BannerError, api.MessageOf(err, MsgAddFailed), 0)
		return err
	}

	added := res.CameraName
	if added == "" {
		added = name
	}
	if added == "" {
		added = streamURL
	}
	m.d.count(func(mt *metrics.Metrics) { mt.CamerasAdded.Add(1) })
	m.d.log.Info("Cameras", "Camera %q added (%s)", added, streamURL)

	m.d.state.Update(func(s *Snapshot) {
		s.Cameras.FormOpen = false
		s.Cameras.FormURL = ""
		s.Cameras.FormName = ""
		s.Prompt = &Prompt{
			Kind:     PromptSwitch,
			Question: fmt.Sprintf("Camera %s added. Switch to it now?", added),
			Subject:  added,
		}
	})
	m.d.state.HideBanner(SlotCameraStatus)
	return nil
}

// AnswerSwitch resolves the prompt opened by AddCamera. Accepting selects the
// new camera; declining only reloads the list.
func (m *CameraMutator) AnswerSwitch(ctx context.Context, accept bool) error {
	var subject string
	m.d.state.Update(func(s *Snapshot) {
		if s.Prompt != nil && s.Prompt.Kind == PromptSwitch {
			subject = s.Prompt.Subject
			s.Prompt = nil
		}
	})
	if subject == "" {
		m.d.count(func(mt *metrics.Metrics) { mt.ValidationErrors.Add(1) })
		return &api.ValidationError{Field: "switch", Message: "no camera switch is pending"}
	}
	if accept {
		return m.SelectCamera(ctx, subject)
	}
	return m.registry.FetchCameras(ctx)
}

// ToggleAddForm expands or collapses the add-camera form and reports the
// new state.
func (m *CameraMutator) ToggleAddForm() bool {
	var open bool
	m.d.state.Update(func(s *Snapshot) {
		s.Cameras.FormOpen = !s.Cameras.FormOpen
		open = s.Cameras.FormOpen
	})
	return open
}

// SetAddFormOpen expands or collapses the add-camera form.
func (m *CameraMutator) SetAddFormOpen(open bool) {
	m.d.state.Update(func(s *Snapshot) { s.Cameras.FormOpen = open })
}
