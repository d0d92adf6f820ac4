package dashboard

import (
	"sync"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/clock"
	"github.com/dj-oyu/affectra-dashboard/internal/emotion"
)

// Phase is the statistics panel state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseDisplay Phase = "display"
	PhaseEmpty   Phase = "empty"
	PhaseError   Phase = "error"
)

// BannerKind selects how a banner is styled.
type BannerKind string

const (
	BannerInfo    BannerKind = "info"
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is a dismissable message line. Text is raw server or local text;
// it is escaped when rendered.
type Banner struct {
	Visible bool       `json:"visible"`
	Kind    BannerKind `json:"kind,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// StatsPanel is everything the statistics panel displays.
type StatsPanel struct {
	Phase          Phase         `json:"phase"`
	LoadingVisible bool          `json:"loading_visible"`
	ContentVisible bool          `json:"content_visible"`
	Dominant       string        `json:"dominant"`
	DominantColor  string        `json:"dominant_color"`
	AvgDuration    string        `json:"avg_duration"`
	VisitorCount   int           `json:"visitor_count"`
	Rows           []emotion.Row `json:"rows"`
	EmptyNotice    bool          `json:"empty_notice"`
	LastUpdate     time.Time     `json:"last_update"`
	Error          Banner        `json:"error"`
}

// CameraEntry is one selectable camera.
type CameraEntry struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CameraPanel is the camera list, its banners and the add form.
type CameraPanel struct {
	Loading  bool          `json:"loading"`
	Loaded   bool          `json:"loaded"`
	Entries  []CameraEntry `json:"entries"`
	Active   string        `json:"active"`
	Error    Banner        `json:"error"`
	Status   Banner        `json:"status"`
	FormOpen bool          `json:"form_open"`
	FormURL  string        `json:"form_url"`
	FormName string        `json:"form_name"`
}

// PromptKind names what a confirmation prompt is asking.
type PromptKind string

const (
	PromptClear  PromptKind = "clear"
	PromptSwitch PromptKind = "switch"
)

// Prompt is an open yes/no question to the operator.
type Prompt struct {
	Kind     PromptKind `json:"kind"`
	Question string     `json:"question"`
	Subject  string     `json:"subject,omitempty"`
}

// Snapshot is a point-in-time copy of the dashboard state.
type Snapshot struct {
	Version uint64      `json:"version"`
	Stats   StatsPanel  `json:"stats"`
	Cameras CameraPanel `json:"cameras"`
	Notice  Banner      `json:"notice"`
	Prompt  *Prompt     `json:"prompt,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Stats.Rows = append([]emotion.Row(nil), s.Stats.Rows...)
	out.Cameras.Entries = append([]CameraEntry(nil), s.Cameras.Entries...)
	if s.Prompt != nil {
		p := *s.Prompt
		out.Prompt = &p
	}
	return out
}

// Slot identifies one banner in the snapshot.
type Slot int

const (
	SlotStatsError Slot = iota
	SlotNotice
	SlotCameraError
	SlotCameraStatus
	numSlots
)

func (sl Slot) banner(s *Snapshot) *Banner {
	switch sl {
	case SlotStatsError:
		return &s.Stats.Error
	case SlotNotice:
		return &s.Notice
	case SlotCameraError:
		return &s.Cameras.Error
	default:
		return &s.Cameras.Status
	}
}

// State owns the dashboard snapshot. All mutations go through Update, which
// applies them atomically and signals ChangeCh.
type State struct {
	clock clock.Clock

	mu       sync.RWMutex
	snap     Snapshot
	hideGen  [numSlots]uint64
	hideTmr  [numSlots]clock.Timer
	changeCh chan struct{}
}

// NewState returns an idle state.
func NewState(clk clock.Clock) *State {
	if clk == nil {
		clk = clock.Real{}
	}
	return &State{
		clock:    clk,
		snap:     Snapshot{Stats: StatsPanel{Phase: PhaseIdle}},
		changeCh: make(chan struct{}, 1),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// ChangeCh receives a value after state changes. Bursts coalesce.
func (s *State) ChangeCh() <-chan struct{} {
	return s.changeCh
}

// Update applies fn to the snapshot under the state lock.
func (s *State) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.snap.Version++
	s.mu.Unlock()
	s.notifyChange()
}

func (s *State) notifyChange() {
	select {
	case s.changeCh <- struct{}{}:
	default:
	}
}

// ShowBanner replaces a banner's message. A positive autoHide hides it after
// that long; any hide pending from an earlier message on the same banner is
// cancelled.
func (s *State) ShowBanner(slot Slot, kind BannerKind, text string, autoHide time.Duration) {
	s.mu.Lock()
	*slot.banner(&s.snap) = Banner{Visible: true, Kind: kind, Text: text}
	s.snap.Version++
	gen := s.cancelHideLocked(slot)
	if autoHide > 0 {
		s.hideTmr[slot] = s.clock.AfterFunc(autoHide, func() { s.hideIfCurrent(slot, gen) })
	}
	s.mu.Unlock()
	s.notifyChange()
}

// HideBanner clears a banner immediately.
func (s *State) HideBanner(slot Slot) {
	s.mu.Lock()
	*slot.banner(&s.snap) = Banner{}
	s.snap.Version++
	s.cancelHideLocked(slot)
	s.mu.Unlock()
	s.notifyChange()
}

func (s *State) cancelHideLocked(slot Slot) uint64 {
	if t := s.hideTmr[slot]; t != nil {
		t.Stop()
		s.hideTmr[slot] = nil
	}
	s.hideGen[slot]++
	return s.hideGen[slot]
}

func (s *State) hideIfCurrent(slot Slot, gen uint64) {
	s.mu.Lock()
	if s.hideGen[slot] != gen {
		s.mu.Unlock()
		return
	}
	*slot.banner(&s.snap) = Banner{}
	s.hideTmr[slot] = nil
	s.snap.Version++
	s.mu.Unlock()
	s.notifyChange()
}
