// Package dashboard drives the emotion statistics and camera panels: it
// polls the backend, applies every outcome to a single State and performs
// the operator actions (clear data, select and add cameras).
package dashboard

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/dj-oyu/affectra-dashboard/internal/clock"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
)

// Backend is the subset of *api.Client the panels need.
type Backend interface {
	GetJSON(ctx context.Context, path string, out any) error
	PostJSON(ctx context.Context, path string, body, out any) error
	PostForm(ctx context.Context, path string, form url.Values, out any) error
}

// Options configures a Dashboard. Zero durations take the defaults below.
type Options struct {
	Clock   clock.Clock
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	StatsInterval   time.Duration
	CamerasInterval time.Duration
	BannerTimeout   time.Duration
	StatusTimeout   time.Duration
}

const (
	DefaultStatsInterval   = 30 * time.Second
	DefaultCamerasInterval = 10 * time.Second
	DefaultBannerTimeout   = 5 * time.Second
	DefaultStatusTimeout   = 3 * time.Second
)

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = DefaultStatsInterval
	}
	if o.CamerasInterval <= 0 {
		o.CamerasInterval = DefaultCamerasInterval
	}
	if o.BannerTimeout <= 0 {
		o.BannerTimeout = DefaultBannerTimeout
	}
	if o.StatusTimeout <= 0 {
		o.StatusTimeout = DefaultStatusTimeout
	}
}

// deps is shared by the panel components.
type deps struct {
	backend Backend
	state   *State
	clock   clock.Clock
	log     *logger.Logger
	metrics *metrics.Metrics
	opts    Options
}

func (d *deps) count(f func(m *metrics.Metrics)) {
	if d.metrics != nil {
		f(d.metrics)
	}
}

// Dashboard owns the state and the four panel components.
type Dashboard struct {
	State   *State
	Stats   *StatsPoller
	Clearer *DataClearer
	Cameras *CameraRegistry
	Mutator *CameraMutator

	d *deps
}

// New wires the components around a fresh State.
func New(backend Backend, opts Options) *Dashboard {
	opts.setDefaults()
	d := &deps{
		backend: backend,
		state:   NewState(opts.Clock),
		clock:   opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
	}
	stats := &StatsPoller{d: d}
	cams := &CameraRegistry{d: d}
	return &Dashboard{
		State:   d.state,
		Stats:   stats,
		Clearer: &DataClearer{d: d, stats: stats},
		Cameras: cams,
		Mutator: &CameraMutator{d: d, registry: cams},
		d:       d,
	}
}

// Run fetches both panels immediately and then on their intervals until ctx
// is done. Each panel's timer-driven fetches run one at a time; user actions
// may overlap them.
func (db *Dashboard) Run(ctx context.Context) error {
	statsTick := db.d.clock.NewTicker(db.d.opts.StatsInterval)
	camTick := db.d.clock.NewTicker(db.d.opts.CamerasInterval)
	defer statsTick.Stop()
	defer camTick.Stop()

	db.d.log.Info("Dashboard", "Polling stats every %v, cameras every %v",
		db.d.opts.StatsInterval, db.d.opts.CamerasInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poll(ctx, statsTick, func() { _ = db.Stats.FetchStats(ctx) })
	}()
	go func() {
		defer wg.Done()
		poll(ctx, camTick, func() { _ = db.Cameras.FetchCameras(ctx) })
	}()
	wg.Wait()

	db.d.log.Info("Dashboard", "Polling stopped")
	return nil
}

func poll(ctx context.Context, t clock.Ticker, fetch func()) {
	fetch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if ctx.Err() != nil {
				return
			}
			fetch()
		}
	}
}
