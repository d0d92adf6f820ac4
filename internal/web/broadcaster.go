package web

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dj-oyu/affectra-dashboard/internal/dashboard"
	"github.com/dj-oyu/affectra-dashboard/internal/logger"
	"github.com/dj-oyu/affectra-dashboard/internal/metrics"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// SerializedEvent holds one snapshot pre-serialized in both wire formats so
// fanout to many clients encodes it once.
type SerializedEvent struct {
	Version      uint64
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // structpb.Struct, base64 encoded for SSE
}

// EncodeSnapshot serializes snap as JSON and as a base64 structpb.Struct.
func EncodeSnapshot(snap dashboard.Snapshot) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, fmt.Errorf("json fields: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("protobuf struct: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal: %w", err)
	}

	return &SerializedEvent{
		Version:      snap.Version,
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// StateBroadcaster fans dashboard state changes out to SSE clients.
type StateBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	state   *dashboard.State
	metrics *metrics.Metrics
	stop    chan struct{}
	stopped bool
}

// NewStateBroadcaster creates a broadcaster for state. m may be nil.
func NewStateBroadcaster(state *dashboard.State, m *metrics.Metrics) *StateBroadcaster {
	return &StateBroadcaster{
		clients: make(map[int]chan *SerializedEvent),
		state:   state,
		metrics: m,
		stop:    make(chan struct{}),
	}
}

// Subscribe adds a client and returns its event channel.
func (sb *StateBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	id := sb.nextID
	sb.nextID++
	ch := make(chan *SerializedEvent, 2)
	if sb.stopped {
		close(ch)
		return id, ch
	}
	sb.clients[id] = ch
	if sb.metrics != nil {
		sb.metrics.StreamClients.Add(1)
	}

	logger.Debug("StateBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(sb.clients))
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (sb *StateBroadcaster) Unsubscribe(id int) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if ch, ok := sb.clients[id]; ok {
		close(ch)
		delete(sb.clients, id)
		if sb.metrics != nil {
			sb.metrics.StreamClients.Add(-1)
		}
		logger.Debug("StateBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(sb.clients))
	}
}

// Clients returns the number of subscribers.
func (sb *StateBroadcaster) Clients() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.clients)
}

// Start begins forwarding state changes.
func (sb *StateBroadcaster) Start() {
	go sb.run()
}

// Stop halts the broadcaster and closes every client channel.
func (sb *StateBroadcaster) Stop() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.stopped {
		return
	}
	close(sb.stop)
	sb.stopped = true
	for id, ch := range sb.clients {
		close(ch)
		delete(sb.clients, id)
		if sb.metrics != nil {
			sb.metrics.StreamClients.Add(-1)
		}
	}
}

func (sb *StateBroadcaster) run() {
	logger.Info("StateBroadcaster", "Forwarding dashboard state changes")
	for {
		select {
		case <-sb.stop:
			return
		case <-sb.state.ChangeCh():
			if sb.Clients() == 0 {
				continue
			}
			event, err := EncodeSnapshot(sb.state.Snapshot())
			if err != nil {
				logger.Error("StateBroadcaster", "Encode error: %v", err)
				continue
			}
			sb.broadcast(event)
		}
	}
}

func (sb *StateBroadcaster) broadcast(event *SerializedEvent) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for _, ch := range sb.clients {
		select {
		case ch <- event:
			continue
		default:
		}
		// Slow client: drop its oldest pending event so the latest state
		// is always queued.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}
