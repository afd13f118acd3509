package devserver

import (
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncmsg"
)

const (
	subscriberBufferSize = 64
	latestCacheSize      = 256
)

// Subscriber is one attached stream consumer. Frames carries encoded
// wire envelopes; the channel closes when the job reaches a terminal
// phase or the hub shuts down.
type Subscriber struct {
	ID       string
	SourceID string
	Frames   chan []byte
}

// Hub fans simulated progress out to every attached subscriber and
// remembers the most recent snapshot per source for the poll endpoint.
// Slow subscribers lose frames rather than stalling the job; the poll
// endpoint always has the latest state.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]*Subscriber
	bySource map[string]mapset.Set[string]
	latest   *lru.Cache[string, *progress.Snapshot]
}

func NewHub() (*Hub, error) {
	cache, err := lru.New[string, *progress.Snapshot](latestCacheSize)
	if err != nil {
		return nil, err
	}
	return &Hub{
		subs:     make(map[string]*Subscriber),
		bySource: make(map[string]mapset.Set[string]),
		latest:   cache,
	}, nil
}

// Subscribe attaches a new consumer to a source's stream.
func (h *Hub) Subscribe(sourceID string) *Subscriber {
	sub := &Subscriber{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		Frames:   make(chan []byte, subscriberBufferSize),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	set, ok := h.bySource[sourceID]
	if !ok {
		set = mapset.NewSet[string]()
		h.bySource[sourceID] = set
	}
	set.Add(sub.ID)
	active := set.Cardinality()
	h.mu.Unlock()

	slog.Debug("hub subscribed", "source", sourceID, "conn", sub.ID, "active", active)
	return sub
}

// Unsubscribe detaches a consumer. Safe to call after the hub already
// closed the subscriber's channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		if set, found := h.bySource[sub.SourceID]; found {
			set.Remove(id)
		}
	}
	h.mu.Unlock()

	if ok {
		close(sub.Frames)
		slog.Debug("hub unsubscribed", "source", sub.SourceID, "conn", id)
	}
}

// Publish stores a snapshot as the source's latest state and fans the
// encoded progress frame out to its subscribers.
func (h *Hub) Publish(snap *progress.Snapshot) {
	snap.Normalize()
	h.latest.Add(snap.SourceID, snap)
	h.broadcast(snap.SourceID, syncmsg.NewProgress(snap))
}

// Heartbeat pushes a liveness frame to a source's subscribers.
func (h *Hub) Heartbeat(sourceID string, active bool) {
	h.broadcast(sourceID, syncmsg.NewHeartbeat(sourceID, active))
}

// PublishError pushes a stream error frame without closing anything.
func (h *Hub) PublishError(sourceID string, message string) {
	h.broadcast(sourceID, syncmsg.NewError(message))
}

// Latest returns the most recent snapshot for a source, if any.
func (h *Hub) Latest(sourceID string) (*progress.Snapshot, bool) {
	return h.latest.Get(sourceID)
}

// FinishSource closes every subscriber of a source. Handlers translate
// the channel close into an intentional stream shutdown.
func (h *Hub) FinishSource(sourceID string) {
	h.mu.Lock()
	var finished []*Subscriber
	if set, ok := h.bySource[sourceID]; ok {
		for id := range set.Iter() {
			if sub, found := h.subs[id]; found {
				delete(h.subs, id)
				finished = append(finished, sub)
			}
		}
		delete(h.bySource, sourceID)
	}
	h.mu.Unlock()

	for _, sub := range finished {
		close(sub.Frames)
	}
	slog.Debug("hub source finished", "source", sourceID, "subscribers", len(finished))
}

// Shutdown closes every subscriber on the hub.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.bySource = make(map[string]mapset.Set[string])
	h.mu.Unlock()

	for _, sub := range subs {
		close(sub.Frames)
	}
	slog.Info("hub shutdown", "subscribers", len(subs))
}

func (h *Hub) broadcast(sourceID string, msg *syncmsg.Message) {
	frame, err := syncmsg.Encode(msg)
	if err != nil {
		slog.Error("hub encode failed", "source", sourceID, "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.bySource[sourceID]
	if !ok {
		return
	}

	for id := range set.Iter() {
		sub, found := h.subs[id]
		if !found {
			continue
		}
		select {
		case sub.Frames <- frame:
		default:
			slog.Warn("hub subscriber buffer full", "source", sourceID, "conn", id, "dropped", msg.Type)
		}
	}
}
