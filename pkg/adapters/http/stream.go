package http

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
)

// SSE event names.
const (
	EventSnapshot = "snapshot"
	EventDiff     = "diff"
	EventEssay    = "essay"
	EventFeedback = "feedback"
	EventResult   = "result"
)

const subscriberBuffer = 64

// Message is one server-sent event.
type Message struct {
	Event string
	Data  []byte
}

// StreamManager fans engine output out to SSE subscribers. It implements the
// graph renderer and the three user surfaces, so the engine drives it like
// any other host.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan Message]struct{}
	logger      *slog.Logger

	// renderMu orders diffs: it covers computing and publishing each one.
	renderMu sync.Mutex
	last     *domain.Snapshot
}

var (
	_ ports.GraphRenderer   = (*StreamManager)(nil)
	_ ports.EssaySurface    = (*StreamManager)(nil)
	_ ports.FeedbackSurface = (*StreamManager)(nil)
	_ ports.ResultSurface   = (*StreamManager)(nil)
)

// NewStreamManager creates a manager without subscribers.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[chan Message]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel.
func (sm *StreamManager) Subscribe() (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, subscriberBuffer)
	sm.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (sm *StreamManager) Subscribers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends msg to every subscriber. Slow subscribers lose the message.
func (sm *StreamManager) Broadcast(msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("sse client buffer full, dropping message", "event", msg.Event)
		}
	}
}

// Render broadcasts the difference to the previously rendered snapshot.
func (sm *StreamManager) Render(snap domain.Snapshot) {
	snap = snap.Clone()

	sm.renderMu.Lock()
	defer sm.renderMu.Unlock()

	diff := domain.Diff(sm.last, &snap)
	sm.last = &snap
	if diff == nil {
		return
	}
	sm.publish(EventDiff, diff)
}

// ShowEssayInput announces that an essay is expected for topic.
func (sm *StreamManager) ShowEssayInput(topic string, _ ports.SubmitFunc) {
	sm.publish(EventEssay, map[string]string{"topic": topic})
}

// ShowFeedback announces feedback for the last essay.
func (sm *StreamManager) ShowFeedback(feedback string, _ ports.RetryFunc) {
	sm.publish(EventFeedback, map[string]string{"feedback": feedback})
}

// ShowResult announces a passed evaluation.
func (sm *StreamManager) ShowResult(score float64, _ ports.StartFunc) {
	sm.publish(EventResult, map[string]any{"score": score, "max": domain.MaxScore})
}

func (sm *StreamManager) publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Error("encode sse payload", "event", event, "err", err)
		return
	}
	sm.Broadcast(Message{Event: event, Data: data})
}
