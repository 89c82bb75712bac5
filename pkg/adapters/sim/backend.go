package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/google/uuid"
)

// ErrUnknownThread is returned for essays submitted to a thread never started.
var ErrUnknownThread = errors.New("unknown thread")

// DefaultTopics are handed out in rotation by Start.
var DefaultTopics = []string{
	"Technology as an equaliser: myth or reality?",
	"Urbanisation and its discontents",
	"The cost of cheap food",
	"Should growth be the measure of a nation's progress?",
	"Water: the next global flashpoint",
}

type thread struct {
	topic     string
	revisions int
}

// Backend holds simulated workflow threads. Safe for concurrent use.
type Backend struct {
	mu        sync.Mutex
	threads   map[string]*thread
	topics    []string
	next      int
	threshold float64
	newID     func() string
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithTopics replaces the topic rotation.
func WithTopics(topics ...string) BackendOption {
	return func(b *Backend) {
		if len(topics) > 0 {
			b.topics = topics
		}
	}
}

// WithPassThreshold sets the total below which feedback is produced.
func WithPassThreshold(total float64) BackendOption {
	return func(b *Backend) { b.threshold = total }
}

// WithIDGenerator replaces the uuid thread id generator.
func WithIDGenerator(fn func() string) BackendOption {
	return func(b *Backend) { b.newID = fn }
}

// NewBackend creates an empty simulated service.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		threads:   make(map[string]*thread),
		topics:    DefaultTopics,
		threshold: domain.DefaultPassThreshold,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start opens a thread and picks its topic.
func (b *Backend) Start() ports.SessionInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic := b.topics[b.next%len(b.topics)]
	b.next++
	id := b.newID()
	b.threads[id] = &thread{topic: topic}
	return ports.SessionInfo{ID: id, Topic: topic}
}

// Evaluate scores essay on thread id and returns the records the service
// would stream, in order.
func (b *Backend) Evaluate(id, essay string) ([]backend.StepRecord, error) {
	b.mu.Lock()
	th, ok := b.threads[id]
	if ok {
		th.revisions++
	}
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, id)
	}

	e := Score(essay)
	records := []backend.StepRecord{
		// The resumed graph replays the input node without a state update.
		{Node: string(domain.NodeCollectEssay)},
		{Node: string(domain.NodeEvalClarity), Data: map[string]any{domain.FieldClarityScore: e.Clarity}},
		{Node: string(domain.NodeEvalDepth), Data: map[string]any{domain.FieldDepthScore: e.Depth}},
		{Node: string(domain.NodeEvalVocab), Data: map[string]any{domain.FieldVocabScore: e.Vocab}},
		{Node: string(domain.NodeAggregateScore), Data: map[string]any{domain.FieldTotalScore: e.Total}},
	}
	if !e.Passed(b.threshold) {
		records = append(records, backend.StepRecord{
			Node: string(domain.NodeGenerateFeedback),
			Data: map[string]any{domain.FieldFeedback: Feedback(e)},
		})
	}
	return records, nil
}

// Revisions returns how many essays thread id has received.
func (b *Backend) Revisions(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if th, ok := b.threads[id]; ok {
		return th.revisions
	}
	return 0
}
