package projector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/clock"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/aretw0/essayflow/pkg/score"
	"github.com/spf13/cast"
)

const (
	// DefaultHold is how long a node stays active before it resolves.
	DefaultHold = 800 * time.Millisecond
	// DefaultModalDelay separates the feedback node resolving from the
	// feedback being presented.
	DefaultModalDelay = 500 * time.Millisecond
)

// Reporter receives the business outcomes of the projected stream.
type Reporter interface {
	// Succeeded is called when the aggregate total reaches the pass threshold.
	Succeeded(ctx context.Context, total float64)
	// FeedbackReady is called once feedback text is ready to be shown.
	FeedbackReady(ctx context.Context, feedback string)
}

type item struct {
	epoch domain.Epoch
	ev    domain.StepEvent
}

// Projector applies step events to node states one at a time.
// Every event is activated, held, resolved and acted upon before the next
// one starts, whatever the arrival pattern.
type Projector struct {
	mu    sync.RWMutex
	nodes map[domain.NodeID]*domain.NodeState
	epoch domain.Epoch
	// inflight is the node activated by the drain and not yet resolved,
	// cleared whenever Reset or Mark takes it over.
	inflight domain.NodeID

	queue *Queue[item]
	done  chan struct{}
	once  sync.Once

	hold       time.Duration
	modalDelay time.Duration
	threshold  float64
	clock      ports.Clock
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	renderer   ports.GraphRenderer
	reporter   Reporter
	session    func() domain.WorkflowSession
}

// Option configures a Projector.
type Option func(*Projector)

// WithHold sets the active phase duration.
func WithHold(d time.Duration) Option {
	return func(p *Projector) { p.hold = d }
}

// WithModalDelay sets the wait before feedback is presented.
func WithModalDelay(d time.Duration) Option {
	return func(p *Projector) { p.modalDelay = d }
}

// WithThreshold sets the aggregate total that counts as a pass.
func WithThreshold(total float64) Option {
	return func(p *Projector) { p.threshold = total }
}

// WithClock injects the time source used for every wait.
func WithClock(c ports.Clock) Option {
	return func(p *Projector) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) { p.logger = logger }
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Projector) { p.hooks = hooks }
}

// WithRenderer sets the renderer notified after every change.
func WithRenderer(r ports.GraphRenderer) Option {
	return func(p *Projector) { p.renderer = r }
}

// WithReporter sets the receiver of success and feedback outcomes.
func WithReporter(r Reporter) Option {
	return func(p *Projector) { p.reporter = r }
}

// WithSessionSource supplies the session embedded in rendered snapshots.
func WithSessionSource(fn func() domain.WorkflowSession) Option {
	return func(p *Projector) { p.session = fn }
}

// New creates a projector with every node idle.
func New(opts ...Option) *Projector {
	p := &Projector{
		nodes:      make(map[domain.NodeID]*domain.NodeState, len(domain.AllNodes)),
		done:       make(chan struct{}),
		hold:       DefaultHold,
		modalDelay: DefaultModalDelay,
		threshold:  domain.DefaultPassThreshold,
		clock:      clock.Real{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, id := range domain.AllNodes {
		st := domain.NewNodeState(id)
		p.nodes[id] = &st
	}
	p.queue = NewQueue(p.process)
	return p
}

// Epoch returns the current run tag.
func (p *Projector) Epoch() domain.Epoch {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epoch
}

// Enqueue schedules ev, produced by the stream of the given epoch.
// Events of a finished run are dropped immediately.
func (p *Projector) Enqueue(epoch domain.Epoch, ev domain.StepEvent) {
	if current := p.Epoch(); epoch != current {
		p.discard(epoch, current, ev.Node)
		return
	}
	if !p.queue.Push(item{epoch: epoch, ev: ev}) {
		p.logger.Debug("projector closed, event dropped", "node", ev.Node)
	}
}

// Reset starts a new run: the epoch moves forward, queued events are purged
// and the given nodes (all nodes when none are given) return to idle.
// Reset does not render; callers render once their own state is settled.
func (p *Projector) Reset(nodes ...domain.NodeID) domain.Epoch {
	if len(nodes) == 0 {
		nodes = domain.AllNodes
	}

	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	for _, id := range nodes {
		if st, ok := p.nodes[id]; ok {
			st.Status = domain.StatusIdle
			st.Score = nil
		}
		if id == p.inflight {
			p.inflight = ""
		}
	}
	p.mu.Unlock()

	if n := p.queue.Purge(); n > 0 {
		p.logger.Debug("purged queued events", "count", n, "epoch", epoch)
	}
	return epoch
}

// Mark sets the status of a known node and clears its score.
// Like Reset, it does not render.
func (p *Projector) Mark(id domain.NodeID, status domain.NodeStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.nodes[id]; ok {
		st.Status = status
		st.Score = nil
	}
	if id == p.inflight {
		p.inflight = ""
	}
}

// Nodes returns a copy of every node state in topology order.
func (p *Projector) Nodes() []domain.NodeState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.NodeState, 0, len(domain.AllNodes))
	for _, id := range domain.AllNodes {
		st := *p.nodes[id]
		if st.Score != nil {
			s := *st.Score
			st.Score = &s
		}
		out = append(out, st)
	}
	return out
}

// Snapshot returns the full read model.
func (p *Projector) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Session: domain.NewWorkflowSession(),
		Nodes:   p.Nodes(),
		Edges:   domain.Topology(),
		Epoch:   p.Epoch(),
	}
	if p.session != nil {
		snap.Session = p.session()
	}
	return snap
}

// Render hands the current snapshot to the renderer.
func (p *Projector) Render() {
	if p.renderer == nil {
		return
	}
	p.renderer.Render(p.Snapshot())
}

// Pending returns the number of queued events.
func (p *Projector) Pending() int { return p.queue.Len() }

// WaitIdle blocks until every queued event has been fully processed.
func (p *Projector) WaitIdle(ctx context.Context) error {
	return p.queue.WaitIdle(ctx)
}

// Close stops the drain. A node caught mid-hold is marked as error.
func (p *Projector) Close() {
	p.once.Do(func() {
		close(p.done)
		p.queue.Close()
	})
}

func (p *Projector) process(it item) {
	ctx := context.Background()
	ev := it.ev

	if current := p.Epoch(); it.epoch != current {
		p.discard(it.epoch, current, ev.Node)
		return
	}

	known := ev.Node.Known()
	if !known {
		p.logger.Warn("unexpected node", "node", ev.Node, "epoch", it.epoch)
	}

	start := p.clock.Now()
	if known && !p.apply(it.epoch, ev.Node, domain.StatusActive, nil) {
		p.discard(it.epoch, p.Epoch(), ev.Node)
		return
	}
	if p.hooks.OnNodeActivate != nil {
		p.hooks.OnNodeActivate(ctx, p.nodeEvent(domain.HookNodeActivate, it, domain.StatusActive, nil, 0))
	}
	p.Render()

	if !p.wait(p.hold) {
		if known {
			p.apply(it.epoch, ev.Node, domain.StatusError, nil)
			p.Render()
		}
		p.logger.Warn("projector closed during hold", "node", ev.Node)
		return
	}

	if current := p.Epoch(); it.epoch != current {
		if p.release(ev.Node) {
			p.Render()
		}
		p.discard(it.epoch, current, ev.Node)
		return
	}

	var scorePtr *float64
	if v, ok := score.FromEvent(ev); ok {
		scorePtr = &v
	} else if _, scored := score.Field(ev.Node); scored {
		p.logger.Debug("no numeric score in payload", "node", ev.Node)
	}

	if known && !p.apply(it.epoch, ev.Node, domain.StatusCompleted, scorePtr) {
		p.discard(it.epoch, p.Epoch(), ev.Node)
		return
	}
	if p.hooks.OnNodeResolve != nil {
		p.hooks.OnNodeResolve(ctx, p.nodeEvent(domain.HookNodeResolve, it, domain.StatusCompleted, scorePtr, p.clock.Now().Sub(start)))
	}
	p.Render()

	if known {
		p.applyRules(ctx, it, scorePtr)
	}
}

func (p *Projector) applyRules(ctx context.Context, it item, total *float64) {
	switch it.ev.Node {
	case domain.NodeAggregateScore:
		if total == nil {
			p.logger.Warn("aggregate score without a total", "epoch", it.epoch)
			return
		}
		if *total < p.threshold {
			p.logger.Info("evaluation below threshold", "total", *total, "threshold", p.threshold)
			return
		}
		if p.reporter != nil {
			p.reporter.Succeeded(ctx, *total)
		}

	case domain.NodeGenerateFeedback:
		text, err := cast.ToStringE(it.ev.Value(domain.FieldFeedback))
		if err != nil {
			p.logger.Warn("feedback is not text", "err", err)
		}
		if !p.wait(p.modalDelay) {
			return
		}
		if p.Epoch() != it.epoch {
			p.discard(it.epoch, p.Epoch(), it.ev.Node)
			return
		}
		if p.reporter != nil {
			p.reporter.FeedbackReady(ctx, text)
		}
	}
}

// apply sets a node state if epoch is still current.
func (p *Projector) apply(epoch domain.Epoch, id domain.NodeID, status domain.NodeStatus, sc *float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if epoch != p.epoch {
		return false
	}
	st, ok := p.nodes[id]
	if !ok {
		return false
	}
	st.Status = status
	st.Score = sc
	if status == domain.StatusActive {
		p.inflight = id
	} else if id == p.inflight {
		p.inflight = ""
	}
	return true
}

// release returns a node left active by a superseded run to idle, unless a
// Reset or Mark already took it over.
func (p *Projector) release(id domain.NodeID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id == "" || id != p.inflight {
		return false
	}
	p.inflight = ""
	if st, ok := p.nodes[id]; ok && st.Status == domain.StatusActive {
		st.Status = domain.StatusIdle
		return true
	}
	return false
}

// wait reports false when the projector was closed before d elapsed.
func (p *Projector) wait(d time.Duration) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	if d <= 0 {
		return true
	}
	select {
	case <-p.clock.After(d):
		return true
	case <-p.done:
		return false
	}
}

func (p *Projector) discard(epoch, current domain.Epoch, node domain.NodeID) {
	p.logger.Debug("stale event discarded", "node", node, "epoch", epoch, "current", current)
	if p.hooks.OnEventDiscarded != nil {
		p.hooks.OnEventDiscarded(context.Background(), &domain.DiscardEvent{
			EventBase: domain.EventBase{Timestamp: p.clock.Now(), Type: domain.HookEventDiscarded, Epoch: epoch},
			NodeID:    node,
			Current:   current,
		})
	}
}

func (p *Projector) nodeEvent(typ domain.HookEventType, it item, status domain.NodeStatus, sc *float64, elapsed time.Duration) *domain.NodeEvent {
	return &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: p.clock.Now(), Type: typ, Epoch: it.epoch},
		NodeID:    it.ev.Node,
		Known:     it.ev.Node.Known(),
		Status:    status,
		Score:     sc,
		Elapsed:   elapsed,
	}
}
