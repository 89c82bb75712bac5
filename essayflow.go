package essayflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/adapters/backend"
	"github.com/aretw0/essayflow/pkg/adapters/sim"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/aretw0/essayflow/pkg/projector"
	"github.com/aretw0/essayflow/pkg/session"
)

// Pacing holds the perceptual delays of the graph.
type Pacing struct {
	// Hold keeps every node active before it resolves.
	Hold time.Duration
	// ModalDelay separates the feedback node resolving from the feedback surface.
	ModalDelay time.Duration
	// TopicHold keeps the topic node active once the backend answered.
	TopicHold time.Duration
	// Handoff pauses between the topic completing and essay collection.
	Handoff time.Duration
}

// DefaultPacing returns the pacing of the reference user interface.
func DefaultPacing() Pacing {
	return Pacing{
		Hold:       projector.DefaultHold,
		ModalDelay: projector.DefaultModalDelay,
		TopicHold:  session.DefaultTopicHold,
		Handoff:    session.DefaultHandoff,
	}
}

// Host is a user interface able to paint the graph and run every surface.
type Host interface {
	ports.GraphRenderer
	ports.EssaySurface
	ports.FeedbackSurface
	ports.ResultSurface
}

// Engine is the high-level entry point of the library. It drives one
// workflow session at a time against an evaluation backend.
type Engine struct {
	ctrl    *session.Controller
	manager *session.Manager

	transport ports.Transport
	simulate  bool
	simOpts   []sim.TransportOption
	timeout   time.Duration
	renderers []ports.GraphRenderer
	essay     ports.EssaySurface
	feedback  ports.FeedbackSurface
	result    ports.ResultSurface
	store     ports.SessionStore
	locker    ports.DistributedLocker
	hooks     []domain.LifecycleHooks
	clock     ports.Clock
	logger    *slog.Logger
	pacing    Pacing
	threshold float64
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithTransport injects the backend transport, bypassing the HTTP client.
func WithTransport(t ports.Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithSimulator evaluates essays with the in-process simulated backend.
func WithSimulator(opts ...sim.TransportOption) Option {
	return func(e *Engine) {
		e.simulate = true
		e.simOpts = append(e.simOpts, opts...)
	}
}

// WithBackendTimeout bounds session creation on the HTTP backend.
func WithBackendTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRenderer adds a graph renderer. Every renderer receives every frame.
func WithRenderer(r ports.GraphRenderer) Option {
	return func(e *Engine) { e.renderers = append(e.renderers, r) }
}

// WithHost registers h as renderer and as every user surface.
func WithHost(h Host) Option {
	return func(e *Engine) {
		e.renderers = append(e.renderers, h)
		e.essay, e.feedback, e.result = h, h, h
	}
}

// WithEssaySurface sets the essay input surface.
func WithEssaySurface(s ports.EssaySurface) Option {
	return func(e *Engine) { e.essay = s }
}

// WithFeedbackSurface sets the feedback surface.
func WithFeedbackSurface(s ports.FeedbackSurface) Option {
	return func(e *Engine) { e.feedback = s }
}

// WithResultSurface sets the success surface.
func WithResultSurface(s ports.ResultSurface) Option {
	return func(e *Engine) { e.result = s }
}

// WithStore persists a snapshot of the session on every macro transition.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithLocker serializes snapshot writes across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLifecycleHooks registers observability hooks. Hooks accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, hooks) }
}

// WithClock injects the time source used for pacing.
func WithClock(c ports.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithPacing replaces DefaultPacing.
func WithPacing(p Pacing) Option {
	return func(e *Engine) { e.pacing = p }
}

// WithPassThreshold sets the aggregate total that ends the workflow.
func WithPassThreshold(total float64) Option {
	return func(e *Engine) { e.threshold = total }
}

// New initializes an Engine. By default it talks HTTP to the backend at
// backendURL (empty means backend.DefaultBaseURL); WithTransport and
// WithSimulator replace it.
func New(backendURL string, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:    logging.NewNop(),
		pacing:    DefaultPacing(),
		threshold: domain.DefaultPassThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.threshold <= 0 || e.threshold > domain.MaxScore {
		return nil, fmt.Errorf("pass threshold must be in (0, %d], got %v", domain.MaxScore, e.threshold)
	}

	switch {
	case e.transport != nil:
	case e.simulate:
		e.transport = sim.NewTransport(sim.NewBackend(sim.WithPassThreshold(e.threshold)), e.simOpts...)
	default:
		var clientOpts []backend.Option
		clientOpts = append(clientOpts, backend.WithLogger(e.logger))
		if e.timeout > 0 {
			clientOpts = append(clientOpts, backend.WithTimeout(e.timeout))
		}
		client, err := backend.New(backendURL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		e.transport = client
	}

	ctrlOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithHooks(domain.ComposeHooks(e.hooks...)),
		session.WithTopicHold(e.pacing.TopicHold),
		session.WithHandoff(e.pacing.Handoff),
		session.WithProjectorOptions(
			projector.WithHold(e.pacing.Hold),
			projector.WithModalDelay(e.pacing.ModalDelay),
			projector.WithThreshold(e.threshold),
		),
	}
	if e.clock != nil {
		ctrlOpts = append(ctrlOpts, session.WithClock(e.clock))
	}
	switch len(e.renderers) {
	case 0:
	case 1:
		ctrlOpts = append(ctrlOpts, session.WithRenderer(e.renderers[0]))
	default:
		ctrlOpts = append(ctrlOpts, session.WithRenderer(fanout(e.renderers)))
	}
	if e.essay != nil {
		ctrlOpts = append(ctrlOpts, session.WithEssaySurface(e.essay))
	}
	if e.feedback != nil {
		ctrlOpts = append(ctrlOpts, session.WithFeedbackSurface(e.feedback))
	}
	if e.result != nil {
		ctrlOpts = append(ctrlOpts, session.WithResultSurface(e.result))
	}
	if e.store != nil {
		mopts := []session.ManagerOption{session.WithManagerLogger(e.logger)}
		if e.locker != nil {
			mopts = append(mopts, session.WithLocker(e.locker))
		}
		e.manager = session.NewManager(e.store, mopts...)
		ctrlOpts = append(ctrlOpts, session.WithManager(e.manager))
	}

	e.ctrl = session.NewController(e.transport, ctrlOpts...)
	return e, nil
}

// Start creates a new backend session and opens the essay surface.
func (e *Engine) Start(ctx context.Context) error { return e.ctrl.Start(ctx) }

// SubmitEssay sends an essay for evaluation.
func (e *Engine) SubmitEssay(ctx context.Context, essay string) error {
	return e.ctrl.SubmitEssay(ctx, essay)
}

// Retry returns to essay collection after feedback.
func (e *Engine) Retry(ctx context.Context) error { return e.ctrl.Retry(ctx) }

// Snapshot returns the current read model.
func (e *Engine) Snapshot() domain.Snapshot { return e.ctrl.Snapshot() }

// Session returns the current macro session.
func (e *Engine) Session() domain.WorkflowSession { return e.ctrl.Session() }

// WaitIdle blocks until the current evaluation has been fully projected.
func (e *Engine) WaitIdle(ctx context.Context) error { return e.ctrl.WaitIdle(ctx) }

// Transport returns the backend transport in use.
func (e *Engine) Transport() ports.Transport { return e.transport }

// Sessions lists stored session ids. Without a store it returns nothing.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	if e.manager == nil {
		return nil, nil
	}
	return e.manager.List(ctx)
}

// LoadSession returns a stored snapshot.
func (e *Engine) LoadSession(ctx context.Context, id string) (domain.Snapshot, error) {
	if e.manager == nil {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return e.manager.Load(ctx, id)
}

// Close stops any evaluation in progress.
func (e *Engine) Close() error { return e.ctrl.Close() }

type fanout []ports.GraphRenderer

func (f fanout) Render(snap domain.Snapshot) {
	for _, r := range f {
		r.Render(snap)
	}
}
