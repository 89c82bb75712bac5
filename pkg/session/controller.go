package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/essayflow/internal/logging"
	"github.com/aretw0/essayflow/pkg/clock"
	"github.com/aretw0/essayflow/pkg/domain"
	"github.com/aretw0/essayflow/pkg/ports"
	"github.com/aretw0/essayflow/pkg/projector"
	"github.com/aretw0/essayflow/pkg/stream"
)

// Pacing of the topic step used by hosts. The controller itself defaults to
// no pacing.
const (
	DefaultTopicHold = 800 * time.Millisecond
	DefaultHandoff   = 300 * time.Millisecond
)

// Controller owns the macro state of a session and bridges user actions to
// the transport and the projector.
type Controller struct {
	mu            sync.Mutex
	session       domain.WorkflowSession
	feedbackShown bool
	succeeded     bool
	closed        bool
	runCancel     context.CancelFunc
	// runDone is closed once the latest stream has been consumed.
	runDone chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc
	// workers is only added to under mu while not closed.
	workers sync.WaitGroup

	transport ports.Transport
	proj      *projector.Projector

	renderer  ports.GraphRenderer
	essay     ports.EssaySurface
	feedback  ports.FeedbackSurface
	result    ports.ResultSurface
	manager   *Manager
	clock     ports.Clock
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	topicHold time.Duration
	handoff   time.Duration
	projOpts  []projector.Option
}

// Option configures a Controller.
type Option func(*Controller)

// WithRenderer sets the graph renderer.
func WithRenderer(r ports.GraphRenderer) Option {
	return func(c *Controller) { c.renderer = r }
}

// WithEssaySurface sets the essay input surface.
func WithEssaySurface(s ports.EssaySurface) Option {
	return func(c *Controller) { c.essay = s }
}

// WithFeedbackSurface sets the feedback surface.
func WithFeedbackSurface(s ports.FeedbackSurface) Option {
	return func(c *Controller) { c.feedback = s }
}

// WithResultSurface sets the success surface.
func WithResultSurface(s ports.ResultSurface) Option {
	return func(c *Controller) { c.result = s }
}

// WithManager persists a snapshot on every macro transition.
func WithManager(m *Manager) Option {
	return func(c *Controller) { c.manager = m }
}

// WithClock injects the time source. It is shared with the projector.
func WithClock(clk ports.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) { c.hooks = hooks }
}

// WithTopicHold keeps the topic node active for at least d once the
// backend answered, so the step is perceivable.
func WithTopicHold(d time.Duration) Option {
	return func(c *Controller) { c.topicHold = d }
}

// WithHandoff pauses between the topic completing and essay collection.
func WithHandoff(d time.Duration) Option {
	return func(c *Controller) { c.handoff = d }
}

// WithProjectorOptions forwards options such as hold, modal delay and
// threshold to the projector.
func WithProjectorOptions(opts ...projector.Option) Option {
	return func(c *Controller) { c.projOpts = append(c.projOpts, opts...) }
}

// NewController creates an idle controller talking to transport.
func NewController(transport ports.Transport, opts ...Option) *Controller {
	c := &Controller{
		session:   domain.NewWorkflowSession(),
		transport: transport,
		clock:     clock.Real{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())

	base := []projector.Option{
		projector.WithClock(c.clock),
		projector.WithLogger(c.logger),
		projector.WithHooks(c.hooks),
		projector.WithReporter(c),
		projector.WithSessionSource(c.Session),
	}
	if c.renderer != nil {
		base = append(base, projector.WithRenderer(c.renderer))
	}
	c.proj = projector.New(append(base, c.projOpts...)...)
	return c
}

// Session returns a copy of the macro session.
func (c *Controller) Session() domain.WorkflowSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	if s.FinalScore != nil {
		v := *s.FinalScore
		s.FinalScore = &v
	}
	return s
}

// Snapshot returns the full read model.
func (c *Controller) Snapshot() domain.Snapshot {
	return c.proj.Snapshot()
}

// Start creates a new backend session. It is accepted while idle or
// finished, and returns once the essay surface has been opened.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || !c.session.CanStart() {
		status := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: start while %s", domain.ErrInvalidTransition, status)
	}
	c.cancelRunLocked()
	from := c.session.Status
	c.session = domain.NewWorkflowSession()
	c.feedbackShown, c.succeeded = false, false
	c.setStatusLocked(domain.MacroGeneratingTopic)
	c.proj.Reset()
	c.proj.Mark(domain.NodeGenerateTopic, domain.StatusActive)
	c.mu.Unlock()
	c.transition(ctx, from, domain.MacroGeneratingTopic)

	info, err := c.transport.CreateSession(ctx)
	if err == nil {
		err = c.sleep(ctx, c.topicHold)
	}
	if err != nil {
		c.mu.Lock()
		c.proj.Mark(domain.NodeGenerateTopic, domain.StatusError)
		c.setStatusLocked(domain.MacroIdle)
		c.mu.Unlock()
		c.logger.Error("session creation failed", "err", err)
		c.transition(ctx, domain.MacroGeneratingTopic, domain.MacroIdle)
		return fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	c.session.ID = info.ID
	c.session.Topic = info.Topic
	c.proj.Mark(domain.NodeGenerateTopic, domain.StatusCompleted)
	c.mu.Unlock()
	c.proj.Render()
	c.logger.Info("session created", "session_id", info.ID)

	if err := c.sleep(ctx, c.handoff); err != nil {
		c.logger.Debug("handoff pause interrupted", "err", err)
	}

	c.mu.Lock()
	c.proj.Mark(domain.NodeCollectEssay, domain.StatusActive)
	c.setStatusLocked(domain.MacroWaitingEssay)
	topic := c.session.Topic
	c.mu.Unlock()
	c.transition(ctx, domain.MacroGeneratingTopic, domain.MacroWaitingEssay)

	if c.essay != nil {
		c.essay.ShowEssayInput(topic, c.SubmitEssay)
	}
	return nil
}

// SubmitEssay sends the essay for evaluation. It returns once the event
// stream is open; events are then projected in the background.
func (c *Controller) SubmitEssay(ctx context.Context, essay string) error {
	clean, err := SanitizeEssay(essay)
	if err != nil {
		return err
	}
	if strings.TrimSpace(clean) == "" {
		return domain.ErrEmptyEssay
	}

	c.mu.Lock()
	if c.closed || c.session.Status != domain.MacroWaitingEssay {
		status := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: submit while %s", domain.ErrInvalidTransition, status)
	}
	if c.session.ID == "" {
		c.mu.Unlock()
		return domain.ErrNoSession
	}
	c.cancelRunLocked()
	c.session.Attempts++
	c.session.FinalScore = nil
	c.session.FeedbackText = ""
	c.feedbackShown, c.succeeded = false, false
	c.setStatusLocked(domain.MacroEvaluating)
	c.proj.Mark(domain.NodeCollectEssay, domain.StatusCompleted)
	epoch := c.proj.Reset(domain.EvaluationNodes...)
	runCtx, cancel := context.WithCancel(c.baseCtx)
	c.runCancel = cancel
	done := make(chan struct{})
	c.runDone = done
	c.workers.Add(1)
	id := c.session.ID
	c.mu.Unlock()
	c.transition(ctx, domain.MacroWaitingEssay, domain.MacroEvaluating)

	stop := context.AfterFunc(ctx, cancel)
	body, err := c.transport.SubmitEssay(runCtx, id, clean)
	stop()
	if err != nil {
		c.logger.Error("evaluation stream failed to open", "session_id", id, "err", err)
		close(done)
		c.workers.Done()
		c.recover(ctx, epoch)
		return fmt.Errorf("open evaluation stream: %w", err)
	}

	go c.consume(runCtx, epoch, body, done)
	return nil
}

// Retry loops back to essay collection once feedback was presented.
// The backend session is kept.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.session.Status != domain.MacroEvaluating || !c.feedbackShown {
		status := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: retry while %s", domain.ErrInvalidTransition, status)
	}
	c.cancelRunLocked()
	c.feedbackShown = false
	c.proj.Reset(domain.NodeGenerateFeedback)
	c.proj.Mark(domain.NodeCollectEssay, domain.StatusActive)
	c.setStatusLocked(domain.MacroWaitingEssay)
	topic := c.session.Topic
	c.mu.Unlock()
	c.transition(ctx, domain.MacroEvaluating, domain.MacroWaitingEssay)

	if c.essay != nil {
		c.essay.ShowEssayInput(topic, c.SubmitEssay)
	}
	return nil
}

// Succeeded finishes the session. It is called by the projector and only
// takes effect once per evaluation.
func (c *Controller) Succeeded(ctx context.Context, total float64) {
	c.mu.Lock()
	if c.session.Status != domain.MacroEvaluating || c.succeeded {
		c.mu.Unlock()
		return
	}
	c.succeeded = true
	c.session.FinalScore = &total
	c.setStatusLocked(domain.MacroFinished)
	c.mu.Unlock()
	c.logger.Info("evaluation passed", "total", total)
	c.transition(ctx, domain.MacroEvaluating, domain.MacroFinished)

	if c.result != nil {
		c.result.ShowResult(total, c.Start)
	}
}

// FeedbackReady records the feedback and presents it.
func (c *Controller) FeedbackReady(ctx context.Context, feedback string) {
	c.mu.Lock()
	if c.session.Status != domain.MacroEvaluating {
		status := c.session.Status
		c.mu.Unlock()
		c.logger.Debug("feedback ignored", "status", status)
		return
	}
	c.session.FeedbackText = feedback
	c.session.UpdatedAt = c.clock.Now()
	c.feedbackShown = true
	id := c.session.ID
	c.mu.Unlock()
	c.persist(ctx, id)

	if c.feedback != nil {
		c.feedback.ShowFeedback(feedback, c.Retry)
	}
}

// WaitIdle blocks until the current stream is consumed and every event
// has been projected.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	done := c.runDone
	c.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.proj.WaitIdle(ctx)
}

// Close cancels any stream in progress and stops the projector.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelRunLocked()
	c.mu.Unlock()

	c.baseCancel()
	c.proj.Close()
	c.workers.Wait()
	return nil
}

func (c *Controller) consume(ctx context.Context, epoch domain.Epoch, body io.ReadCloser, done chan struct{}) {
	defer c.workers.Done()
	defer close(done)
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	err := stream.Pump(ctx, body, stream.Handler{
		OnEvent: func(ev domain.StepEvent) {
			c.proj.Enqueue(epoch, ev)
		},
		OnFailure: func(e *stream.DecodeError) {
			c.logger.Warn("skipping malformed record", "reason", e.Reason, "err", e.Err)
			if c.hooks.OnDecodeFailure != nil {
				c.hooks.OnDecodeFailure(ctx, &domain.DecodeFailureEvent{
					EventBase: domain.EventBase{Timestamp: c.clock.Now(), Type: domain.HookDecodeFailure, Epoch: epoch},
					Record:    e.Record,
					Reason:    e.Reason,
				})
			}
		},
	})
	if ctx.Err() != nil {
		c.logger.Debug("evaluation stream cancelled", "epoch", epoch)
		return
	}
	if err != nil {
		c.logger.Error("evaluation stream broken", "epoch", epoch, "err", err)
	}

	// Let the queued events play out before judging the outcome.
	if err := c.proj.WaitIdle(ctx); err != nil {
		return
	}
	c.mu.Lock()
	settled := c.succeeded || c.feedbackShown || c.session.Status != domain.MacroEvaluating
	c.mu.Unlock()
	if settled {
		return
	}
	c.logger.Warn("evaluation stream ended without an outcome", "epoch", epoch)
	c.recover(context.WithoutCancel(ctx), epoch)
}

// recover returns an evaluation that cannot complete to essay collection,
// with collect_essay flagged as error, so the user can submit again.
func (c *Controller) recover(ctx context.Context, epoch domain.Epoch) {
	c.mu.Lock()
	if c.session.Status != domain.MacroEvaluating || c.proj.Epoch() != epoch {
		c.mu.Unlock()
		return
	}
	c.cancelRunLocked()
	c.proj.Mark(domain.NodeCollectEssay, domain.StatusError)
	c.setStatusLocked(domain.MacroWaitingEssay)
	c.mu.Unlock()
	c.transition(ctx, domain.MacroEvaluating, domain.MacroWaitingEssay)
}

// transition publishes a status change. It must be called without c.mu.
func (c *Controller) transition(ctx context.Context, from, to domain.MacroStatus) {
	s := c.Session()
	c.logger.Info("session transition", "session_id", s.ID, "from", from, "to", to)
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: c.clock.Now(), Type: domain.HookTransition, Epoch: c.proj.Epoch()},
			SessionID: s.ID,
			From:      from,
			To:        to,
		})
	}
	c.proj.Render()
	c.persist(ctx, s.ID)
}

func (c *Controller) persist(ctx context.Context, id string) {
	if c.manager == nil || id == "" {
		return
	}
	if err := c.manager.Save(context.WithoutCancel(ctx), id, c.Snapshot()); err != nil {
		c.logger.Warn("failed to save session snapshot", "session_id", id, "err", err)
	}
}

func (c *Controller) setStatusLocked(status domain.MacroStatus) {
	c.session.Status = status
	c.session.UpdatedAt = c.clock.Now()
}

func (c *Controller) cancelRunLocked() {
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-c.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.baseCtx.Done():
		return errors.New("controller closed")
	}
}
