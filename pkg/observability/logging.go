package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/essayflow/pkg/domain"
)

// LogHooks returns lifecycle hooks writing one structured record per event.
// Node cycles log at debug, everything else at info or warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeActivate: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_activate", "node", e.NodeID, "epoch", e.Epoch, "known", e.Known)
		},
		OnNodeResolve: func(ctx context.Context, e *domain.NodeEvent) {
			attrs := []any{"node", e.NodeID, "epoch", e.Epoch, "status", e.Status, "elapsed", e.Elapsed}
			if e.Score != nil {
				attrs = append(attrs, "score", *e.Score)
			}
			logger.DebugContext(ctx, "node_resolve", attrs...)
		},
		OnDecodeFailure: func(ctx context.Context, e *domain.DecodeFailureEvent) {
			logger.WarnContext(ctx, "decode_failure", "reason", e.Reason, "record", e.Record)
		},
		OnEventDiscarded: func(ctx context.Context, e *domain.DiscardEvent) {
			logger.DebugContext(ctx, "event_discarded", "node", e.NodeID, "epoch", e.Epoch, "current", e.Current)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition", "session_id", e.SessionID, "from", e.From, "to", e.To)
		},
	}
}
