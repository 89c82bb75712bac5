package domain

import (
	"context"
	"time"
)

// HookEventType defines the category of a lifecycle event.
type HookEventType string

const (
	HookNodeActivate   HookEventType = "node_activate"
	HookNodeResolve    HookEventType = "node_resolve"
	HookDecodeFailure  HookEventType = "decode_failure"
	HookEventDiscarded HookEventType = "event_discarded"
	HookTransition     HookEventType = "transition"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      HookEventType `json:"type"`
	Epoch     Epoch         `json:"epoch"`
}

// NodeEvent reports a node entering or leaving the active phase of a cycle.
type NodeEvent struct {
	EventBase
	NodeID  NodeID        `json:"node_id"`
	Known   bool          `json:"known"`
	Status  NodeStatus    `json:"status"`
	Score   *float64      `json:"score,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// DecodeFailureEvent reports a record that could not be decoded.
type DecodeFailureEvent struct {
	EventBase
	Record string `json:"record"`
	Reason string `json:"reason"`
}

// DiscardEvent reports a queued event dropped because its run is over.
type DiscardEvent struct {
	EventBase
	NodeID  NodeID `json:"node_id"`
	Current Epoch  `json:"current"`
}

// TransitionEvent reports a macro status change.
type TransitionEvent struct {
	EventBase
	SessionID string      `json:"session_id,omitempty"`
	From      MacroStatus `json:"from"`
	To        MacroStatus `json:"to"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnNodeActivate   func(context.Context, *NodeEvent)
	OnNodeResolve    func(context.Context, *NodeEvent)
	OnDecodeFailure  func(context.Context, *DecodeFailureEvent)
	OnEventDiscarded func(context.Context, *DiscardEvent)
	OnTransition     func(context.Context, *TransitionEvent)
}

// ComposeHooks fans each callback out to every non-nil hook in order.
func ComposeHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeActivate: func(ctx context.Context, e *NodeEvent) {
			for _, h := range all {
				if h.OnNodeActivate != nil {
					h.OnNodeActivate(ctx, e)
				}
			}
		},
		OnNodeResolve: func(ctx context.Context, e *NodeEvent) {
			for _, h := range all {
				if h.OnNodeResolve != nil {
					h.OnNodeResolve(ctx, e)
				}
			}
		},
		OnDecodeFailure: func(ctx context.Context, e *DecodeFailureEvent) {
			for _, h := range all {
				if h.OnDecodeFailure != nil {
					h.OnDecodeFailure(ctx, e)
				}
			}
		},
		OnEventDiscarded: func(ctx context.Context, e *DiscardEvent) {
			for _, h := range all {
				if h.OnEventDiscarded != nil {
					h.OnEventDiscarded(ctx, e)
				}
			}
		},
		OnTransition: func(ctx context.Context, e *TransitionEvent) {
			for _, h := range all {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
	}
}
