/*
Package domain contains the core domain models of the essay evaluation graph.

It defines the closed set of workflow nodes, their visual status, the step events
reported by the remote workflow and the macro session record. This package is kept
pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - NodeID / NodeState: one stage of the workflow and its visual status and score.
  - StepEvent: one decoded progress record for a single node.
  - Epoch: the run tag attached to every queued event.
  - WorkflowSession: the macro state machine record (idle → finished).
  - Snapshot / SnapshotDiff: the read model handed to renderers and its delta.
  - LifecycleHooks: callbacks for logging and metrics.
*/
package domain
