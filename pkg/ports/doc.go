/*
Package ports defines the driven ports (interfaces) of the essayflow engine.

These interfaces decouple the event-sequencing core from its collaborators: the
remote workflow transport, the graph renderer, the modal surfaces, the clock and
the session summary store.

# Key Interfaces

  - Transport: creates backend sessions and opens the NDJSON step event stream.
  - GraphRenderer: paints nodes and edges from a Snapshot.
  - EssaySurface / FeedbackSurface / ResultSurface: user-facing modals.
  - Clock: injectable time source for the presentation delays.
  - SessionStore / DistributedLocker: session summary persistence.
*/
package ports
