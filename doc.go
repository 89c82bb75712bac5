/*
Package essayflow visualizes a remote essay evaluation workflow as a live
graph.

The backend streams one JSON record per finished workflow step. The engine
reassembles records from arbitrary network chunks, decodes them, and plays
them back one at a time onto a static graph: each node turns active, holds
for a moment so the step is perceivable, then completes with its score.
Passing essays finish the session; failing ones produce feedback and loop
back to essay collection.

# Usage

	eng, err := essayflow.New("http://localhost:8000",
		essayflow.WithHost(myUI),
		essayflow.WithStore(memory.NewStore()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	// myUI.ShowEssayInput is called with the topic; its submit callback
	// starts the evaluation.

# Packages

  - pkg/stream: line framing and record decoding.
  - pkg/projector: the sequencing queue and graph state.
  - pkg/session: the session state machine and snapshot persistence.
  - pkg/adapters: HTTP backend client, simulator, stores, HTTP and MCP servers.
*/
package essayflow
