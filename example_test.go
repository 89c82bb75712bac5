package essayflow_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/pkg/domain"
)

// ExampleNew runs one evaluation against the built-in simulator and reads
// the projected graph once it settles.
func ExampleNew() {
	eng, err := essayflow.New("",
		essayflow.WithSimulator(),
		essayflow.WithPacing(essayflow.Pacing{}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	if err := eng.SubmitEssay(ctx, "bad bad bad."); err != nil {
		log.Fatal(err)
	}
	if err := eng.WaitIdle(ctx); err != nil {
		log.Fatal(err)
	}

	snap := eng.Snapshot()
	for _, id := range []domain.NodeID{domain.NodeEvalClarity, domain.NodeEvalDepth, domain.NodeEvalVocab, domain.NodeAggregateScore} {
		n, _ := snap.Node(id)
		fmt.Printf("%s: %v\n", n.Label, *n.Score)
	}
	first, _, _ := strings.Cut(eng.Session().FeedbackText, "\n")
	fmt.Println(first)

	// Output:
	// Clarity Check: 2
	// Depth Check: 1
	// Vocab Check: 1
	// Aggregate Score: 4
	// Score: 4/15
}
