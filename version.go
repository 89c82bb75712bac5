package essayflow

// Version of the essayflow module. Overridden at link time with
// -ldflags "-X github.com/aretw0/essayflow.Version=...".
var Version = "0.1.0"
