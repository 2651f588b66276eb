// Package streaming delivers ordered progress events for one analysis
// run to exactly one consumer over a bounded in-process queue.
package streaming

// Node identifies which part of the pipeline an event reports on.
type Node string

const (
	NodeInvestigator Node = "investigator"
	NodeForensic     Node = "forensic"
	NodeSynthesizer  Node = "synthesizer"
	NodeComplete     Node = "complete"
	NodeError        Node = "error"
)

// Event is a single self-contained progress update. Stage events carry
// the fields that became available when the stage finished; the terminal
// event carries either the full result or an error message.
type Event struct {
	Node    Node   `json:"node"`
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the run.
func (e Event) Terminal() bool {
	return e.Node == NodeComplete || e.Node == NodeError
}

// StageDone builds the single event emitted when a stage completes.
func StageDone(node Node, data any) Event {
	return Event{Node: node, Status: "done", Data: data}
}

// Completed builds the successful terminal event carrying the full result.
func Completed(data any) Event {
	return Event{Node: NodeComplete, Status: "done", Data: data}
}

// Failed builds the error terminal event.
func Failed(message string) Event {
	return Event{Node: NodeError, Status: "error", Message: message}
}
