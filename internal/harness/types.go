package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/OmniChip/bandgame/internal/band"
)

// Trace event types.
const (
	TraceStart    = "start"
	TraceSequence = "sequence"
	TraceRejected = "rejected"
	TraceCue      = "cue"
	TraceAck      = "ack"
	TraceState    = "state"
	TraceFinished = "finished"
)

// TraceEvent is one observable engine output.
type TraceEvent struct {
	// At is the scenario clock offset from the start of the run.
	At     time.Duration `json:"at"`
	Type   string        `json:"type"`
	Band   band.ID       `json:"band,omitempty"`
	Detail string        `json:"detail"`
}

// String renders the event as a single trace line.
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.At, e.Type)
	if e.Band != 0 {
		fmt.Fprintf(&b, " %d", e.Band)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " %s", e.Detail)
	}
	return b.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every engine output in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(at time.Duration, typ string, id band.ID, detail string) {
	r.Trace = append(r.Trace, TraceEvent{At: at, Type: typ, Band: id, Detail: detail})
}

// Lines renders the trace one event per line.
func (r *Result) Lines() []string {
	lines := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		lines[i] = e.String()
	}
	return lines
}
