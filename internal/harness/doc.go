// Package harness runs scripted round scenarios against the game engine.
//
// A scenario fixes everything the engine would otherwise take from the
// outside world: the registered bands, the random draws, the clock and the
// order in which band events arrive. Running it produces a deterministic
// trace of cues, acknowledgments and state changes.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	bands: [7, 12]
//	draws: [0, 4, 1, 0, 0, 2, 1, 3]
//	steps:
//	  - start: true
//	  - advance: 5s
//	  - tick: true
//	    expect: { state: listening }
//	  - gesture: { band: 7, ts: 100, direction: UP }
//	  - heartbeat: { band: 12, ts: 150 }
//	    expect: { progress: 1 }
//	assertions:
//	  - type: trace_contains
//	    line: "5s ack 7 accept"
//
// Draws are consumed band index first, then direction index (0 DOWN ..
// 4 UP), for each sequence slot, including rejected slots.
//
// # Step Types
//
//   - start: starts a round; a rejected start is traced, not fatal
//   - advance: moves the clock forward
//   - tick: fires due cues and ends the countdown
//   - add / remove: registers or unregisters a band
//   - gesture: a direction change at a device timestamp
//   - heartbeat: a raw sample certifying a device timestamp
//
// Any step may carry an expect clause checked after the step runs.
//
// # Assertion Types
//
//   - trace_contains: a trace line appears
//   - trace_order: trace lines appear in the given order
//   - trace_count: the number of trace events of a type
//
// # Golden Traces
//
// RunWithGolden renders the trace one event per line and compares it with
// testdata/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
