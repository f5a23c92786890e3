// Package game implements the sequence-matching round engine.
//
// A round shows the players a random sequence of (band, direction) steps
// through haptic cues, then judges the direction changes the bands report
// against it.
//
// ROUND STATES:
//
//	Idle -> Countdown -> Listening -> Finished -> (Start) -> Countdown ...
//
// Start generates the sequence and schedules one cue per step. Tick fires
// due cues and switches to Listening when the countdown elapses. While
// Listening, direction changes are judged in timestamp order.
//
// CROSS-BAND ORDERING:
//
// Bands are independent streams with their own clocks and transport
// jitter, multiplexed into one queue. Direction changes go into a backlog
// keyed by device timestamp. Each band also advances a watermark: the
// latest timestamp it has certified. A backlog bucket is judged only once
// every registered band's watermark has reached its timestamp, so outcomes
// do not depend on which band's events happened to be drained first.
//
// The cost is liveness: a registered band that stops heartbeating stalls
// judging. Removing the band drops it from the watermark set.
//
// THREADING:
//
// Engine is not safe for concurrent use. It is owned by the frame-tick
// consumer, which feeds it drained events and calls Tick once per frame.
package game
