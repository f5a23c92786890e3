package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{At: 0, Type: TraceStart, Detail: "length=3 draws=6"},
		{At: 0, Type: TraceCue, Band: 4, Detail: "UP"},
		{At: 2 * time.Second, Type: TraceState, Detail: "listening"},
		{At: 2 * time.Second, Type: TraceAck, Band: 4, Detail: "accept"},
		{At: 3 * time.Second, Type: TraceAck, Band: 4, Detail: "reject"},
	}
}

func TestTraceEvent_String(t *testing.T) {
	trace := sampleTrace()
	assert.Equal(t, "0s start length=3 draws=6", trace[0].String())
	assert.Equal(t, "0s cue 4 UP", trace[1].String())
	assert.Equal(t, "2s state listening", trace[2].String())
	assert.Equal(t, "1.5s state", TraceEvent{At: 1500 * time.Millisecond, Type: TraceState}.String())
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Line: "2s ack 4 accept"})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, Line: "2s ack 5 accept"})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_contains", assertErr.Type)
	assert.Contains(t, assertErr.Expected, "2s ack 5 accept")
	assert.Equal(t, "not found in trace", assertErr.Actual)
	assert.Contains(t, assertErr.Error(), "[4] 2s ack 4 accept")
}

func TestAssertTraceOrder(t *testing.T) {
	t.Run("in order with gaps", func(t *testing.T) {
		err := assertTraceOrder(sampleTrace(), Assertion{
			Type:  AssertTraceOrder,
			Lines: []string{"0s cue 4 UP", "3s ack 4 reject"},
		})
		assert.NoError(t, err)
	})

	t.Run("out of order", func(t *testing.T) {
		err := assertTraceOrder(sampleTrace(), Assertion{
			Type:  AssertTraceOrder,
			Lines: []string{"3s ack 4 reject", "0s cue 4 UP"},
		})
		require.Error(t, err)
		assertErr, ok := err.(*AssertionError)
		require.True(t, ok)
		assert.Contains(t, assertErr.Actual, `"0s cue 4 UP" not found after 1 matched`)
	})
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Event: TraceAck, Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Event: TraceFinished, Count: 0}))

	err := assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Event: TraceCue, Count: 3})
	require.Error(t, err)
	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "3 cue events", assertErr.Expected)
	assert.Equal(t, "1 cue events", assertErr.Actual)
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Line: "0s cue 4 UP"},
		{Type: AssertTraceCount, Event: TraceAck, Count: 1},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: trace_count")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestTraceTypes(t *testing.T) {
	assert.Equal(t, []string{"ack", "cue", "start", "state"}, TraceTypes(sampleTrace()))
	assert.Empty(t, TraceTypes(nil))
}
