package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeon/reflow/internal/reflow"
)

func TestRunManager_AppendAndReplay(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	rm.Register("run-1")
	rm.Append("run-1", EventRecord{Type: "started"})
	rm.Append("run-1", EventRecord{Type: "block_started", BlockID: "g"})

	events, _, done, _, found := rm.Subscribe("run-1", 0)
	require.True(t, found)
	assert.False(t, done)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Seq)
	assert.Equal(t, 1, events[1].Seq)
	assert.Equal(t, "block_started", events[1].Type)
}

func TestRunManager_ResumeFromSeq(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	rm.Register("run-1")
	for i := 0; i < 5; i++ {
		rm.Append("run-1", EventRecord{Type: "block_completed"})
	}

	events, _, _, _, found := rm.Subscribe("run-1", 3)
	require.True(t, found)
	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].Seq)
}

func TestRunManager_NotifyOnNewEvent(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	rm.Register("run-1")
	_, notify, _, _, found := rm.Subscribe("run-1", 0)
	require.True(t, found)

	go rm.Append("run-1", EventRecord{Type: "started"})

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("notify channel never closed")
	}

	events, _, _, _, _ := rm.Subscribe("run-1", 0)
	require.Len(t, events, 1)
}

func TestRunManager_CompleteWakesSubscribers(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	rm.Register("run-1")
	_, notify, _, _, _ := rm.Subscribe("run-1", 0)

	go rm.Complete("run-1", map[string]any{"final_state": "completed"})

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("notify channel never closed on completion")
	}

	_, _, done, payload, _ := rm.Subscribe("run-1", 0)
	assert.True(t, done)
	assert.Equal(t, "completed", payload["final_state"])
}

func TestRunManager_UnknownRun(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	_, _, _, _, found := rm.Subscribe("run-ghost", 0)
	assert.False(t, found)

	// Appends to unregistered runs are dropped silently.
	rm.Append("run-ghost", EventRecord{Type: "started"})
}

func TestRunManager_ConsumeFiltersByExecutionID(t *testing.T) {
	rm := NewRunManager(time.Minute)
	defer rm.Stop()

	rm.Register("run-1")
	rm.Consume(reflow.Event{ExecutionID: "run-1", Type: reflow.EventStarted})
	rm.Consume(reflow.Event{ExecutionID: "run-other", Type: reflow.EventStarted})
	rm.Consume(reflow.Event{ExecutionID: "run-1", Type: reflow.EventCompleted,
		Payload: map[string]any{"final_state": "completed"}})

	events, _, done, payload, found := rm.Subscribe("run-1", 0)
	require.True(t, found)
	assert.Len(t, events, 2, "events for other runs must not leak in")
	assert.True(t, done, "terminal event must mark the run done")
	assert.Equal(t, "completed", payload["final_state"])
}

func TestRunManager_GCDropsExpired(t *testing.T) {
	rm := NewRunManager(10 * time.Millisecond)
	defer rm.Stop()

	rm.Register("run-1")
	rm.Complete("run-1", nil)
	rm.Register("run-2") // still live, must survive

	time.Sleep(20 * time.Millisecond)
	rm.collectExpired()

	_, _, _, _, found := rm.Subscribe("run-1", 0)
	assert.False(t, found, "expired run should be collected")
	_, _, _, _, found = rm.Subscribe("run-2", 0)
	assert.True(t, found, "live run must survive GC")
}
