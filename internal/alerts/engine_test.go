package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/pizzaplanner/pkg/messaging"
)

// newWatchedEngine builds an Engine with one in-memory watch, bypassing the
// DB-backed loadWatches/CreateWatch path so the watch-trigger logic can be
// exercised without a database.
func newWatchedEngine(t *testing.T, w *Watch) *Engine {
	t.Helper()
	e := NewEngine(nil, &messaging.Client{})
	e.watches[w.OrderID] = []*Watch{w}
	return e
}

func TestOnDelayReadingTriggersAboveCondition(t *testing.T) {
	w := &Watch{ID: "w1", OrderID: "ord-1", Condition: "above", DelayMin: 60}
	e := newWatchedEngine(t, w)
	go e.processDelays(context.Background())

	e.delayChannel <- DelayUpdate{OrderID: "ord-1", DelayMin: 75}
	waitForTrigger(t, w)

	assert.True(t, w.Triggered)
}

func TestOnDelayReadingDoesNotTriggerBelowThreshold(t *testing.T) {
	w := &Watch{ID: "w1", OrderID: "ord-1", Condition: "above", DelayMin: 60}
	e := newWatchedEngine(t, w)
	go e.processDelays(context.Background())

	e.delayChannel <- DelayUpdate{OrderID: "ord-1", DelayMin: 30}
	time.Sleep(20 * time.Millisecond)
	e.Stop()

	assert.False(t, w.Triggered)
}

func TestOnDelayReadingParsesJSONPayload(t *testing.T) {
	w := &Watch{ID: "w1", OrderID: "ord-2", Condition: "above", DelayMin: 10}
	e := newWatchedEngine(t, w)
	go e.processDelays(context.Background())

	e.OnDelayReading("order.delay.ord-2", []byte(`{"order_id":"ord-2","delay_min":20}`))
	waitForTrigger(t, w)

	assert.True(t, w.Triggered)
}

func waitForTrigger(t *testing.T, w *Watch) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			require.Fail(t, "watch never triggered")
			return
		default:
			if w.Triggered {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}
