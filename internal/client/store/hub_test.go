package store

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversInOrder(t *testing.T) {
	h := NewHub()
	defer h.Close()

	got := make(chan string, 10)
	h.Subscribe(models.CollectionFAQs, "", func(c Change) { got <- c.Key })

	for _, k := range []string{"a", "b", "c"} {
		h.Publish(Change{Collection: models.CollectionFAQs, Key: k, Op: OpPut})
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case k := <-got:
			assert.Equal(t, want, k)
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestHub_FiltersByCollectionAndKey(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var hits atomic.Int32
	h.Subscribe(models.CollectionPatients, "p1", func(Change) { hits.Add(1) })

	h.Publish(Change{Collection: models.CollectionPatients, Key: "p2", Op: OpPut})
	h.Publish(Change{Collection: models.CollectionGuardians, Key: "p1", Op: OpPut})
	h.Publish(Change{Collection: models.CollectionPatients, Key: "p1", Op: OpPut})
	h.Publish(Change{Collection: models.CollectionPatients, Op: OpClear})

	require.Eventually(t, func() bool { return hits.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var hits atomic.Int32
	unsubscribe := h.Subscribe(models.CollectionFAQs, "", func(Change) { hits.Add(1) })
	require.Equal(t, 1, h.Len())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, h.Len())

	h.Publish(Change{Collection: models.CollectionFAQs, Key: "x", Op: OpPut})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), hits.Load())
}

func TestHub_CloseDropsSubscribers(t *testing.T) {
	h := NewHub()
	h.Subscribe(models.CollectionFAQs, "", func(Change) {})
	h.Subscribe(models.CollectionPatients, "", func(Change) {})

	h.Close()
	assert.Equal(t, 0, h.Len())
}

func TestHub_UnsubscribeAfterClose(t *testing.T) {
	h := NewHub()
	unsubscribe := h.Subscribe(models.CollectionFAQs, "", func(Change) {})

	h.Close()
	assert.NotPanics(t, unsubscribe)
}
