package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

func statusPush(addr string, data byte) Message {
	return Message{Destination: addr, Kind: knx.APCIWrite, Payload: []byte{data}, Received: time.Now()}
}

func TestCollectionDeliverAndMessages(t *testing.T) {
	c := NewCollection(context.Background(), "1/1/1", time.Second)
	defer c.Close()

	assert.Equal(t, "1/1/1", c.Address())
	assert.Equal(t, 0, c.Len())

	assert.True(t, c.Deliver(statusPush("1/1/1", 1)))
	assert.True(t, c.Deliver(statusPush("1/1/1", 2)))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{1}, msgs[0].Payload)
	assert.Equal(t, []byte{2}, msgs[1].Payload)

	// Re-readable.
	assert.Len(t, c.Messages(), 2)
}

func TestCollectionClosedRejectsDeliveries(t *testing.T) {
	c := NewCollection(context.Background(), "1/1/1", time.Second)
	c.Close()
	c.Close()

	assert.False(t, c.Deliver(statusPush("1/1/1", 1)))
	assert.Equal(t, 0, c.Len())

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestCollectionTimeout(t *testing.T) {
	c := NewCollection(context.Background(), "1/1/1", 20*time.Millisecond)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("collection did not time out")
	}
}

func TestCollectionContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollection(ctx, "1/1/1", time.Hour)
	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("collection ignored cancellation")
	}
}

func TestCollectionWait(t *testing.T) {
	t.Run("returns on first message", func(t *testing.T) {
		c := NewCollection(context.Background(), "1/1/1", time.Second)
		defer c.Close()

		go func() {
			time.Sleep(10 * time.Millisecond)
			c.Deliver(statusPush("1/1/1", 7))
		}()

		msgs := c.Wait(context.Background())
		require.Len(t, msgs, 1)
		assert.Equal(t, []byte{7}, msgs[0].Payload)
	})

	t.Run("returns empty on timeout", func(t *testing.T) {
		c := NewCollection(context.Background(), "1/1/1", 10*time.Millisecond)
		assert.Empty(t, c.Wait(context.Background()))
	})
}

func TestCollectionCloseHookAfterClose(t *testing.T) {
	c := NewCollection(context.Background(), "1/1/1", time.Second)
	c.Close()

	ran := false
	c.addCloseHook(func() { ran = true })
	assert.True(t, ran)
}

func TestCollectionClosesImmediately(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		for _, c := range []*Collection{
			NewCollection(context.Background(), "1/1/1", 0),
			NewCollection(cancelled, "1/1/1", time.Hour),
		} {
			select {
			case <-c.Done():
			case <-time.After(time.Second):
				t.Fatal("collection did not close")
			}
			assert.False(t, c.Deliver(statusPush("1/1/1", 1)))
			c.Close()
		}
	}
}
