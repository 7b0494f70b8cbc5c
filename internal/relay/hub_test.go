package relay

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOutbox_Push(t *testing.T) {
	o := NewOutbox(4)
	require.NoError(t, o.Push([]byte("hello")))

	data := <-o.Frames()
	assert.Equal(t, []byte("hello"), data)
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox(4)
	o.Close()
	assert.True(t, o.IsClosed())
	assert.True(t, errors.Is(o.Push([]byte("fail")), ErrOutboxClosed))
}

func TestOutbox_PushFull(t *testing.T) {
	o := NewOutbox(1)
	require.NoError(t, o.Push([]byte("first")))
	assert.True(t, errors.Is(o.Push([]byte("overflow")), ErrOutboxFull))
}

func TestOutbox_CloseIdempotentAndKeepsQueued(t *testing.T) {
	o := NewOutbox(2)
	require.NoError(t, o.Push([]byte("queued")))
	o.Close()
	o.Close()

	data, ok := <-o.Frames()
	require.True(t, ok)
	assert.Equal(t, []byte("queued"), data)
	_, ok = <-o.Frames()
	assert.False(t, ok)
}

func TestOutbox_DefaultSize(t *testing.T) {
	o := NewOutbox(0)
	assert.Equal(t, 64, cap(o.frames))
}

func TestHub_RegisterDuplicate(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	require.NoError(t, h.Register("a", NewOutbox(1)))
	err := h.Register("a", NewOutbox(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestHub_SendUnknown(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	assert.False(t, h.Send("ghost", []byte("x")))
}

func TestHub_UnregisterClosesOutbox(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	o := NewOutbox(1)
	require.NoError(t, h.Register("a", o))

	h.Unregister("a")
	h.Unregister("a")
	assert.True(t, o.IsClosed())
	assert.Equal(t, 0, h.Count())
	assert.False(t, h.Send("a", []byte("x")))
}

func TestHub_BroadcastCountsAccepted(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	full := NewOutbox(1)
	require.NoError(t, full.Push([]byte("filler")))
	require.NoError(t, h.Register("a", NewOutbox(4)))
	require.NoError(t, h.Register("b", NewOutbox(4)))
	require.NoError(t, h.Register("c", full))

	sent := h.Broadcast([]string{"a", "b", "c", "ghost"}, []byte("frame"))
	assert.Equal(t, 2, sent)
}

func TestHub_ConcurrentRegisterBroadcast(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	const n = 100

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}

	var wg sync.WaitGroup
	wg.Add(2 * n)
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			_ = h.Register(id, NewOutbox(n))
		}(id)
		go func() {
			defer wg.Done()
			h.Broadcast(ids, []byte("tick"))
		}()
	}
	wg.Wait()
	assert.Equal(t, n, h.Count())

	wg.Add(n)
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			h.Unregister(id)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unjoined", StateUnjoined.String())
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(99).String())
}
