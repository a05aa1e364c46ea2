package channel

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Channel
// ─────────────────────────────────────────────────────────────────────────────

func TestSendRecvPreservesOrder(t *testing.T) {
	prod, cons := New(8)

	for i := 0; i < 8; i++ {
		require.NoError(t, prod.Send(i))
	}
	prod.Close()

	for i := 0; i < 8; i++ {
		data, err := cons.Recv()
		require.NoError(t, err)
		assert.Equal(t, i, data)
	}
	_, err := cons.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEOFIsSticky(t *testing.T) {
	prod, cons := New(1)
	prod.Close()

	for i := 0; i < 3; i++ {
		_, err := cons.Recv()
		assert.ErrorIs(t, err, io.EOF)
	}
}

func TestEOFOnlyAfterDrain(t *testing.T) {
	prod, cons := New(4)
	require.NoError(t, prod.Send("last words"))
	prod.Close()

	data, err := cons.Recv()
	require.NoError(t, err)
	assert.Equal(t, "last words", data)

	_, err = cons.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPoll(t *testing.T) {
	prod, cons := New(4)

	_, err := cons.Poll()
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, prod.Send(42))
	data, err := cons.Poll()
	require.NoError(t, err)
	assert.Equal(t, 42, data)

	prod.Close()
	_, err = cons.Poll()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSendBlocksUntilRecv(t *testing.T) {
	prod, cons := New(1)
	require.NoError(t, prod.Send(1)) // fills the buffer

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, prod.Send(2)) // blocks until the consumer drains
		prod.Close()
	}()

	data, err := cons.Recv()
	require.NoError(t, err)
	assert.Equal(t, 1, data)
	data, err = cons.Recv()
	require.NoError(t, err)
	assert.Equal(t, 2, data)
	wg.Wait()
}

func TestConsumerCloseBreaksProducer(t *testing.T) {
	prod, cons := New(1)
	require.NoError(t, prod.Send("buffered"))
	cons.Close()

	// Buffered data is discarded, not delivered.
	_, err := cons.Recv()
	assert.ErrorIs(t, err, io.EOF)

	// Further sends report the broken pipe.
	assert.ErrorIs(t, prod.Send("dropped"), ErrBrokenPipe)
}

func TestConsumerCloseReleasesBlockedProducer(t *testing.T) {
	prod, cons := New(1)
	require.NoError(t, prod.Send(1))

	errCh := make(chan error, 1)
	go func() {
		errCh <- prod.Send(2) // blocked: buffer full
	}()
	cons.Close()
	assert.ErrorIs(t, <-errCh, ErrBrokenPipe)
}

func TestSendAfterOwnClose(t *testing.T) {
	prod, _ := New(1)
	prod.Close()
	assert.ErrorIs(t, prod.Send(1), ErrClosedEnd)
}

func TestCloseIsIdempotent(t *testing.T) {
	prod, cons := New(1)
	prod.Close()
	prod.Close()
	cons.Close()
	cons.Close()
	assert.True(t, prod.Closed())
	assert.True(t, cons.Closed())
}

// ─────────────────────────────────────────────────────────────────────────────
// Leak registry
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistryTracksOpenEnds(t *testing.T) {
	reg := NewRegistry()
	prod, cons := New(1)
	reg.Register(prod, "p1", "out", false, "root")
	reg.Register(cons, "p2", "in", true, "root")

	assert.Equal(t, 2, reg.Len())
	assert.Len(t, reg.Open(), 2)

	prod.Close()
	open := reg.Open()
	require.Len(t, open, 1)
	assert.Equal(t, "p2", open[0].Process)
	assert.True(t, open[0].Inport)

	cons.Close()
	assert.Empty(t, reg.Open())
}

func TestRegistryCloseOpen(t *testing.T) {
	reg := NewRegistry()
	prod, cons := New(1)
	reg.Register(prod, "p1", "out", false, "root")
	reg.Register(cons, "p2", "in", true, "root")
	prod.Close()

	assert.Equal(t, 1, reg.CloseOpen())
	assert.Empty(t, reg.Open())
	assert.True(t, cons.Closed())
}
