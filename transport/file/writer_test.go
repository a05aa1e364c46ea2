package file

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	sink := New(Config{Writer: &buf}, nil)

	require.NoError(t, sink.Send("hello"))
	require.NoError(t, sink.Send(42))

	assert.Equal(t, "hello\n42\n", buf.String())
}

func TestSendCustomNewline(t *testing.T) {
	var buf bytes.Buffer
	sink := New(Config{Writer: &buf, Newline: "\r\n"}, nil)

	require.NoError(t, sink.Send("line"))
	assert.Equal(t, "line\r\n", buf.String())
}

func TestSendFlushesPerPacket(t *testing.T) {
	var buf bytes.Buffer
	sink := New(Config{Writer: &buf}, nil)

	require.NoError(t, sink.Send("first"))
	// Visible immediately, not only after Close.
	assert.Equal(t, "first\n", buf.String())
}

func TestConcurrentSendsStayWhole(t *testing.T) {
	var buf syncBuffer
	sink := New(Config{Writer: &buf}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, sink.Send("0123456789"))
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 400)
	for _, line := range lines {
		assert.Equal(t, "0123456789", line)
	}
}

func TestSendWriteError(t *testing.T) {
	sink := New(Config{Writer: failingWriter{}}, nil)
	assert.Error(t, sink.Send("doomed"))
}

func TestCloseFlushes(t *testing.T) {
	var buf bytes.Buffer
	sink := New(Config{Writer: &buf}, nil)
	require.NoError(t, sink.Send("x"))
	assert.NoError(t, sink.Close())
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk on fire")
}
