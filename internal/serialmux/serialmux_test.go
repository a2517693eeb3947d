package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvLine(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	assert.Len(t, id, 16)

	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// unknown IDs are ignored
	mux.Unsubscribe("nope")
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("RATE 10"))
	require.NoError(t, mux.SendCommand("STREAM ON\n"))
	assert.Equal(t, "RATE 10\nSTREAM ON\n", port.WrittenData())

	port.WriteError = errors.New("unplugged")
	assert.EqualError(t, mux.SendCommand("X"), "unplugged")
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	at := time.Unix(1767225600, 0)
	require.NoError(t, mux.Initialize(FeedOptions{RateHz: 20, Now: func() time.Time { return at }}))

	lines := strings.Split(strings.TrimSpace(port.WrittenData()), "\n")
	assert.Equal(t, []string{
		"CLOCK 1767225600",
		"FORMAT JSON",
		"UNITS SI",
		"FRAME EGO",
		"RATE 20",
		"STREAM ON",
	}, lines)
}

func TestInitialize_WriteFailure(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	port.WriteError = errors.New("unplugged")
	err := NewSerialMux(port).Initialize(FeedOptions{})
	assert.ErrorContains(t, err, "CLOCK")
}

func TestMonitor_FansOutLines(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	defer mux.Close()

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("{\"seq\":1,\"objects\":[]}\n{\"status\":\"ok\"}\n"))
	assert.Equal(t, `{"seq":1,"objects":[]}`, recvLine(t, a))
	assert.Equal(t, `{"status":"ok"}`, recvLine(t, a))
	assert.Equal(t, `{"seq":1,"objects":[]}`, recvLine(t, b))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMonitor_PortClosedEndsMonitor(t *testing.T) {
	t.Parallel()

	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	port.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPortClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after port close")
	}
}

func TestClose_ClosesSubscribers(t *testing.T) {
	t.Parallel()

	mux := NewSerialMux(NewTestableSerialPort())
	_, ch := mux.Subscribe()
	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok)
}

func TestReplaySerialMux(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := NewReplaySerialMux(ctx, []string{`{"seq":1,"objects":[]}`, `{"seq":2,"objects":[]}`}, 5*time.Millisecond)
	_, ch := mux.Subscribe()
	go func() { _ = mux.Monitor(ctx) }()

	assert.Equal(t, `{"seq":1,"objects":[]}`, recvLine(t, ch))
	assert.Equal(t, `{"seq":2,"objects":[]}`, recvLine(t, ch))
	assert.Equal(t, `{"seq":1,"objects":[]}`, recvLine(t, ch), "replay loops")
}
