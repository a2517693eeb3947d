package serialmux

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/banshee-data/aeb/internal/aeb"
)

// FrameHandler receives every well-formed frame, in arrival order.
type FrameHandler func(aeb.Frame) error

// FeedStats counts what a Feed has seen.
type FeedStats struct {
	Lines         uint64 `json:"lines"`
	Frames        uint64 `json:"frames"`
	Rejected      uint64 `json:"rejected"`
	Status        uint64 `json:"status"`
	Unknown       uint64 `json:"unknown"`
	HandlerErrors uint64 `json:"handler_errors"`
	SeqGaps       uint64 `json:"seq_gaps"`
	LastSeq       uint64 `json:"last_seq"`
}

// Feed turns the perception unit's line stream into frames. Malformed
// frames are counted and dropped; they never reach the handler.
type Feed struct {
	mux    SerialMuxInterface
	handle FrameHandler

	mu     sync.Mutex
	stats  FeedStats
	status map[string]any
	seen   bool
}

// NewFeed returns a Feed reading from mux.
func NewFeed(mux SerialMuxInterface, handle FrameHandler) *Feed {
	return &Feed{mux: mux, handle: handle, status: make(map[string]any)}
}

// Run subscribes to the mux and processes lines until ctx is done or the
// mux closes the subscription.
func (f *Feed) Run(ctx context.Context) error {
	id, lines := f.mux.Subscribe()
	defer f.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := f.HandleLine(line); err != nil {
				opsf("feed: %v", err)
			}
		}
	}
}

// HandleLine processes one line. The returned error is informational: the
// line has already been counted and the feed keeps going.
func (f *Feed) HandleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	f.mu.Lock()
	f.stats.Lines++
	f.mu.Unlock()

	switch ClassifyLine(line) {
	case LineFrame:
		return f.handleFrame(line)
	case LineStatus:
		return f.handleStatus(line)
	default:
		f.mu.Lock()
		f.stats.Unknown++
		f.mu.Unlock()
		tracef("unrecognised line: %q", line)
		return nil
	}
}

func (f *Feed) handleFrame(line string) error {
	frame, err := aeb.ParseFrame([]byte(line))
	if err != nil {
		f.mu.Lock()
		f.stats.Rejected++
		f.mu.Unlock()
		return fmt.Errorf("rejected frame: %w", err)
	}

	f.mu.Lock()
	f.stats.Frames++
	if f.seen && frame.Seq > f.stats.LastSeq+1 {
		f.stats.SeqGaps++
		diagf("frame gap: seq %d after %d", frame.Seq, f.stats.LastSeq)
	}
	f.stats.LastSeq = frame.Seq
	f.seen = true
	f.mu.Unlock()

	if f.handle == nil {
		return nil
	}
	if err := f.handle(frame); err != nil {
		f.mu.Lock()
		f.stats.HandlerErrors++
		f.mu.Unlock()
		return fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	return nil
}

func (f *Feed) handleStatus(line string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(line), &values); err != nil {
		return fmt.Errorf("failed to unmarshal status: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Status++
	for k, v := range values {
		f.status[k] = v
	}
	diagf("status: %s", line)
	return nil
}

// Stats returns a snapshot of the counters.
func (f *Feed) Stats() FeedStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Status returns the merged status values reported by the unit.
func (f *Feed) Status() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.status))
	for k, v := range f.status {
		out[k] = v
	}
	return out
}
