package ocr

import (
	"context"
	"sync/atomic"
	"time"
)

// Monitor observes a recognition pass. The zero value is ready to use.
//
// Cancellation is cooperative: the native recognizer polls the monitor
// between words, and the poll checks the context passed to Recognize. A
// context deadline is also installed as the native deadline so phases that
// do not poll still stop on time.
type Monitor struct {
	// Progress, if non-nil, is called with the percentage complete (0-100)
	// each time the native library reports progress. It runs on the
	// recognizing goroutine and must not call back into the Engine.
	Progress func(percent int)

	progress atomic.Int32
	words    atomic.Int32
}

// Percent returns the last progress value reported by the native library.
func (m *Monitor) Percent() int {
	return int(m.progress.Load())
}

// Words returns the number of words recognized when the monitor was last polled.
func (m *Monitor) Words() int {
	return int(m.words.Load())
}

// monitorState is what the native cancel and progress callbacks see.
type monitorState struct {
	ctx       context.Context
	mon       *Monitor
	cancelled atomic.Bool
}

func newMonitorState(ctx context.Context, mon *Monitor) *monitorState {
	if mon == nil {
		mon = &Monitor{}
	}
	return &monitorState{ctx: ctx, mon: mon}
}

// shouldCancel is polled by the recognizer with the running word count.
func (s *monitorState) shouldCancel(words int) bool {
	s.mon.words.Store(int32(words))
	if s.ctx.Err() != nil {
		s.cancelled.Store(true)
		return true
	}
	return false
}

// stopped reports whether the pass ended because of the context, either
// through a cancel poll or the native deadline firing just ahead of it.
func (s *monitorState) stopped() (bool, error) {
	if err := s.ctx.Err(); err != nil {
		return true, err
	}
	if s.cancelled.Load() {
		return true, context.Canceled
	}
	if d, ok := s.ctx.Deadline(); ok && !time.Now().Before(d) {
		return true, context.DeadlineExceeded
	}
	return false, nil
}

// report records a progress update from the recognizer.
func (s *monitorState) report(percent int) {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	s.mon.progress.Store(int32(percent))
	if s.mon.Progress != nil {
		s.mon.Progress(percent)
	}
}

// deadlineMillis converts the context deadline into the native relative
// deadline. Zero means none.
func (s *monitorState) deadlineMillis() int {
	d, ok := s.ctx.Deadline()
	if !ok {
		return 0
	}
	ms := time.Until(d).Milliseconds()
	if ms < 1 {
		return 1
	}
	if ms > int64(^uint32(0)>>1) {
		return 0
	}
	return int(ms)
}
