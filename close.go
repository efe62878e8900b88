package memgo

import (
	"context"
	"strings"
)

// Close tears down the stack. When leak checking is enabled it first runs a
// leak report: live allocations produce a LeakError (matching
// ErrLeaksDetected) carrying the rendered report. Arena-backed stacks then
// unmap their chunks, which invalidates every outstanding buffer.
//
// Close is idempotent; subsequent calls return nil.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}

	if s.closed.Swap(true) {
		return nil
	}

	ctx := context.Background()

	var firstErr error

	if s.leaks != nil {
		var report strings.Builder
		if s.leaks.ReportLeaks(&report) {
			count := s.leaks.LiveAllocs()
			bytes := s.leaks.LiveBytes()

			s.metrics.RecordLeakReport(count, bytes)
			s.logger.LogLeaks(ctx, count, bytes)

			firstErr = &LeakError{
				Count:  count,
				Bytes:  bytes,
				Report: report.String(),
			}
		} else {
			s.metrics.RecordLeakReport(0, 0)
			s.logger.LogLeaks(ctx, 0, 0)
		}
	}

	if s.arena != nil {
		if err := s.arena.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.LogClose(ctx, firstErr)

	return firstErr
}
