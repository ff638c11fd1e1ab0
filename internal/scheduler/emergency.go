/*
 * ut - Emergency writer: a synchronous, bounded-deadline writer on fd 1
 * for fatal diagnostics issued before the scheduler is ready or while it
 * is in the process of crashing.
 *
 * Copyright 2026, bytemine GmbH
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package scheduler

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	emergencyBufSize       = 1024
	defaultEmergencyTimeout = 30 * time.Second
)

// Emergencyf formats a diagnostic line and writes it to fd 1, retrying
// through EAGAIN until timeout (0 selects the 30s default) elapses. If
// fd 1's write queue has a partially written head message, it first
// injects an "output interrupted" marker and resets the cursor so the
// eventual resumed write does not splice mid-frame.
func (s *Scheduler) Emergencyf(timeout time.Duration, format string, args ...any) {
	if timeout <= 0 {
		timeout = defaultEmergencyTimeout
	}

	if f := s.Get(1); f != nil && !f.QueueEmpty() && f.writtenOfHead > 0 {
		marker := "\n!MSG! output interrupted\n"
		s.rawWrite([]byte(marker), timeout)
		f.writtenOfHead = 0
	}

	line := fmt.Sprintf(format, args...)
	buf := []byte(line)
	if len(buf) > emergencyBufSize {
		buf = buf[:emergencyBufSize]
	}
	s.rawWrite(buf, timeout)
}

// rawWrite blocking-retries a write(2) of buf to fd 1 until it is fully
// written or timeout elapses, aborting the process on a non-retryable
// error or on exhausting the deadline.
func (s *Scheduler) rawWrite(buf []byte, timeout time.Duration) {
	deadline := s.Now().Add(timeout)
	for len(buf) > 0 {
		n, err := unix.Write(1, buf)
		if n > 0 {
			buf = buf[n:]
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if s.Now().After(deadline) {
				slog.Error("emergency writer: deadline exceeded")
				os.Exit(1)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		slog.Error("emergency writer: write failed", "error", err)
		os.Exit(1)
	}
}
