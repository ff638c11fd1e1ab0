/*
 * ut - Fatal-on-failure helpers for conditions the core treats as
 * assertion-grade (spec.md "Fatal at runtime": allocator failure, illegal
 * internal state).
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

package must

import (
	"fmt"
	"log/slog"
	"os"
)

// Alloc allocates a byte slice of n bytes, aborting the process if the
// runtime cannot satisfy it. Go's allocator panics on OOM rather than
// returning nil, so this exists to give that panic a uniform, loggable
// shutdown path instead of an unhandled crash.
func Alloc(n int) (buf []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("allocation failed", "size", n, "panic", r)
			os.Exit(1)
		}
	}()
	return make([]byte, n)
}

// NoError aborts the process if err is non-nil. Used for conditions the
// core treats as assertion-grade: invariants that, if violated, mean the
// scheduler's internal state is no longer trustworthy.
func NoError(err error, context string) {
	if err != nil {
		slog.Error(context, "error", err)
		os.Exit(1)
	}
}

// Assert aborts the process with a formatted message if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		slog.Error(fmt.Sprintf(format, args...))
		os.Exit(1)
	}
}
