/*
 * ut - Buffer: line framer over a segmentedBuffer, with wait-mode
 * (one Message per complete line) and immediate-mode (one Message per
 * read) emission policies.
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

package iobuf

import (
	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/internal/message"
)

// Result is the outcome of one ReadInto call.
type Result int

const (
	ReadOK Result = iota
	ReadError
	ReadEOF
)

// EmitFunc receives each Message a Buffer produces, in order.
type EmitFunc func(*message.Message)

// Buffer is the per-fd line framer described by spec.md §4.1. WaitForNewline
// selects wait mode (used for the shared input stream); false selects
// immediate mode (used for channel-side fds). Plain controls whether the
// first PrefixLen bytes of each emitted line are treated as payload (true)
// or split off into the Message's prefix slot for later validation (false).
type Buffer struct {
	seg            segmentedBuffer
	WaitForNewline bool
	Plain          bool
	Emit           EmitFunc
}

// New constructs a Buffer with the given emission policy.
func New(waitForNewline, plain bool, emit EmitFunc) *Buffer {
	return &Buffer{WaitForNewline: waitForNewline, Plain: plain, Emit: emit}
}

// ReadInto performs one non-blocking read from fd into the tail segment's
// remaining capacity, then applies the configured emission policy.
func (b *Buffer) ReadInto(fd int) Result {
	dst := b.seg.reserveTail()
	n, err := unix.Read(fd, dst)
	if err != nil {
		return ReadError
	}
	if n == 0 {
		return ReadEOF
	}
	b.seg.commit(n)

	if b.WaitForNewline {
		b.emitLines()
	} else {
		b.emitImmediate()
	}
	return ReadOK
}

// emitLines extracts and emits every complete line currently buffered,
// leaving any trailing partial line for a future read to complete.
func (b *Buffer) emitLines() {
	for {
		n := b.seg.indexNewline()
		if n < 0 {
			return
		}
		b.Emit(b.extractLine(n))
	}
}

// emitImmediate drains the buffer completely: every complete line is
// emitted as in wait mode, then any remaining partial tail is emitted as
// a single NoNL message with an artificial newline appended.
func (b *Buffer) emitImmediate() {
	for {
		n := b.seg.indexNewline()
		if n < 0 {
			break
		}
		b.Emit(b.extractLine(n))
	}
	if b.seg.empty() {
		return
	}
	n := b.seg.totalLen()
	m := message.New(b.Plain, n-prefixIfSplit(b.Plain), true)
	line := make([]byte, n)
	b.seg.take(line)
	b.seg.consume(n)
	b.fillMessage(m, line, true)
	b.Emit(m)
}

// extractLine consumes the first n buffered bytes (a complete line,
// newline included) and builds the Message for it.
func (b *Buffer) extractLine(n int) *message.Message {
	line := make([]byte, n)
	b.seg.take(line)
	b.seg.consume(n)
	m := message.New(b.Plain, n-prefixIfSplit(b.Plain), false)
	b.fillMessage(m, line, false)
	return m
}

// prefixIfSplit returns PrefixLen when the first PrefixLen bytes of a
// line are split off into the Message's prefix slot (Plain == false),
// else 0.
func prefixIfSplit(plain bool) int {
	if plain {
		return 0
	}
	return message.PrefixLen
}

// fillMessage copies line's bytes into m's Buf, splitting off a prefix
// when !Plain, and setting NoNL plus appending the artificial newline
// when appendNL is set (the immediate-mode trailing-partial case).
func (b *Buffer) fillMessage(m *message.Message, line []byte, appendNL bool) {
	if b.Plain {
		copy(m.Buf[message.PrefixLen:], line)
	} else {
		copy(m.Buf[0:], line)
	}
	if appendNL {
		m.Flags |= message.NoNL
		m.Buf[len(m.Buf)-1] = '\n'
	}
	m.Length = len(m.Buf)
}
