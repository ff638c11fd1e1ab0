/*
 * ut - Segmented input buffer: an ordered chain of fixed-capacity segments
 * that accumulate bytes read from one fd.
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

const (
	// segmentCapacity is 8KiB minus a notional header, matching the
	// fixed-capacity segments spec'd for the input pipeline.
	segmentCapacity = 8*1024 - 64
	// minRead is the minimum free space a tail segment must have before
	// a new segment is appended instead of topping off the old one.
	minRead = 80
)

// segment is one node of a segmentedBuffer's chain. dataStart..freeStart
// is the range of valid, unconsumed bytes; freeStart..cap is free space
// available to the next read.
type segment struct {
	buf       [segmentCapacity]byte
	dataStart int
	freeStart int
	prev      *segment
	next      *segment
}

func (s *segment) len() int  { return s.freeStart - s.dataStart }
func (s *segment) free() int { return segmentCapacity - s.freeStart }

func (s *segment) reset() {
	s.dataStart = 0
	s.freeStart = 0
}

// segmentedBuffer is the ordered chain described by spec.md's
// SegmentedBuffer: reads fill the tail, consumption advances the head,
// an emptied non-tail segment is freed, an emptied sole segment is reset
// in place rather than freed.
type segmentedBuffer struct {
	head *segment
	tail *segment
}

// reserveTail returns the tail segment's free region, appending a fresh
// segment first if the current tail has less than minRead bytes free.
func (b *segmentedBuffer) reserveTail() []byte {
	if b.tail == nil || b.tail.free() < minRead {
		s := &segment{prev: b.tail}
		if b.tail != nil {
			b.tail.next = s
		} else {
			b.head = s
		}
		b.tail = s
	}
	return b.tail.buf[b.tail.freeStart:segmentCapacity]
}

// commit records that n bytes were written into the region reserveTail
// last returned.
func (b *segmentedBuffer) commit(n int) {
	b.tail.freeStart += n
}

// empty reports whether the buffer currently holds no unconsumed bytes.
func (b *segmentedBuffer) empty() bool {
	return b.head == nil || b.head.len() == 0
}

// indexNewline scans from the head for the first '\n', returning the
// number of bytes up to and including it, or -1 if none is buffered yet.
func (b *segmentedBuffer) indexNewline() int {
	n := 0
	for s := b.head; s != nil; s = s.next {
		data := s.buf[s.dataStart:s.freeStart]
		for i, c := range data {
			if c == '\n' {
				return n + i + 1
			}
		}
		n += len(data)
	}
	return -1
}

// totalLen returns the number of unconsumed bytes currently buffered.
func (b *segmentedBuffer) totalLen() int {
	n := 0
	for s := b.head; s != nil; s = s.next {
		n += s.len()
	}
	return n
}

// take copies the first n unconsumed bytes into dst (which must have
// length >= n) without consuming them.
func (b *segmentedBuffer) take(dst []byte) {
	off := 0
	for s := b.head; s != nil && off < len(dst); s = s.next {
		data := s.buf[s.dataStart:s.freeStart]
		c := copy(dst[off:], data)
		off += c
	}
}

// consume advances dataStart by n bytes across the chain, freeing any
// segment that becomes empty unless it is the sole remaining segment, in
// which case it is reset in place for reuse.
func (b *segmentedBuffer) consume(n int) {
	for n > 0 && b.head != nil {
		avail := b.head.len()
		if avail > n {
			b.head.dataStart += n
			return
		}
		n -= avail
		if b.head == b.tail {
			b.head.reset()
			return
		}
		nxt := b.head.next
		nxt.prev = nil
		b.head = nxt
	}
}
