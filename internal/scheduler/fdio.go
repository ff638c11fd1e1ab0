/*
 * ut - FdIo: per-fd scheduler state, and the active ring of FdIos
 * currently being polled.
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
	"time"

	"github.com/bytemine/ut/internal/channel"
	"github.com/bytemine/ut/internal/message"
)

// ReaderFunc is installed on a readable FdIo; it performs one read and
// routes whatever Messages it produces.
type ReaderFunc func(fd int)

// FdIo is the scheduler's per-fd bookkeeping: a read callback, a write
// queue with a partial-write cursor, and stall-detection timestamps.
type FdIo struct {
	FD    int
	Ch    *channel.Channel
	Read  ReaderFunc
	Keep  bool // set for fdios that must outlive an empty queue; the scheduler never removes an FdIo itself (only Unregister does) and does not read this flag

	wqHead, wqTail *message.Message
	writtenOfHead  int
	lastProgress   time.Time

	ring     *Scheduler
	inRing   bool
	prevRing *FdIo
	nextRing *FdIo
}

// HasReader reports whether a read callback is installed.
func (f *FdIo) HasReader() bool { return f.Read != nil }

// QueueEmpty reports whether the write queue holds no messages.
func (f *FdIo) QueueEmpty() bool { return f.wqHead == nil }

// Enqueue appends m to the write queue; a nil m is ignored. Enqueueing
// onto an empty queue restarts the stall clock, so time spent idle is
// not counted as lack of progress.
func (f *FdIo) Enqueue(m *message.Message) {
	if m == nil {
		return
	}
	if f.wqTail == nil {
		f.wqHead, f.wqTail = m, m
		f.lastProgress = time.Now()
		return
	}
	f.wqTail.Next = m
	f.wqTail = m
}

// ringList is the doubly linked circular active ring: every FdIo
// currently registered with the scheduler, visited once per poll-set
// assembly.
type ringList struct {
	any *FdIo // arbitrary member, nil when empty
}

func (r *ringList) insert(f *FdIo) {
	if r.any == nil {
		f.nextRing, f.prevRing = f, f
		r.any = f
		f.inRing = true
		return
	}
	last := r.any.prevRing
	f.nextRing = r.any
	f.prevRing = last
	last.nextRing = f
	r.any.prevRing = f
	f.inRing = true
}

func (r *ringList) remove(f *FdIo) {
	if !f.inRing {
		return
	}
	if f.nextRing == f {
		r.any = nil
	} else {
		f.prevRing.nextRing = f.nextRing
		f.nextRing.prevRing = f.prevRing
		if r.any == f {
			r.any = f.nextRing
		}
	}
	f.inRing = false
	f.nextRing, f.prevRing = nil, nil
}

func (r *ringList) empty() bool { return r.any == nil }

// each calls fn once for every FdIo currently in the ring, in ring
// order, snapshotting membership first so fn may safely remove entries.
func (r *ringList) each(fn func(*FdIo)) {
	if r.any == nil {
		return
	}
	members := []*FdIo{}
	cur := r.any
	for {
		members = append(members, cur)
		cur = cur.nextRing
		if cur == r.any {
			break
		}
	}
	for _, f := range members {
		fn(f)
	}
}
