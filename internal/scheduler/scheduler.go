/*
 * ut - Scheduler: the single cooperative poll loop that drives every
 * channel's I/O and the timed-event queue.
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

// Package scheduler runs the single-threaded, readiness-based poll loop:
// one owner struct mediating every fd's readiness, a write queue per fd
// with a partial-write cursor, stall detection, and a relative-delta
// timed-event queue for the reaper and the keepalive line.
package scheduler

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/internal/channel"
)

// guardTimeout bounds the poll wait when neither a stall deadline nor a
// timed event constrains it.
const guardTimeout = time.Second

// UpdateFunc is invoked while dispatching one fd's poll(2) result: for an
// open/connect-in-progress channel that became ready, and for a channel
// whose error/EOF flags need channel_update handling. revents carries
// the poll(2) result bits that triggered the call; only meaningful while
// ch is open/connect-in-progress.
type UpdateFunc func(ch *channel.Channel, fdio *FdIo, revents int16)

// Scheduler owns the active ring, the fd table, and the timed-event
// queue, and runs the cooperative poll loop described by the scheduler
// component design.
type Scheduler struct {
	Events EventQueue

	fdios map[int]*FdIo
	ring  ringList

	// Update is called when an in-progress channel becomes ready or a
	// channel's error/EOF flags need handling.
	Update UpdateFunc
	// Cmdi is invoked exactly once per loop iteration, after readiness
	// dispatch, draining notifications then queued command lines.
	Cmdi func()
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// New builds an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		fdios: make(map[int]*FdIo),
		Now:   time.Now,
	}
}

// Register installs fd with the scheduler, creating its FdIo and adding
// it to the active ring.
func (s *Scheduler) Register(fd int, ch *channel.Channel) *FdIo {
	f := &FdIo{FD: fd, Ch: ch, lastProgress: s.Now()}
	s.fdios[fd] = f
	s.ring.insert(f)
	return f
}

// Get returns the FdIo for fd, or nil if none is registered.
func (s *Scheduler) Get(fd int) *FdIo {
	return s.fdios[fd]
}

// Unregister removes fd's FdIo from the ring and the table. It does not
// close the fd.
func (s *Scheduler) Unregister(fd int) {
	f, ok := s.fdios[fd]
	if !ok {
		return
	}
	s.ring.remove(f)
	delete(s.fdios, fd)
}

// pollEntry pairs a poll(2) request with the FdIo it was built from.
type pollEntry struct {
	fdio *FdIo
	pfd  unix.PollFd
}

// Run executes the scheduler loop until the active ring is empty.
func (s *Scheduler) Run() {
	for !s.ring.empty() {
		s.iterate()
	}
}

func (s *Scheduler) iterate() {
	entries, stallTimeout := s.buildPollSet()

	eventTimeout, hasEvent := s.Events.NextDeadline()
	timeout := stallTimeout
	if hasEvent && (timeout < 0 || eventTimeout < timeout) {
		timeout = eventTimeout
	}
	if timeout < 0 {
		timeout = guardTimeout
	}

	pfds := make([]unix.PollFd, len(entries))
	for i, e := range entries {
		pfds[i] = e.pfd
	}

	before := s.Now()
	_, err := unix.Poll(pfds, int(timeout/time.Millisecond))
	if err != nil {
		s.Emergencyf(guardTimeout, "poll(): %s\n", err)
		time.Sleep(time.Second)
		return
	}

	elapsed := s.Now().Sub(before)
	s.Events.Advance(elapsed)

	for i, e := range entries {
		s.dispatchOne(e.fdio, pfds[i])
	}

	if s.Cmdi != nil {
		s.Cmdi()
	}
}

// buildPollSet walks the active ring, building one poll(2) request per
// FdIo and folding stall-detection slack into the returned timeout
// (-1 meaning unconstrained).
func (s *Scheduler) buildPollSet() ([]pollEntry, time.Duration) {
	entries := make([]pollEntry, 0)
	stallTimeout := time.Duration(-1)
	now := s.Now()

	s.ring.each(func(f *FdIo) {
		var events int16
		if f.Ch != nil && f.Ch.Flags&channel.IP != 0 {
			events = unix.POLLIN | unix.POLLOUT
		} else {
			if f.HasReader() {
				events |= unix.POLLIN
			}
			if !f.QueueEmpty() {
				events |= unix.POLLOUT
			}
		}

		if !f.QueueEmpty() && f.Ch != nil && f.Ch.Timeout > 0 {
			deadline := time.Duration(f.Ch.Timeout) * time.Second
			elapsed := now.Sub(f.lastProgress)
			remaining := deadline - elapsed
			if remaining <= 0 {
				if f.Ch.Stalled != nil {
					f.Ch.Stalled(f.Ch)
				}
			} else if stallTimeout < 0 || remaining < stallTimeout {
				stallTimeout = remaining
			}
		}

		entries = append(entries, pollEntry{fdio: f, pfd: unix.PollFd{Fd: int32(f.FD), Events: events}})
	})

	return entries, stallTimeout
}

// dispatchOne handles one fd's poll(2) result: error/HUP bookkeeping,
// open/connect-in-progress notification, or read/write I/O.
func (s *Scheduler) dispatchOne(f *FdIo, pfd unix.PollFd) {
	if pfd.Revents == 0 {
		return
	}
	if pfd.Revents&unix.POLLNVAL != 0 {
		return
	}

	needUpdate := false
	if pfd.Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		if f.Ch != nil {
			f.Ch.Flags |= channel.ErrR
		}
		needUpdate = true
	}

	if f.Ch != nil && f.Ch.Flags&channel.IP != 0 {
		if pfd.Revents&(unix.POLLIN|unix.POLLOUT) != 0 {
			if s.Update != nil {
				s.Update(f.Ch, f, pfd.Revents)
			}
			return
		}
	}

	if pfd.Revents&unix.POLLIN != 0 && f.HasReader() {
		f.Read(f.FD)
	}

	if pfd.Revents&unix.POLLOUT != 0 && !f.QueueEmpty() {
		if err := s.flushHead(f); err != nil {
			if f.Ch != nil {
				f.Ch.Flags |= channel.ErrW
			}
			needUpdate = true
		}
	}

	if needUpdate && f.Ch != nil && s.Update != nil {
		if f.Ch.Flags&(channel.Error|channel.EOFFlag) != 0 {
			s.Update(f.Ch, f, pfd.Revents)
		}
	}
}

// flushHead writes as much of the write queue's head message as the fd
// accepts, advancing the partial-write cursor; a fully written head is
// freed and the next message becomes head.
func (s *Scheduler) flushHead(f *FdIo) error {
	for f.wqHead != nil {
		m := f.wqHead
		buf := m.Bytes()
		if f.writtenOfHead >= len(buf) {
			f.logAndAdvanceQueue(buf)
			continue
		}
		n, err := unix.Write(f.FD, buf[f.writtenOfHead:])
		if n > 0 {
			f.writtenOfHead += n
			f.lastProgress = s.Now()
		}
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return err
		}
		if f.writtenOfHead >= len(buf) {
			f.logAndAdvanceQueue(buf)
		}
		return nil
	}
	return nil
}

// logAndAdvanceQueue records the just-completed head message to ch's
// logfile (if any) before discarding it.
func (f *FdIo) logAndAdvanceQueue(buf []byte) {
	if f.Ch != nil {
		f.Ch.WriteLog(false, buf)
	}
	f.advanceQueue()
}

func (f *FdIo) advanceQueue() {
	f.wqHead = f.wqHead.Next
	if f.wqHead == nil {
		f.wqTail = nil
	}
	f.writtenOfHead = 0
}
