/*
 * ut - Command interpreter: owns the CHN_CMD input queue and the pending
 * open/connect notification list, and performs the per-channel setup,
 * teardown and EOF bookkeeping shared by every command.
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

// Package cmdi implements the open/close/quit command protocol carried
// on CHN_CMD: a small dispatch table, notification draining for
// nonblocking open/connect results, and the per-channel setup/cleanup
// bookkeeping those commands share with ordinary EOF handling.
package cmdi

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/internal/channel"
	"github.com/bytemine/ut/internal/message"
	"github.com/bytemine/ut/internal/muxdemux"
	"github.com/bytemine/ut/internal/scheduler"
)

// Notification records a pending open/connect-in-progress result,
// queued by Update and drained by Run before any command line.
type Notification struct {
	Ch      *channel.Channel
	Revents int16
}

// Interpreter drains notifications then queued command lines once per
// scheduler iteration (via Run), and handles the error/EOF bookkeeping
// for every other channel (via Update).
type Interpreter struct {
	Channels *channel.Map
	Router   *muxdemux.Router
	Sched    *scheduler.Scheduler

	// SetupReader installs a channel's immediate-mode reader once its
	// fd is ready for reading. Wired by main.go, since it needs to
	// build an iobuf.Buffer feeding Router.Mux - a dependency this
	// package does not otherwise need.
	SetupReader func(ch *channel.Channel)

	queue         []*message.Message
	notifications []Notification
}

// New builds an Interpreter. SetupReader must be assigned before any
// channel successfully opens.
func New(chm *channel.Map, router *muxdemux.Router, sched *scheduler.Scheduler) *Interpreter {
	return &Interpreter{Channels: chm, Router: router, Sched: sched}
}

// Enqueue appends a decoded CHN_CMD line to the command input queue.
// Wired as muxdemux.Router.CmdEnqueue by main.go.
func (in *Interpreter) Enqueue(m *message.Message) {
	in.queue = append(in.queue, m)
}

// Update records a pending open/connect-in-progress notification, or -
// for a channel that isn't mid-open - performs the same error/EOF
// bookkeeping as a read EOF. Wired as scheduler.Scheduler.Update by
// main.go.
func (in *Interpreter) Update(ch *channel.Channel, fdio *scheduler.FdIo, revents int16) {
	if ch.Flags&channel.IP != 0 {
		in.notifications = append(in.notifications, Notification{Ch: ch, Revents: revents})
		return
	}
	in.channelUpdate(ch)
}

// Run drains notifications, then queued command lines, in that order.
// Wired as scheduler.Scheduler.Cmdi by main.go, called once per
// iteration after readiness dispatch.
func (in *Interpreter) Run() {
	notes := in.notifications
	in.notifications = nil
	for _, n := range notes {
		in.handleNotification(n)
	}

	queue := in.queue
	in.queue = nil
	for _, m := range queue {
		in.parse(m)
	}
}

// HandleEOF marks ch closed due to end-of-file on read and runs
// channelUpdate, which closes the fd and releases the channel. Called
// by a channel's reader callback once it observes EOF; wired by main.go.
func (in *Interpreter) HandleEOF(ch *channel.Channel) {
	ch.Flags |= channel.EOFFlag
	in.channelUpdate(ch)
}

// channelUpdate clears a transient I/O error, or - on EOF - closes the
// fd, starts the reaper for a child process, announces the closure on
// both CHN_MSG and the channel itself, and releases the channel.
func (in *Interpreter) channelUpdate(ch *channel.Channel) {
	if ch.Flags&channel.Error != 0 {
		ch.Flags &^= channel.Error
	}

	if ch.Flags&channel.EOFFlag == 0 {
		return
	}

	unix.Close(ch.FD)

	if ch.Flags&channel.PROC != 0 {
		in.installReaper(ch.PID)
	}

	in.Router.Printf(channel.MsgID, 0, "EOF on channel %02X\n", ch.ID)
	in.Router.Printf(ch.ID, message.EOF, "\n")

	in.cleanupChannel(ch)
}

// handleNotification resolves a completed nonblocking open/connect,
// finishing channel setup on success or releasing the channel on
// failure.
func (in *Interpreter) handleNotification(n Notification) {
	ch := n.Ch

	var err error
	switch {
	case ch.Flags&channel.OIP != 0:
		err = in.resolveOIP(ch, n.Revents)
	case ch.Flags&channel.CIP != 0:
		err = channel.ResolveConnect(ch.FD)
	default:
		err = fmt.Errorf("unknown/invalid notification, flags=0x%x", ch.Flags)
	}

	if err != nil {
		in.Router.Printf(channel.MsgID, message.Err, "open %02X: %s\n", ch.ID, err)
		in.Router.Printf(channel.CmdID, 0, "FAIL open %02X\n", ch.ID)
		unix.Close(ch.FD)
		in.cleanupChannel(ch)
		return
	}

	ch.Flags &^= channel.IP
	in.setupChannel(ch)
	in.Router.Printf(channel.CmdID, 0, "OK open %02X\n", ch.ID)
}

// resolveOIP is unreachable with the open strategies this repository
// implements (UNIX/INET report completion via CIP, POPEN never goes
// in-progress); kept for a future plain-file open method that sets
// channel.OIP.
func (in *Interpreter) resolveOIP(ch *channel.Channel, revents int16) error {
	switch {
	case revents&unix.POLLIN != 0:
		return channel.ResolveOpen(ch.FD, false)
	case revents&unix.POLLOUT != 0:
		return channel.ResolveOpen(ch.FD, true)
	default:
		return fmt.Errorf("cmdi_handle_oip(): unexpected poll() state: 0x%x", revents)
	}
}

// setupChannel finishes a successful open: installs the reader (or, for
// a write-only channel, just keeps its fdio alive so the scheduler
// keeps polling it), opens the logfile if configured, and emits the
// channel's motd.
func (in *Interpreter) setupChannel(ch *channel.Channel) {
	f := in.Sched.Get(ch.FD)
	if f == nil {
		f = in.Sched.Register(ch.FD, ch)
	} else {
		f.Ch = ch
	}

	if ch.Flags&channel.RD != 0 {
		if in.SetupReader != nil {
			in.SetupReader(ch)
		}
	} else {
		f.Keep = true
	}

	if ch.Config != nil && ch.Config.LogFile != "" {
		fd, err := unix.Open(ch.Config.LogFile, unix.O_WRONLY|unix.O_APPEND|unix.O_CREAT, 0644)
		if err != nil {
			in.Router.Printf(channel.MsgID, message.Err, "logfile open: %s: %s\n", ch.Config.LogFile, err)
		} else {
			ch.LogFD = fd
		}
	}

	if ch.Config != nil && len(ch.Config.Motd) > 0 {
		in.Router.PrintLines(channel.CmdID, ch.Config.Motd)
	}
}

// cleanupChannel releases everything a successful open acquired: the
// scheduler's fdio, the logfile, and the channel's own state. It does
// not close ch.FD; callers close it first so any in-flight write error
// is attributed to the right fd.
func (in *Interpreter) cleanupChannel(ch *channel.Channel) {
	in.Sched.Unregister(ch.FD)
	if ch.LogFD != -1 {
		unix.Close(ch.LogFD)
		ch.LogFD = -1
	}
	ch.Flags = 0
	ch.FD = -1
}

// installReaper starts an escalating-signal reaper for a popen
// channel's child, rescheduling itself through the event queue until
// the child is reaped.
func (in *Interpreter) installReaper(pid int) {
	r := channel.NewReaper(pid)

	var tick func(*scheduler.TimedEvent)
	tick = func(ev *scheduler.TimedEvent) {
		next, done := r.Tick(func(format string, args ...any) {
			in.Router.Printf(channel.MsgID, 0, format+"\n", args...)
		})
		if done {
			return
		}
		in.Sched.Events.Rearm(ev, next)
	}
	in.Sched.Events.Add(time.Second, tick)
}
