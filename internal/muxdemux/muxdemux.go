/*
 * ut - Router: mux() builds the outbound 5-byte prefix, demux() validates
 * and routes an inbound prefixed line; Printf formats a diagnostic
 * straight onto a channel's muxed output.
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

// Package muxdemux builds and validates the 5-byte channel-id prefix
// that multiplexes every channel's bytes onto the shared input/output
// stream.
package muxdemux

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bytemine/ut/internal/channel"
	"github.com/bytemine/ut/internal/message"
	"github.com/bytemine/ut/internal/scheduler"
	"github.com/bytemine/ut/util/hex"
)

// MainOutFD is the fd the shared output stream is always opened on.
const MainOutFD = 1

// Router ties the channel map and scheduler together so mux/demux can
// enqueue onto the shared output and route decoded frames.
type Router struct {
	Channels *channel.Map
	Sched    *scheduler.Scheduler

	// CmdEnqueue appends a decoded CHN_CMD line to the command
	// interpreter's input queue. Wired by main.go to avoid an import
	// cycle between this package and internal/cmdi.
	CmdEnqueue func(*message.Message)
}

// Mux must receive a Plain message. It stamps the 5-byte prefix for
// ch's id and the message's framing character, then enqueues onto the
// shared output's write queue.
func (r *Router) Mux(m *message.Message, ch *channel.Channel) {
	if m.Flags&message.Plain == 0 {
		r.fatal("mux(): cannot have prefix yet\n")
	}
	if r.Channels.Get(ch.ID) == nil {
		r.fatal("mux(): no such channel\n")
	}

	tc := m.FrameChar()
	m.Buf[0] = tc
	hex.FormatByte(m.Buf[1:3], ch.ID)
	m.Buf[3] = tc
	m.Buf[4] = ' '
	m.Flags &^= message.Plain

	f := r.Sched.Get(MainOutFD)
	if f == nil {
		r.fatal("mux(): no fdio for main out\n")
	}
	f.Enqueue(m)
}

// Demux validates m's prefix (bytes 0..4) and routes the payload: to
// the command input queue for CHN_CMD, echoed back via Mux for
// CHN_MSG, or onto the target channel's write queue.
func (r *Router) Demux(m *message.Message) {
	if m.Length < 6 {
		r.Printf(channel.MsgID, message.Err,
			"demux(): illegal input (too short to have valid prefix)\n")
		return
	}

	prefix := m.Buf[:5]
	if prefix[0] != '<' || prefix[3] != '<' || prefix[4] != ' ' {
		r.Printf(channel.MsgID, message.Err,
			"demux(): illegal prefix (wrong framing chars)\n")
		return
	}

	id, ok := hex.DecodeByte(prefix[1], prefix[2])
	if !ok {
		r.Printf(channel.MsgID, message.Err,
			"demux(): illegal prefix (garbled channel id)\n")
		return
	}

	ch := r.Channels.Get(id)
	if ch == nil {
		r.Printf(channel.MsgID, message.Err,
			"demux(): channel %02X does not exist\n", id)
		return
	}
	if ch.Flags&channel.IP != 0 {
		r.Printf(channel.MsgID, message.Err,
			"demux(): channel %02X not yet ready\n", id)
		return
	}
	if ch.Flags&channel.WR == 0 {
		r.Printf(channel.MsgID, message.Err,
			"demux(): channel %02X not open for writing\n", id)
		return
	}

	// Length is already the absolute end-offset into Buf (PrefixLen +
	// payload, set by the framer); Payload()/Bytes() key off Plain to
	// skip the prefix bytes, so nothing further needs adjusting here.
	m.Flags |= message.Plain

	switch id {
	case channel.CmdID:
		if r.CmdEnqueue != nil {
			r.CmdEnqueue(m)
		}
	case channel.MsgID:
		r.Mux(m, r.Channels.Get(channel.MsgID))
	default:
		if f := r.Sched.Get(ch.FD); f != nil {
			f.Enqueue(m)
		}
	}
}

// Printf formats a diagnostic/status line onto id's muxed output.
func (r *Router) Printf(id uint8, flags message.Flags, format string, args ...any) {
	ch := r.Channels.Get(id)
	if ch == nil {
		if id == channel.MsgID {
			r.fatal("internal error: channel MSG does not exist\n")
		}
		r.Printf(channel.MsgID, message.Err,
			"internal error: channel %02X does not exist\n", id)
		return
	}

	payload := []byte(fmt.Sprintf(format, args...))
	m := message.New(true, len(payload), false)
	m.SetPayload(payload)
	m.Flags |= flags

	r.Mux(m, ch)
}

// PrintLines writes msg line by line on id, each prefixed "# ".
func (r *Router) PrintLines(id uint8, msg []string) {
	for _, line := range msg {
		r.Printf(id, 0, "# %s\n", line)
	}
}

// fatal mirrors the emergency-writer escape hatch mux()/demux() use in
// the C source when an internal invariant is violated: it cannot go
// through Mux itself (that would recurse), so it writes directly and
// exits.
func (r *Router) fatal(format string, args ...any) {
	r.Sched.Emergencyf(0, format, args...)
	slog.Error("mux/demux internal error", "detail", fmt.Sprintf(format, args...))
	os.Exit(1)
}
