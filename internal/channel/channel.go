/*
 * ut - Channel: a named byte-stream endpoint with an 8-bit id, and the
 * channel map that owns every reserved and configured channel.
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

// Package channel holds the Channel record, its flag bitset, the channel
// map, and the UNIX/INET/POPEN open strategies.
package channel

import (
	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/config"
)

// Flags is a bitset over a Channel's lifecycle state.
type Flags uint16

const (
	RD Flags = 1 << iota
	WR
	OIP // open-in-progress
	CIP // connect-in-progress
	PROC
	ErrR
	ErrW
	ErrL
	ErrP
	EOFFlag

	Active = RD | WR
	IP     = OIP | CIP
	Error  = ErrR | ErrW | ErrL | ErrP
)

// Reserved channel ids.
const (
	CmdID uint8 = 0x00
	MsgID uint8 = 0xFF
	// CHN_MAX is the highest legal channel id; CHN_MAIN is the shared
	// stdin/stdout pseudo-channel and is never a valid array index.
	CHN_MAX  = 0xFE
	CHN_MAIN = -1
)

// Channel is one byte-stream endpoint: a reserved sentinel (CmdID, MsgID),
// or one entry from the config file.
type Channel struct {
	ID      uint8
	FD      int
	LogFD   int
	PID     int // child pid, when Flags&PROC
	Flags   Flags
	Pxfl    int // last poll revents seen while erroring
	Config  *config.ChannelConfig
	Timeout int // stall-detection seconds, 0 disables

	// Stalled is invoked by the scheduler when this channel's output has
	// made no progress for Timeout seconds.
	Stalled func(*Channel)
}

// WriteLog appends one line to ch's logfile, if open: the direction byte
// ('<' for data read from the channel, '>' for data written to it)
// immediately followed by data, with no separator.
func (ch *Channel) WriteLog(dirIn bool, data []byte) {
	if ch.LogFD == -1 {
		return
	}
	dir := byte('>')
	if dirIn {
		dir = '<'
	}
	line := append([]byte{dir}, data...)
	if _, err := unix.Write(ch.LogFD, line); err != nil {
		ch.Flags |= ErrL
	}
}

// Map is a total function from 0..255 to an optional Channel. CmdID and
// MsgID are always present as routing-only sentinels with FD == -1.
type Map struct {
	channels [256]*Channel
}

// NewMap builds the channel map for cfg: the two reserved sentinels, then
// one Channel per cfg.Channels entry, ids assigned densely starting at 1
// in declaration order, skipping CmdID and MsgID.
func NewMap(cfg *config.Config) *Map {
	m := &Map{}

	m.channels[CmdID] = &Channel{ID: CmdID, FD: -1, LogFD: -1, Flags: WR}
	m.channels[MsgID] = &Channel{ID: MsgID, FD: -1, LogFD: -1, Flags: WR}

	id := uint8(1)
	for i := range cfg.Channels {
		for id == CmdID || id == MsgID {
			id++
		}
		cc := &cfg.Channels[i]
		m.channels[id] = &Channel{
			ID:      id,
			FD:      -1,
			LogFD:   -1,
			Config:  cc,
			Timeout: 0,
		}
		id++
	}

	return m
}

// Get returns the channel at id, or nil if none is mapped there.
func (m *Map) Get(id uint8) *Channel {
	return m.channels[id]
}

// Set installs ch at its own ID in the map.
func (m *Map) Set(ch *Channel) {
	m.channels[ch.ID] = ch
}

// Clear removes any channel at id (used after teardown of a configured,
// non-reserved channel; never called for CmdID/MsgID).
func (m *Map) Clear(id uint8) {
	m.channels[id] = nil
}

// All returns every non-nil channel, in ascending id order.
func (m *Map) All() []*Channel {
	out := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch != nil {
			out = append(out, ch)
		}
	}
	return out
}
