/*
 * ut - Message record: the unit of data moved between a channel's fd and
 * the shared input/output stream.
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

// Package message holds the Message record shared by the framer, the
// mux/demux router, the scheduler's write queues and the command
// interpreter.
package message

// Flags is a bitset over a Message's framing state.
type Flags uint8

const (
	// Plain means "no prefix, payload only" - Buf holds payload starting
	// at PrefixLen, nothing before it is valid.
	Plain Flags = 1 << iota
	// NoNL means the payload did not end with a newline at the source;
	// an artificial newline was appended at serialization.
	NoNL
	// Err marks a diagnostic/error message (changes the mux frame char).
	Err
	// EOF marks a channel-closed notice (changes the mux frame char).
	EOF
)

// PrefixLen is the fixed width of the framing prefix: frame-char, two hex
// digits, frame-char, space.
const PrefixLen = 5

// Message is created by the framer, the command interpreter, or Printf;
// owned by exactly one write queue at a time; freed once fully written or
// discarded. Buf is laid out as [prefix(PrefixLen)][payload...] so that a
// non-Plain message can be written in one contiguous range starting at
// offset 0, and a Plain message in one contiguous range starting at
// PrefixLen.
type Message struct {
	Flags  Flags
	Length int // end offset into Buf; Bytes() starts at 0 or PrefixLen per Plain
	Buf    []byte
	Next   *Message // write-queue link; nil when tail
}

// New allocates a Message with room for PrefixLen header bytes (unused
// when plain) followed by payload bytes, plus optional trailing room for
// an artificially appended newline.
func New(plain bool, payload int, appendNL bool) *Message {
	size := PrefixLen + payload
	if appendNL {
		size++
	}
	m := &Message{Buf: make([]byte, size)}
	if plain {
		m.Flags |= Plain
	}
	return m
}

// Payload returns the payload portion of Buf (excludes the prefix slot
// regardless of Plain, and excludes any bytes beyond Length).
func (m *Message) Payload() []byte {
	return m.Buf[PrefixLen:m.Length]
}

// SetPayload copies data into the payload region and sets Length to
// PrefixLen+len(data). Buf is not resized: it must already have room,
// as a Message from New(_, len(data), _) does.
func (m *Message) SetPayload(data []byte) {
	copy(m.Buf[PrefixLen:], data)
	m.Length = PrefixLen + len(data)
}

// Bytes returns the exact byte range that must be written to the peer:
// starting at Buf[0] when the prefix is populated (non-Plain), or
// Buf[PrefixLen:] when Plain.
func (m *Message) Bytes() []byte {
	if m.Flags&Plain != 0 {
		return m.Buf[PrefixLen:m.Length]
	}
	return m.Buf[0:m.Length]
}

// FrameChar returns the framing character mux() stamps into the prefix
// for this message's flags: EOF beats Err beats NoNL beats the default.
func (m *Message) FrameChar() byte {
	switch {
	case m.Flags&EOF != 0:
		return '.'
	case m.Flags&Err != 0:
		return '!'
	case m.Flags&NoNL != 0:
		return '_'
	default:
		return '>'
	}
}
