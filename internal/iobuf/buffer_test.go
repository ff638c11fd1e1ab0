/*
 * ut - Buffer tests.
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
	"os"
	"testing"

	"github.com/bytemine/ut/internal/message"
)

func pipeFd(t *testing.T) (r *os.File, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestWaitModeEmitsOnlyCompleteLines(t *testing.T) {
	r, w := pipeFd(t)
	var got []*message.Message
	b := New(true, true, func(m *message.Message) { got = append(got, m) })

	if _, err := w.Write([]byte("hello\nworld")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if res := b.ReadInto(int(r.Fd())); res != ReadOK {
		t.Fatalf("ReadInto = %v, want ReadOK", res)
	}

	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1 (trailing partial should not be emitted)", len(got))
	}
	if string(got[0].Payload()) != "hello\n" {
		t.Errorf("payload = %q, want %q", got[0].Payload(), "hello\n")
	}
	if got[0].Flags&message.NoNL != 0 {
		t.Error("complete line should not carry NoNL")
	}
}

func TestWaitModeCompletesPartialOnNextRead(t *testing.T) {
	r, w := pipeFd(t)
	var got []*message.Message
	b := New(true, true, func(m *message.Message) { got = append(got, m) })

	w.Write([]byte("hel"))
	b.ReadInto(int(r.Fd()))
	if len(got) != 0 {
		t.Fatalf("got %d messages before newline, want 0", len(got))
	}

	w.Write([]byte("lo\n"))
	b.ReadInto(int(r.Fd()))
	if len(got) != 1 {
		t.Fatalf("got %d messages after newline, want 1", len(got))
	}
	if string(got[0].Payload()) != "hello\n" {
		t.Errorf("payload = %q, want %q", got[0].Payload(), "hello\n")
	}
}

func TestImmediateModeEmitsTrailingPartialWithNoNL(t *testing.T) {
	r, w := pipeFd(t)
	var got []*message.Message
	b := New(false, true, func(m *message.Message) { got = append(got, m) })

	w.Write([]byte("hello\nworld"))
	if res := b.ReadInto(int(r.Fd())); res != ReadOK {
		t.Fatalf("ReadInto = %v, want ReadOK", res)
	}

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2 (one complete line, one partial tail)", len(got))
	}
	if string(got[0].Payload()) != "hello\n" {
		t.Errorf("first payload = %q, want %q", got[0].Payload(), "hello\n")
	}
	if got[1].Flags&message.NoNL == 0 {
		t.Error("trailing partial should carry NoNL")
	}
	if string(got[1].Payload()) != "world\n" {
		t.Errorf("second payload = %q, want %q (artificial newline appended)", got[1].Payload(), "world\n")
	}
}

func TestNonPlainSplitsPrefixSlot(t *testing.T) {
	r, w := pipeFd(t)
	var got *message.Message
	b := New(true, false, func(m *message.Message) { got = m })

	w.Write([]byte("<01< payload\n"))
	if res := b.ReadInto(int(r.Fd())); res != ReadOK {
		t.Fatalf("ReadInto = %v, want ReadOK", res)
	}

	if got == nil {
		t.Fatal("no message emitted")
	}
	if got.Flags&message.Plain != 0 {
		t.Error("non-plain buffer should not set Plain on its messages")
	}
	if string(got.Bytes()) != "<01< payload\n" {
		t.Errorf("Bytes() = %q, want full line including prefix", got.Bytes())
	}
}

func TestReadIntoReportsEOF(t *testing.T) {
	r, w := pipeFd(t)
	w.Close()

	b := New(true, true, func(m *message.Message) {})
	if res := b.ReadInto(int(r.Fd())); res != ReadEOF {
		t.Errorf("ReadInto on closed writer = %v, want ReadEOF", res)
	}
}
