/*
 * ut - Command interpreter tests.
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

package cmdi

import (
	"os"
	"testing"

	"github.com/bytemine/ut/config"
	"github.com/bytemine/ut/internal/channel"
	"github.com/bytemine/ut/internal/message"
	"github.com/bytemine/ut/internal/muxdemux"
	"github.com/bytemine/ut/internal/scheduler"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()

	cfg := &config.Config{Channels: []config.ChannelConfig{{Name: "a"}}}
	chm := channel.NewMap(cfg)
	sched := scheduler.New()
	sched.Register(muxdemux.MainOutFD, chm.Get(channel.MsgID))
	router := &muxdemux.Router{Channels: chm, Sched: sched}

	in := New(chm, router, sched)
	router.CmdEnqueue = in.Enqueue
	return in
}

func outQueueEmpty(t *testing.T, in *Interpreter) bool {
	t.Helper()
	f := in.Sched.Get(muxdemux.MainOutFD)
	if f == nil {
		t.Fatal("no fdio registered at MainOutFD")
	}
	return f.QueueEmpty()
}

func TestArg2chnInvalidAndValid(t *testing.T) {
	in := newTestInterpreter(t)

	if ch := in.arg2chn("zz"); ch != nil {
		t.Errorf("arg2chn(%q) = %v, want nil", "zz", ch)
	}
	if ch := in.arg2chn("x"); ch != nil {
		t.Errorf("arg2chn(%q) = %v, want nil", "x", ch)
	}
	if ch := in.arg2chn("FE"); ch != nil {
		t.Errorf("arg2chn(%q) = %v, want nil (unmapped)", "FE", ch)
	}
	if ch := in.arg2chn("01"); ch == nil || ch.ID != 1 {
		t.Errorf("arg2chn(%q) = %v, want channel 1", "01", ch)
	}
}

func TestCmdOpenMissingArgument(t *testing.T) {
	in := newTestInterpreter(t)
	if res := cmdOpen(in, []string{"open"}); res != resultFail {
		t.Errorf("cmdOpen with no argument = %v, want resultFail", res)
	}
}

func TestCmdOpenAlreadyOpen(t *testing.T) {
	in := newTestInterpreter(t)
	ch := in.Channels.Get(1)
	ch.Flags = channel.RD | channel.WR

	if res := cmdOpen(in, []string{"open", "01"}); res != resultFail {
		t.Errorf("cmdOpen on already-open channel = %v, want resultFail", res)
	}
}

func TestCmdOpenUnknownMethod(t *testing.T) {
	in := newTestInterpreter(t)
	ch := in.Channels.Get(1)
	ch.Config.Method = config.MethodType(99)

	if res := cmdOpen(in, []string{"open", "01"}); res != resultFail {
		t.Errorf("cmdOpen with unimplemented method = %v, want resultFail", res)
	}
}

func TestCmdCloseNotOpen(t *testing.T) {
	in := newTestInterpreter(t)
	if res := cmdClose(in, []string{"close", "01"}); res != resultFail {
		t.Errorf("cmdClose on unopened channel = %v, want resultFail", res)
	}
}

func TestCmdCloseReservedChannel(t *testing.T) {
	in := newTestInterpreter(t)
	if res := cmdClose(in, []string{"close", "00"}); res != resultFail {
		t.Errorf("cmdClose on CHN_CMD = %v, want resultFail", res)
	}
	if res := cmdClose(in, []string{"close", "FF"}); res != resultFail {
		t.Errorf("cmdClose on CHN_MSG = %v, want resultFail", res)
	}
}

func TestCmdCloseSuccess(t *testing.T) {
	in := newTestInterpreter(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()

	ch := in.Channels.Get(1)
	ch.FD = int(w.Fd())
	ch.LogFD = -1
	ch.Flags = channel.RD | channel.WR
	in.Sched.Register(ch.FD, ch)

	if res := cmdClose(in, []string{"close", "01"}); res != resultOK {
		t.Errorf("cmdClose = %v, want resultOK", res)
	}
	if ch.Flags != 0 {
		t.Errorf("ch.Flags = %v after close, want 0", ch.Flags)
	}
	if in.Sched.Get(int(w.Fd())) != nil {
		t.Error("fdio still registered after close")
	}
}

func TestParseIgnoresEmptyLine(t *testing.T) {
	in := newTestInterpreter(t)
	m := message.New(false, 0, false)
	m.Length = message.PrefixLen
	in.parse(m)

	if !outQueueEmpty(t, in) {
		t.Error("empty command line should not produce a reply")
	}
}

func TestParseMalformedBufferRepliesFail(t *testing.T) {
	in := newTestInterpreter(t)
	m := message.New(false, 4, false)
	m.SetPayload([]byte("open"))
	m.Flags |= message.NoNL
	in.parse(m)

	if outQueueEmpty(t, in) {
		t.Error("malformed buffer should still produce a FAIL reply")
	}
}

func TestParseUnknownCommand(t *testing.T) {
	in := newTestInterpreter(t)
	payload := []byte("frobnicate\n")
	m := message.New(false, len(payload), false)
	m.SetPayload(payload)
	in.parse(m)

	if outQueueEmpty(t, in) {
		t.Error("unknown command should still produce a FAIL reply")
	}
}

func TestParseDispatchesKnownCommand(t *testing.T) {
	in := newTestInterpreter(t)
	payload := []byte("open 01\n")
	m := message.New(false, len(payload), false)
	m.SetPayload(payload)
	in.parse(m)

	if outQueueEmpty(t, in) {
		t.Error("open command should produce an OK/FAIL/WAIT reply")
	}
}

func TestDemuxThenParseRoundTrip(t *testing.T) {
	in := newTestInterpreter(t)

	raw := []byte("<00< open 01\n")
	m := message.New(false, len(raw)-message.PrefixLen, false)
	copy(m.Buf, raw)
	m.Length = len(raw)

	in.Router.Demux(m)

	if len(in.queue) != 1 {
		t.Fatalf("queue has %d messages after Demux, want 1", len(in.queue))
	}
	if got := string(in.queue[0].Payload()); got != "open 01\n" {
		t.Fatalf("enqueued command payload = %q, want %q (Demux must not corrupt Length)", got, "open 01\n")
	}

	in.Run()

	if outQueueEmpty(t, in) {
		t.Error("dispatching a command routed through Demux should still produce a reply")
	}
}

func TestRunDrainsQueuedCommandLine(t *testing.T) {
	in := newTestInterpreter(t)
	payload := []byte("bogus\n")
	m := message.New(false, len(payload), false)
	m.SetPayload(payload)
	in.Enqueue(m)

	in.Run()

	if outQueueEmpty(t, in) {
		t.Error("Run() should have dispatched the queued line and replied")
	}
}
