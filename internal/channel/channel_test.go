/*
 * ut - Channel map tests.
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

package channel

import (
	"testing"
	"time"

	"github.com/bytemine/ut/config"
)

func TestNewMapReservedSentinels(t *testing.T) {
	cfg := &config.Config{}
	m := NewMap(cfg)

	cmd := m.Get(CmdID)
	if cmd == nil || cmd.FD != -1 || cmd.Flags&WR == 0 {
		t.Fatalf("CmdID sentinel = %+v", cmd)
	}
	msg := m.Get(MsgID)
	if msg == nil || msg.FD != -1 || msg.Flags&WR == 0 {
		t.Fatalf("MsgID sentinel = %+v", msg)
	}
}

func TestNewMapAssignsIDsPositionallySkippingReserved(t *testing.T) {
	cfg := &config.Config{
		Channels: []config.ChannelConfig{
			{Name: "a"}, {Name: "b"}, {Name: "c"},
		},
	}
	m := NewMap(cfg)

	ids := []uint8{}
	for id := uint8(1); id < 4; id++ {
		ch := m.Get(id)
		if ch == nil {
			t.Fatalf("expected channel at id %d", id)
		}
		ids = append(ids, ch.ID)
	}
	want := []uint8{1, 2, 3}
	for i, id := range ids {
		if id != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, id, want[i])
		}
	}
}

func TestMapClearAndSet(t *testing.T) {
	cfg := &config.Config{Channels: []config.ChannelConfig{{Name: "a"}}}
	m := NewMap(cfg)

	m.Clear(1)
	if m.Get(1) != nil {
		t.Fatal("Clear(1) did not remove channel")
	}

	ch := &Channel{ID: 1, FD: -1}
	m.Set(ch)
	if m.Get(1) != ch {
		t.Fatal("Set(ch) did not install channel")
	}
}

func TestOpenUnknownMethod(t *testing.T) {
	ch := &Channel{ID: 1, Config: &config.ChannelConfig{Method: config.MethodType(99)}}
	res, err := ch.Open()
	if res != OpenFail || err == nil {
		t.Fatalf("Open() = %v, %v; want OpenFail, error", res, err)
	}
}

func TestReaperEscalation(t *testing.T) {
	r := &Reaper{PID: -1, step: 1}
	sig, wait := r.escalation()
	if sig.String() != "hangup" || wait != 10*time.Second {
		t.Errorf("step 1: sig=%v wait=%v", sig, wait)
	}
	r.step = 2
	sig, wait = r.escalation()
	if wait != 20*time.Second {
		t.Errorf("step 2: wait=%v", wait)
	}
	r.step = 3
	sig, wait = r.escalation()
	if wait != 10*time.Second {
		t.Errorf("step 3: wait=%v", wait)
	}
	r.step = 9
	sig, wait = r.escalation()
	if sig != 0 || wait != 10*time.Second {
		t.Errorf("step >=4: sig=%v wait=%v, want 0", sig, wait)
	}
}
