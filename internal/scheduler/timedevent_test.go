/*
 * ut - EventQueue tests.
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
	"testing"
	"time"
)

func TestEventQueueOrdersByDeadline(t *testing.T) {
	var q EventQueue
	var fired []string

	q.Add(300*time.Millisecond, func(*TimedEvent) { fired = append(fired, "c") })
	q.Add(100*time.Millisecond, func(*TimedEvent) { fired = append(fired, "a") })
	q.Add(200*time.Millisecond, func(*TimedEvent) { fired = append(fired, "b") })

	d, ok := q.NextDeadline()
	if !ok || d != 100*time.Millisecond {
		t.Fatalf("NextDeadline() = %v, %v; want 100ms, true", d, ok)
	}

	q.Advance(100 * time.Millisecond)
	q.Advance(100 * time.Millisecond)
	q.Advance(100 * time.Millisecond)

	want := []string{"a", "b", "c"}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired[%d] = %q, want %q", i, fired[i], want[i])
		}
	}
}

func TestEventQueueAdvanceFiresAllDueInOnePass(t *testing.T) {
	var q EventQueue
	count := 0
	q.Add(10*time.Millisecond, func(*TimedEvent) { count++ })
	q.Add(20*time.Millisecond, func(*TimedEvent) { count++ })
	q.Add(30*time.Millisecond, func(*TimedEvent) { count++ })

	q.Advance(100 * time.Millisecond)

	if count != 3 {
		t.Errorf("count = %d, want 3 (all due events should fire in one Advance)", count)
	}
	if !q.Empty() {
		t.Error("queue should be empty after all events fired")
	}
}

func TestEventQueueCancel(t *testing.T) {
	var q EventQueue
	fired := false
	ev := q.Add(50*time.Millisecond, func(*TimedEvent) { fired = true })
	q.Add(100*time.Millisecond, func(*TimedEvent) {})

	q.Cancel(ev)
	q.Advance(200 * time.Millisecond)

	if fired {
		t.Error("cancelled event fired")
	}
}

func TestEventQueueRearm(t *testing.T) {
	var q EventQueue
	ticks := 0
	var cb func(*TimedEvent)
	cb = func(ev *TimedEvent) {
		ticks++
		if ticks < 3 {
			q.Rearm(ev, 10*time.Millisecond)
		}
	}
	q.Add(10*time.Millisecond, cb)

	for i := 0; i < 3; i++ {
		q.Advance(10 * time.Millisecond)
	}

	if ticks != 3 {
		t.Errorf("ticks = %d, want 3", ticks)
	}
}
