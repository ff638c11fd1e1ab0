/*
 * ut - TimedEvent queue: an ordered list of callbacks keyed by relative
 * deltas to the next deadline, generalized from a CPU-cycle event list
 * to wall-clock durations.
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

import "time"

// TimedEvent is one node of an EventQueue. Delta is relative to the
// node before it (or to "now" for the head); firing consumes the node.
type TimedEvent struct {
	delta time.Duration
	cb    func(*TimedEvent)
	prev  *TimedEvent
	next  *TimedEvent
}

// Rearm reschedules a firing event for delay more, reinserting it in
// order. Intended to be called from within the event's own callback.
func (q *EventQueue) Rearm(ev *TimedEvent, delay time.Duration) {
	ev.delta = delay
	q.insert(ev)
}

// EventQueue is the ordered chain of pending TimedEvents.
type EventQueue struct {
	head *TimedEvent
	tail *TimedEvent
}

// Add schedules cb to fire after delay, returning the event so it can
// later be cancelled.
func (q *EventQueue) Add(delay time.Duration, cb func(*TimedEvent)) *TimedEvent {
	ev := &TimedEvent{delta: delay, cb: cb}
	q.insert(ev)
	return ev
}

func (q *EventQueue) insert(ev *TimedEvent) {
	ev.prev, ev.next = nil, nil
	cur := q.head
	if cur == nil {
		q.head = ev
		q.tail = ev
		return
	}
	for cur != nil {
		if ev.delta <= cur.delta {
			cur.delta -= ev.delta
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				q.head = ev
			}
			return
		}
		ev.delta -= cur.delta
		cur = cur.next
	}
	ev.prev = q.tail
	q.tail.next = ev
	q.tail = ev
}

// Cancel removes ev from the queue, donating its remaining delta to
// the following node so later deadlines stay correct.
func (q *EventQueue) Cancel(ev *TimedEvent) {
	if ev == nil {
		return
	}
	if ev.next != nil {
		ev.next.delta += ev.delta
		ev.next.prev = ev.prev
	} else {
		q.tail = ev.prev
	}
	if ev.prev != nil {
		ev.prev.next = ev.next
	} else {
		q.head = ev.next
	}
}

// Empty reports whether the queue has no pending events.
func (q *EventQueue) Empty() bool {
	return q.head == nil
}

// NextDeadline returns the delay until the earliest event, and false
// if the queue is empty.
func (q *EventQueue) NextDeadline() (time.Duration, bool) {
	if q.head == nil {
		return 0, false
	}
	return q.head.delta, true
}

// Advance consumes elapsed wall-clock time, firing every event whose
// deadline has now been reached, in order. A callback may reschedule
// itself via Rearm.
func (q *EventQueue) Advance(elapsed time.Duration) {
	if q.head == nil {
		return
	}
	q.head.delta -= elapsed
	for q.head != nil && q.head.delta <= 0 {
		ev := q.head
		overshoot := ev.delta // <= 0
		q.head = ev.next
		if q.head != nil {
			q.head.delta += overshoot
			q.head.prev = nil
		} else {
			q.tail = nil
		}
		ev.next, ev.prev = nil, nil
		ev.cb(ev)
	}
}
