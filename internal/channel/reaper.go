/*
 * ut - Child process reaper: escalating SIGHUP/SIGTERM/SIGKILL supervision
 * for a popen channel's child after it is closed or hits EOF.
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
	"time"

	"golang.org/x/sys/unix"
)

// Reaper drives a child process toward exit with escalating signals,
// re-checked on each Tick call by a timed event.
type Reaper struct {
	PID  int
	step int
}

// NewReaper starts a reaper for pid. The caller is responsible for
// scheduling the first Tick after 1 second, and each subsequent Tick
// after the duration Tick returns.
func NewReaper(pid int) *Reaper {
	return &Reaper{PID: pid, step: 1}
}

// Tick performs one step of the reaper state machine: first reap via a
// non-blocking waitpid, and if the child is still alive escalate to the
// next signal. done is true once the child has been reaped and no
// further ticks are needed.
func (r *Reaper) Tick(log func(format string, args ...any)) (next time.Duration, done bool) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(r.PID, &ws, unix.WNOHANG, nil)
	if err != nil {
		log("waitpid(): %s", err)
	} else if pid != 0 {
		switch {
		case ws.Stopped():
			log("pid %d stopped", pid)
		case ws.Signaled():
			core := ""
			if ws.CoreDump() {
				core = " core dumped"
			}
			log("pid %d terminated by signal %d%s", pid, ws.Signal(), core)
			return 0, true
		case ws.Exited():
			log("pid %d exited (%d)", pid, ws.ExitStatus())
			return 0, true
		default:
			log("unknown status code 0x%08x for pid %d", uint32(ws), pid)
			return 0, true
		}
	}

	sig, wait := r.escalation()
	if sig != 0 {
		log(r.signalMessage(sig), r.PID)
		if err := unix.Kill(r.PID, sig); err != nil {
			if err == unix.ESRCH {
				return 100 * time.Millisecond, false
			}
			log("kill() pid %d: %s", r.PID, err)
		}
	}
	if r.step >= 3 {
		r.step = 3 // already SIGKILLed: with the increment below, step stays at 4
	}
	r.step++
	return wait, false
}

// escalation returns the signal to send (0 for none) and the delay
// before the next tick for the current step: SIGHUP at step 1 (10s),
// SIGTERM at step 2 (20s), SIGKILL once at step 3 (10s), nothing at
// step 4 and beyond (10s, already SIGKILLed).
func (r *Reaper) escalation() (unix.Signal, time.Duration) {
	switch r.step {
	case 1:
		return unix.SIGHUP, 10 * time.Second
	case 2:
		return unix.SIGTERM, 20 * time.Second
	case 3:
		return unix.SIGKILL, 10 * time.Second
	default:
		return 0, 10 * time.Second
	}
}

func (r *Reaper) signalMessage(sig unix.Signal) string {
	switch sig {
	case unix.SIGHUP:
		return "sending SIGHUP to %d"
	case unix.SIGTERM:
		return "sending SIGTERM to %d"
	default:
		return "sending SIGKILL to %d"
	}
}
