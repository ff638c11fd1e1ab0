/*
 * ut - Channel open strategies: UNIX domain socket, IPv4 TCP socket, and
 * child process (socketpair + fork/exec), all started non-blocking.
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
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/config"
)

// OpenResult is the outcome of attempting to open a channel.
type OpenResult int

const (
	OpenOK OpenResult = iota
	OpenFail
	OpenInProgress
)

// Open dispatches to ch's configured method. read/write methods are
// accepted by the config grammar but have no open strategy here.
func (ch *Channel) Open() (OpenResult, error) {
	if ch.Config == nil {
		return OpenFail, fmt.Errorf("channel %02X has no config", ch.ID)
	}
	switch ch.Config.Method {
	case config.MethodUNIX:
		return ch.openUNIX()
	case config.MethodINET:
		return ch.openINET()
	case config.MethodPopen:
		return ch.openPopen()
	default:
		return OpenFail, fmt.Errorf("the access method defined for this channel is not implemented, sorry")
	}
}

func (ch *Channel) openUNIX() (OpenResult, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return OpenFail, fmt.Errorf("socket(): %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return OpenFail, fmt.Errorf("set nonblocking: %w", err)
	}

	addr := &unix.SockaddrUnix{Name: ch.Config.Target}
	err = unix.Connect(fd, addr)
	if err == nil {
		ch.FD = fd
		ch.Flags = RD | WR
		return OpenOK, nil
	}
	if err == unix.EINPROGRESS {
		ch.FD = fd
		ch.Flags = RD | WR | CIP
		return OpenInProgress, nil
	}
	unix.Close(fd)
	return OpenFail, fmt.Errorf("connect(): %w", err)
}

func (ch *Channel) openINET() (OpenResult, error) {
	ip := net.ParseIP(ch.Config.Host)
	v4 := ip.To4()
	if v4 == nil {
		return OpenFail, fmt.Errorf("config error - invalid address %q", ch.Config.Host)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return OpenFail, fmt.Errorf("socket(): %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return OpenFail, fmt.Errorf("set nonblocking: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: ch.Config.Port}
	copy(addr.Addr[:], v4)

	err = unix.Connect(fd, addr)
	if err == nil {
		ch.FD = fd
		ch.Flags = RD | WR
		return OpenOK, nil
	}
	if err == unix.EINPROGRESS {
		ch.FD = fd
		ch.Flags = RD | WR | CIP
		return OpenInProgress, nil
	}
	unix.Close(fd)
	return OpenFail, fmt.Errorf("connect(): %w", err)
}

func (ch *Channel) openPopen() (OpenResult, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return OpenFail, fmt.Errorf("socketpair(): %w", err)
	}
	parentFD, childFD := fds[0], fds[1]

	pid, err := unix.ForkExec("/bin/sh", []string{"[ut] sh", "-c", ch.Config.Target}, &unix.ProcAttr{
		Files: []uintptr{uintptr(childFD), uintptr(childFD), uintptr(childFD)},
		Sys:   &unix.SysProcAttr{},
	})
	unix.Close(childFD)
	if err != nil {
		unix.Close(parentFD)
		return OpenFail, fmt.Errorf("fork/exec: %w", err)
	}

	ch.FD = parentFD
	ch.PID = pid
	ch.Flags = RD | WR | PROC
	return OpenOK, nil
}

// ResolveConnect checks a completed non-blocking connect (CIP), reading
// SO_ERROR. A zero value means the connection succeeded.
func ResolveConnect(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("getsockopt(): %w", err)
	}
	if errno != 0 {
		return fmt.Errorf("connect(): %s", unix.Errno(errno))
	}
	return nil
}

// ResolveOpen validates a completed OIP notification with a zero-byte
// read or write on the ready direction, surfacing any error it hits.
// reserved for open strategies that report completion via OIP rather
// than CIP; no strategy above currently does.
func ResolveOpen(fd int, writable bool) error {
	if writable {
		_, err := unix.Write(fd, nil)
		return err
	}
	_, err := unix.Read(fd, nil)
	return err
}
