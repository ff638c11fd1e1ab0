/*
 * ut - Command dispatch table: open, close, quit, and the line parser
 * that tokenizes a CHN_CMD line and replies OK/FAIL/WAIT.
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
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/internal/channel"
	"github.com/bytemine/ut/internal/message"
	"github.com/bytemine/ut/util/hex"
)

// result is a command function's outcome, mapped to the OK/FAIL/WAIT
// reply convention.
type result int

const (
	resultOK result = iota
	resultFail
	resultWait
)

// cmdFunc is one command's implementation. args[0] is the command name
// itself, matching the reply line's own echo of it.
type cmdFunc func(in *Interpreter, args []string) result

var commands = map[string]cmdFunc{
	"open":  cmdOpen,
	"close": cmdClose,
	"quit":  cmdQuit,
}

// parse tokenizes one CHN_CMD line, dispatches to its command function,
// and replies on CHN_CMD per the OK/FAIL/WAIT convention.
func (in *Interpreter) parse(m *message.Message) {
	if m.Flags&message.NoNL != 0 {
		in.Router.Printf(channel.MsgID, message.Err,
			"cmdi_parse(): malformed buffer - end of line missing\n")
		in.Router.Printf(channel.CmdID, 0, "FAIL\n")
		return
	}

	line := strings.TrimSuffix(string(m.Payload()), "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	fn, ok := commands[fields[0]]
	if !ok {
		in.Router.Printf(channel.CmdID, message.Err, "unknown command: %s\n", fields[0])
		in.Router.Printf(channel.CmdID, 0, "FAIL %s\n", fields[0])
		return
	}

	res := fn(in, fields)

	arg := ""
	if len(fields) > 1 {
		arg = " " + fields[1]
	}
	switch res {
	case resultWait:
		in.Router.Printf(channel.CmdID, 0, "WAIT %s%s\n", fields[0], arg)
	case resultFail:
		in.Router.Printf(channel.CmdID, 0, "FAIL %s%s\n", fields[0], arg)
	case resultOK:
		in.Router.Printf(channel.CmdID, 0, "OK %s%s\n", fields[0], arg)
	}
}

// arg2chn decodes a two-hex-digit channel id argument.
func (in *Interpreter) arg2chn(s string) *channel.Channel {
	if len(s) != 2 {
		in.Router.Printf(channel.MsgID, message.Err, "no such channel\n")
		return nil
	}
	id, ok := hex.DecodeByte(s[0], s[1])
	if !ok {
		in.Router.Printf(channel.MsgID, message.Err, "no such channel\n")
		return nil
	}
	ch := in.Channels.Get(id)
	if ch == nil {
		in.Router.Printf(channel.MsgID, message.Err, "no such channel\n")
		return nil
	}
	return ch
}

// cmdOpen opens args[1]'s channel using its configured method.
func cmdOpen(in *Interpreter, args []string) result {
	if len(args) < 2 {
		in.Router.Printf(channel.MsgID, message.Err, "missing channel argument for %s\n", args[0])
		return resultFail
	}
	if len(args) > 2 {
		in.Router.Printf(channel.MsgID, 0, "extra args for command %s ignored\n", args[0])
	}

	ch := in.arg2chn(args[1])
	if ch == nil {
		return resultFail
	}

	if ch.Flags&channel.Active != 0 {
		in.Router.Printf(channel.MsgID, message.Err, "channel %02X is already open\n", ch.ID)
		return resultFail
	}

	res, err := ch.Open()
	switch res {
	case channel.OpenInProgress:
		f := in.Sched.Register(ch.FD, ch)
		f.Keep = true
		return resultWait
	case channel.OpenOK:
		in.setupChannel(ch)
		return resultOK
	default:
		if err != nil {
			in.Router.Printf(channel.MsgID, message.Err, "open %02X: %s\n", ch.ID, err)
		}
		return resultFail
	}
}

// cmdClose closes args[1]'s channel and releases its resources.
func cmdClose(in *Interpreter, args []string) result {
	if len(args) < 2 {
		in.Router.Printf(channel.MsgID, message.Err, "missing channel argument for %s\n", args[0])
		return resultFail
	}
	if len(args) > 2 {
		in.Router.Printf(channel.MsgID, 0, "extra args for command %s ignored\n", args[0])
	}

	ch := in.arg2chn(args[1])
	if ch == nil {
		return resultFail
	}

	if ch.Flags&(channel.Active|channel.IP) == 0 {
		in.Router.Printf(channel.MsgID, message.Err, "channel %02X is not open\n", ch.ID)
		return resultFail
	}
	if ch.ID == channel.CmdID || ch.ID == channel.MsgID {
		in.Router.Printf(channel.MsgID, message.Err, "cannot close channel %02X\n", ch.ID)
		return resultFail
	}

	unix.Close(ch.FD)
	if ch.Flags&channel.PROC != 0 {
		in.installReaper(ch.PID)
	}
	in.cleanupChannel(ch)

	return resultOK
}

// cmdQuit announces shutdown on CHN_MSG/CHN_CMD via the synchronous
// emergency writer (the normal write queue may never drain again) and
// terminates the process. It never returns.
func cmdQuit(in *Interpreter, args []string) result {
	if len(args) > 1 {
		in.emergencyFrame(channel.MsgID, 0, "extra args for command quit ignored\n")
	}
	in.emergencyFrame(channel.MsgID, 0, "command quit\n")
	in.emergencyFrame(channel.MsgID, message.EOF, "\n")
	in.emergencyFrame(channel.CmdID, message.EOF, "\n")

	os.Exit(0)
	return resultOK // not reached
}

// emergencyFrame stamps id's mux prefix onto text and writes it
// synchronously via the scheduler's emergency writer, bypassing the
// async write queue entirely.
func (in *Interpreter) emergencyFrame(id uint8, flags message.Flags, text string) {
	var tc byte
	switch {
	case flags&message.EOF != 0:
		tc = '.'
	case flags&message.Err != 0:
		tc = '!'
	default:
		tc = '>'
	}

	prefix := make([]byte, message.PrefixLen)
	prefix[0] = tc
	hex.FormatByte(prefix[1:3], id)
	prefix[3] = tc
	prefix[4] = ' '

	in.Sched.Emergencyf(0, "%s%s", prefix, text)
}
