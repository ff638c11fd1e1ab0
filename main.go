/*
 * ut - Entry point: CLI parsing, single-instance lock, startup banner,
 * keepalive registration, and the scheduler's main loop.
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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gofrs/flock"
	getopt "github.com/pborman/getopt/v2"
	"golang.org/x/sys/unix"

	"github.com/bytemine/ut/config"
	"github.com/bytemine/ut/internal/channel"
	"github.com/bytemine/ut/internal/cmdi"
	"github.com/bytemine/ut/internal/iobuf"
	"github.com/bytemine/ut/internal/message"
	"github.com/bytemine/ut/internal/muxdemux"
	"github.com/bytemine/ut/internal/scheduler"
	"github.com/bytemine/ut/util/hex"
	"github.com/bytemine/ut/util/logger"
)

// version is reported in the startup banner's first line.
const version = "1.0"

// keepaliveLine is the literal text emitted on CHN_MSG every keepalive
// interval.
const keepaliveLine = "-keepalive-"

func main() {
	optConfig := getopt.StringLong("config", 'c', "ut.conf", "Configuration file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	debug := false
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(logger.NewHandler(nil, &slog.HandlerOptions{Level: level}, &debug)))

	sched := scheduler.New()

	lock := flock.New(*optConfig)
	locked, err := lock.TryLock()
	if err != nil {
		emergencyFrame(sched, channel.MsgID, message.Err, *optConfig+": "+err.Error()+"\n")
		os.Exit(1)
	}
	if !locked {
		emergencyFrame(sched, channel.MsgID, message.Err, "another instance of ut is already running, exiting\n")
		emergencyFrame(sched, channel.MsgID, message.EOF, "\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*optConfig)
	if err != nil {
		emergencyFrame(sched, channel.MsgID, message.Err, err.Error()+"\n")
		os.Exit(1)
	}

	signal.Ignore(unix.SIGPIPE)

	logFD := -1
	if cfg.LogFile != "" {
		fd, err := unix.Open(cfg.LogFile, unix.O_WRONLY|unix.O_APPEND|unix.O_CREAT, 0644)
		if err != nil {
			emergencyFrame(sched, channel.MsgID, message.Err, "logfile open: "+cfg.LogFile+": "+err.Error()+"\n")
		} else {
			logFD = fd
		}
	}

	mainIn := &channel.Channel{FD: 0, LogFD: logFD, Flags: channel.RD}
	mainOut := &channel.Channel{FD: 1, LogFD: logFD, Flags: channel.WR, Timeout: cfg.Timeout, Stalled: mainOutStalled}

	chm := channel.NewMap(cfg)
	router := &muxdemux.Router{Channels: chm, Sched: sched}
	interp := cmdi.New(chm, router, sched)
	router.CmdEnqueue = interp.Enqueue
	sched.Update = interp.Update
	sched.Cmdi = interp.Run
	interp.SetupReader = func(ch *channel.Channel) {
		installChannelReader(sched, router, interp, ch)
	}

	sched.Register(mainIn.FD, mainIn)
	outFdio := sched.Register(mainOut.FD, mainOut)
	outFdio.Keep = true

	if err := unix.SetNonblock(mainOut.FD, true); err != nil {
		emergencyFrame(sched, channel.MsgID, message.Err, "set nonblocking: "+err.Error()+"\n")
		os.Exit(1)
	}

	installMainInputReader(sched, router, mainIn)

	emitBanner(router, chm, cfg)

	if cfg.Keepalive > 0 {
		installKeepalive(sched, router, cfg.Keepalive)
	}

	sched.Run()
}

// installChannelReader wires a configured channel's fd to an
// immediate-mode line framer whose every output is first logged, then
// muxed onto the shared output.
func installChannelReader(sched *scheduler.Scheduler, router *muxdemux.Router, interp *cmdi.Interpreter, ch *channel.Channel) {
	fr := iobuf.New(false, true, func(m *message.Message) {
		ch.WriteLog(true, m.Bytes())
		router.Mux(m, ch)
	})

	f := sched.Get(ch.FD)
	f.Read = func(fd int) {
		switch fr.ReadInto(fd) {
		case iobuf.ReadError:
			ch.Flags |= channel.ErrR
			interp.Update(ch, f, 0)
		case iobuf.ReadEOF:
			interp.HandleEOF(ch)
		}
	}
}

// installMainInputReader wires the shared input stream to a wait-mode
// framer that logs and routes each complete line via Demux. EOF on the
// shared input is treated as an implicit quit, since there is no
// controller left to issue one.
func installMainInputReader(sched *scheduler.Scheduler, router *muxdemux.Router, mainIn *channel.Channel) {
	fr := iobuf.New(true, false, func(m *message.Message) {
		mainIn.WriteLog(true, m.Bytes())
		router.Demux(m)
	})

	f := sched.Get(mainIn.FD)
	f.Read = func(fd int) {
		switch fr.ReadInto(fd) {
		case iobuf.ReadError:
			mainIn.Flags |= channel.ErrR
		case iobuf.ReadEOF:
			quitOnMainInputEOF(sched)
		}
	}
}

// mainOutStalled is the shared output's stall callback: a wedged
// controller is not worth diagnosing further, so the process exits.
func mainOutStalled(ch *channel.Channel) {
	os.Exit(1)
}

// quitOnMainInputEOF announces shutdown and terminates, mirroring
// cmdQuit but triggered by EOF on the shared input rather than a quit
// command.
func quitOnMainInputEOF(sched *scheduler.Scheduler) {
	emergencyFrame(sched, channel.MsgID, 0, "EOF on main input\n")
	emergencyFrame(sched, channel.MsgID, message.EOF, "\n")
	emergencyFrame(sched, channel.CmdID, message.EOF, "\n")
	os.Exit(0)
}

// emergencyFrame stamps id's mux prefix onto text and writes it via the
// scheduler's emergency writer, for diagnostics issued before the
// command interpreter exists and for the shutdown notices on EOF of the
// shared input.
func emergencyFrame(sched *scheduler.Scheduler, id uint8, flags message.Flags, text string) {
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

	sched.Emergencyf(0, "%s%s", prefix, text)
}

// emitBanner writes the fixed-format startup banner on CHN_CMD: version,
// reserved ids, every configured channel's id/type/name, the motd (if
// any), and the final READY line.
func emitBanner(router *muxdemux.Router, chm *channel.Map, cfg *config.Config) {
	router.Printf(channel.CmdID, 0, "### UT VERSION %s ###\n", version)
	router.Printf(channel.CmdID, 0, "CMD %02X MSG %02X\n", channel.CmdID, channel.MsgID)
	router.Printf(channel.CmdID, 0, "CHANNELS:\n")

	for id := 1; id <= channel.CHN_MAX; id++ {
		ch := chm.Get(uint8(id))
		if ch == nil || ch.Config == nil {
			continue
		}
		router.Printf(channel.CmdID, 0, "%02X %s %q\n", ch.ID, ch.Config.Type, ch.Config.Name)
	}
	router.Printf(channel.CmdID, 0, "\n")

	if len(cfg.Motd) > 0 {
		router.PrintLines(channel.CmdID, cfg.Motd)
	}

	router.Printf(channel.CmdID, 0, "READY\n")
}

// installKeepalive schedules the recurring keepalive line on CHN_MSG.
func installKeepalive(sched *scheduler.Scheduler, router *muxdemux.Router, seconds int) {
	interval := time.Duration(seconds) * time.Second

	var tick func(*scheduler.TimedEvent)
	tick = func(ev *scheduler.TimedEvent) {
		router.Printf(channel.MsgID, 0, "%s\n", keepaliveLine)
		sched.Events.Rearm(ev, interval)
	}
	sched.Events.Add(interval, tick)
}
