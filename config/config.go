/*
 * ut - Config: immutable parsed representation of the config file.
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

// Package config loads the line-oriented config file that describes the
// channels a process exposes and their open strategies.
package config

// MethodType selects a channel's open strategy.
type MethodType int

const (
	MethodUNIX MethodType = iota
	MethodINET
	MethodPopen
	MethodRead
	MethodWrite
)

func (m MethodType) String() string {
	switch m {
	case MethodUNIX:
		return "unix"
	case MethodINET:
		return "inet"
	case MethodPopen:
		return "popen"
	case MethodRead:
		return "read"
	case MethodWrite:
		return "write"
	default:
		return "unknown"
	}
}

// ChannelConfig is one "channel" directive. Channel ids are not part of
// this record: they are assigned densely by position among the Config's
// Channels slice, skipping the reserved command/message ids.
type ChannelConfig struct {
	Name    string
	Type    string
	Method  MethodType
	Target  string // UNIX socket path, or POPEN shell command
	Host    string // INET only
	Port    int    // INET only
	LogFile string
	Motd    []string
	Timeout int
}

// Config is the fully parsed, immutable config file.
type Config struct {
	Channels  []ChannelConfig
	Keepalive int
	Timeout   int
	LogFile   string
	Motd      []string
}
