/*
 * ut - Config file parser: directive-table line grammar, grounded on the
 * teacher's config/configparser Register*-into-map pattern.
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

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxChannels mirrors the channel id space reserved for configured
// channels: ids 0x01..0xFE, CHN_CMD (0x00) and CHN_MSG (0xFF) excluded.
const maxChannels = 0xFE

type directiveFunc func(fields []string, cfg *Config) error

var directives = map[string]directiveFunc{}

func init() {
	directives["channel"] = parseChannel
	directives["keepalive"] = parseKeepalive
	directives["timeout"] = parseTimeout
	directives["logfile"] = parseLogfile
	directives["msg"] = parseMsg
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	r := bufio.NewReader(f)
	lineNumber := 0
	for {
		raw, err := r.ReadString('\n')
		lineNumber++
		if len(raw) == 0 && err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		line := stripComment(raw)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}

		keyword := strings.ToLower(fields[0])
		fn, ok := directives[keyword]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown directive %q", lineNumber, fields[0])
		}
		if err2 := fn(fields[1:], cfg); err2 != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err2)
		}

		if err == io.EOF {
			break
		}
	}

	if len(cfg.Channels) > maxChannels {
		return nil, fmt.Errorf("too many channels: %d declared, %d available", len(cfg.Channels), maxChannels)
	}

	return cfg, nil
}

// stripComment drops everything from the first '#' onward; quoting is
// not recognised.
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return line
}

func parseChannel(fields []string, cfg *Config) error {
	if len(fields) < 3 {
		return fmt.Errorf("channel: need at least name type method")
	}
	cc := ChannelConfig{Name: fields[0], Type: fields[1]}

	method := strings.ToLower(fields[2])
	rest := fields[3:]
	switch method {
	case "unix":
		if len(rest) < 1 {
			return fmt.Errorf("channel %s: unix method requires a path", cc.Name)
		}
		cc.Method = MethodUNIX
		cc.Target = rest[0]
		rest = rest[1:]
	case "inet":
		if len(rest) < 2 {
			return fmt.Errorf("channel %s: inet method requires address and port", cc.Name)
		}
		port, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("channel %s: invalid port %q", cc.Name, rest[1])
		}
		cc.Method = MethodINET
		cc.Host = rest[0]
		cc.Port = port
		rest = rest[2:]
	case "popen":
		if len(rest) < 1 {
			return fmt.Errorf("channel %s: popen method requires a command", cc.Name)
		}
		cc.Method = MethodPopen
		cc.Target = strings.Join(rest, " ")
		rest = nil
	case "read":
		cc.Method = MethodRead
	case "write":
		cc.Method = MethodWrite
	default:
		return fmt.Errorf("channel %s: unknown method %q", cc.Name, method)
	}

	for _, opt := range rest {
		key, val, ok := strings.Cut(opt, "=")
		if !ok {
			return fmt.Errorf("channel %s: invalid option %q", cc.Name, opt)
		}
		switch key {
		case "timeout":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("channel %s: invalid timeout %q", cc.Name, val)
			}
			cc.Timeout = n
		case "log":
			cc.LogFile = val
		case "msg":
			cc.Motd = append(cc.Motd, val)
		default:
			return fmt.Errorf("channel %s: unknown option %q", cc.Name, key)
		}
	}

	cfg.Channels = append(cfg.Channels, cc)
	return nil
}

func parseKeepalive(fields []string, cfg *Config) error {
	n, err := requireInt("keepalive", fields)
	if err != nil {
		return err
	}
	cfg.Keepalive = n
	return nil
}

func parseTimeout(fields []string, cfg *Config) error {
	n, err := requireInt("timeout", fields)
	if err != nil {
		return err
	}
	cfg.Timeout = n
	return nil
}

func parseLogfile(fields []string, cfg *Config) error {
	if len(fields) != 1 {
		return fmt.Errorf("logfile: requires exactly one path")
	}
	cfg.LogFile = fields[0]
	return nil
}

func parseMsg(fields []string, cfg *Config) error {
	if len(fields) == 0 {
		return fmt.Errorf("msg: requires text")
	}
	cfg.Motd = append(cfg.Motd, strings.Join(fields, " "))
	return nil
}

func requireInt(name string, fields []string) (int, error) {
	if len(fields) != 1 {
		return 0, fmt.Errorf("%s: requires exactly one number", name)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, fields[0])
	}
	return n, nil
}
