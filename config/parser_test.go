/*
 * ut - Config file parser tests.
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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ut.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadBasic(t *testing.T) {
	body := `
# sample config
keepalive 30
timeout 5
logfile /var/log/ut.log
msg welcome aboard

channel console tty unix /tmp/ut.console timeout=2 log=/var/log/console
channel relay serial inet 127.0.0.1 4001
channel worker shell popen /bin/sh -c "sleep 3600"
`
	path := writeTempConfig(t, body)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Keepalive != 30 {
		t.Errorf("Keepalive = %d, want 30", cfg.Keepalive)
	}
	if cfg.Timeout != 5 {
		t.Errorf("Timeout = %d, want 5", cfg.Timeout)
	}
	if cfg.LogFile != "/var/log/ut.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
	if len(cfg.Motd) != 1 || cfg.Motd[0] != "welcome aboard" {
		t.Errorf("Motd = %v", cfg.Motd)
	}
	if len(cfg.Channels) != 3 {
		t.Fatalf("len(Channels) = %d, want 3", len(cfg.Channels))
	}

	c0 := cfg.Channels[0]
	if c0.Method != MethodUNIX || c0.Target != "/tmp/ut.console" || c0.Timeout != 2 || c0.LogFile != "/var/log/console" {
		t.Errorf("Channels[0] = %+v", c0)
	}

	c1 := cfg.Channels[1]
	if c1.Method != MethodINET || c1.Host != "127.0.0.1" || c1.Port != 4001 {
		t.Errorf("Channels[1] = %+v", c1)
	}

	c2 := cfg.Channels[2]
	if c2.Method != MethodPopen || !strings.Contains(c2.Target, "sleep 3600") {
		t.Errorf("Channels[2] = %+v", c2)
	}
}

func TestLoadReadWriteMethods(t *testing.T) {
	path := writeTempConfig(t, "channel a x read\nchannel b y write\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels[0].Method != MethodRead || cfg.Channels[1].Method != MethodWrite {
		t.Errorf("Channels = %+v", cfg.Channels)
	}
}

func TestLoadUnknownDirective(t *testing.T) {
	path := writeTempConfig(t, "bogus 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for unknown directive")
	}
}

func TestLoadUnknownMethod(t *testing.T) {
	path := writeTempConfig(t, "channel a x carrierpigeon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for unknown method")
	}
}

func TestLoadTooManyChannels(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < maxChannels+1; i++ {
		sb.WriteString("channel c x read\n")
	}
	path := writeTempConfig(t, sb.String())
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for too many channels")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/ut.conf"); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}
