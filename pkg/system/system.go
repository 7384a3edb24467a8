// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package system provides the low-level runtime helpers shared by the
// resource plugins and the cluster controllers: external command
// invocation, file permissions and umask handling, and the parsers for
// the configuration value syntaxes (booleans, lists, dictionaries).
package system

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ExitError reports a failed command within a Shell invocation. Index
// identifies the failing command, counting from the last command of the
// pipe backwards (the last command is index 0), so that call sites
// probing a status can discriminate "probe said no" from "pipe setup
// failed".
type ExitError struct {
	Index  int
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command exited with code %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// ExitedWith reports whether err is an ExitError for the given command
// index and exit code.
func ExitedWith(err error, index, code int) bool {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Index == index && exitErr.Code == code
	}
	return false
}

// Exited reports whether err is an ExitError for the given command
// index, whatever the exit code.
func Exited(err error, index int) bool {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Index == index
	}
	return false
}

// Shell executes the given command, or pipe of commands, and returns
// the resulting standard output. A non-zero exit from any command
// yields an *ExitError.
func Shell(commands ...[]string) (string, error) {
	if len(commands) == 0 || len(commands[0]) == 0 {
		return "", fmt.Errorf("missing/empty command")
	}

	var stdin []byte
	last := len(commands) - 1
	for i, args := range commands {
		cmd := exec.Command(args[0], args[1:]...)
		if i > 0 {
			cmd.Stdin = bytes.NewReader(stdin)
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			code := -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = err.Error()
			}
			return "", &ExitError{Index: last - i, Code: code, Stderr: detail}
		}
		stdin = stdout.Bytes()
	}

	return string(stdin), nil
}

// Echo writes the given string into the given file (typically a sysfs
// attribute).
func Echo(s, path string) error {
	return os.WriteFile(path, []byte(s), 0644)
}

// lookupUID resolves a user name or decimal UID.
func lookupUID(owner string) (int, error) {
	if uid, err := strconv.Atoi(owner); err == nil {
		return uid, nil
	}
	u, err := user.Lookup(owner)
	if err != nil {
		return -1, err
	}
	return strconv.Atoi(u.Uid)
}

// lookupGID resolves a group name or decimal GID.
func lookupGID(group string) (int, error) {
	if gid, err := strconv.Atoi(group); err == nil {
		return gid, nil
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return -1, err
	}
	return strconv.Atoi(g.Gid)
}

// Perms changes the given file's owner, group and mode. Empty strings
// leave the corresponding attribute unchanged; mode is octal.
func Perms(path string, owner, group, mode string) error {
	uid, gid := -1, -1
	var err error

	if owner != "" {
		if uid, err = lookupUID(owner); err != nil {
			return fmt.Errorf("invalid permissions (%s): %w", owner, err)
		}
	}
	if group != "" {
		if gid, err = lookupGID(group); err != nil {
			return fmt.Errorf("invalid permissions (%s): %w", group, err)
		}
	}
	if uid >= 0 || gid >= 0 {
		if err = os.Chown(path, uid, gid); err != nil {
			return err
		}
	}

	if mode != "" {
		bits, err := strconv.ParseUint(mode, 8, 32)
		if err != nil {
			return fmt.Errorf("invalid permissions (%s)", mode)
		}
		if err = os.Chmod(path, os.FileMode(bits)); err != nil {
			return err
		}
	}

	return nil
}

// WithUmask runs fn with the process umask temporarily set to mask.
func WithUmask(mask int, fn func() error) error {
	old := unix.Umask(mask)
	defer unix.Umask(old)
	return fn()
}

// Hostname returns the local host name, fully qualified when the
// resolver knows one. A variable so tests can substitute a fixed name.
var Hostname = func() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", err
	}
	if strings.Contains(name, ".") {
		return name, nil
	}
	if cname, err := net.LookupCNAME(name); err == nil {
		if cname = strings.TrimSuffix(cname, "."); cname != "" {
			return cname, nil
		}
	}
	return name, nil
}
