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

package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShell(t *testing.T) {
	output, err := Shell([]string{"echo", "hello"})
	assert.NoError(t, err)
	assert.Equal(t, "hello\n", output)
}

func TestShellPipe(t *testing.T) {
	output, err := Shell(
		[]string{"echo", "one two three"},
		[]string{"tr", " ", "\n"},
	)
	assert.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", output)
}

func TestShellEmpty(t *testing.T) {
	_, err := Shell()
	assert.Error(t, err)

	_, err = Shell([]string{})
	assert.Error(t, err)
}

func TestShellExitError(t *testing.T) {
	_, err := Shell([]string{"false"})
	assert.Error(t, err)
	assert.True(t, Exited(err, 0))
	assert.True(t, ExitedWith(err, 0, 1))
	assert.False(t, ExitedWith(err, 0, 2))
	assert.False(t, ExitedWith(err, 1, 1))
}

func TestShellPipeExitIndex(t *testing.T) {
	// The failing command is the first of two: index 1, counting from
	// the last command backwards.
	_, err := Shell(
		[]string{"false"},
		[]string{"cat"},
	)
	assert.Error(t, err)
	assert.True(t, Exited(err, 1))
}

func TestEcho(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echo")
	assert.NoError(t, Echo("value", path))

	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "value", string(content))
}

func TestPerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms")
	assert.NoError(t, os.WriteFile(path, nil, 0644))

	assert.NoError(t, Perms(path, "", "", "0600"))
	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.Error(t, Perms(path, "", "", "notoctal"))
	assert.Error(t, Perms(path, "no-such-user-hopefully", "", ""))

	// Empty permissions leave everything unchanged.
	assert.NoError(t, Perms(path, "", "", ""))
}

func TestWithUmask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "masked")
	err := WithUmask(0077, func() error {
		return os.WriteFile(path, []byte("x"), 0666)
	})
	assert.NoError(t, err)

	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestHostname(t *testing.T) {
	name, err := Hostname()
	assert.NoError(t, err)
	assert.NotEmpty(t, name)
}
