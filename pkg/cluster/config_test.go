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

package cluster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

// withHostname pins the local hostname for the duration of a test.
func withHostname(t *testing.T, hostname string) {
	t.Helper()
	saved := system.Hostname
	system.Hostname = func() (string, error) { return hostname, nil }
	t.Cleanup(func() { system.Hostname = saved })
}

// writeFile writes a test fixture file.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// kiscSection renders a [KiSC] section pointing every directory into
// the given test directory.
func kiscSection(dir string) string {
	return fmt.Sprintf(
		"[KiSC]\ncache_dir=%s\nlocal_runtime_dir=%s\nglobal_runtime_dir=%s\n\n",
		filepath.Join(dir, "cache"),
		filepath.Join(dir, "local"),
		filepath.Join(dir, "global"),
	)
}

// testConfig writes and loads a configuration made of the [KiSC]
// section plus the given body.
func testConfig(t *testing.T, dir, body string) *Config {
	t.Helper()
	path := filepath.Join(dir, "kisc.cfg")
	writeFile(t, path, kiscSection(dir)+body)
	config := NewConfig(path)
	require.NoError(t, config.Load())
	return config
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	config := testConfig(t, dir, `
[h1]
TYPE=cluster_host
hostname=h1.example

[web]
TYPE=cluster_hostgroup
hosts=h1,h2

[cp1]
TYPE=cluster_copy
source=/a
destination=/b
`)

	assert.Equal(t, []string{"h1"}, config.HostsIDs())
	assert.Equal(t, []string{"web"}, config.HostgroupsIDs())
	assert.Equal(t, []string{"cp1"}, config.ResourcesIDs(true))
	assert.Empty(t, config.ResourcesIDs(false))
	assert.True(t, config.Autostart("cp1"))

	assert.Equal(t, filepath.Join(dir, "cache"), config.DirectoryCache())
	assert.Equal(t, filepath.Join(dir, "local"), config.DirectoryRuntimeLocal())
	assert.Equal(t, filepath.Join(dir, "global"), config.DirectoryRuntimeGlobal())

	// The cache and local runtime directories are created.
	for _, sub := range []string{"cache", "local"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		assert.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	host, err := config.Host("h1")
	assert.NoError(t, err)
	assert.Equal(t, "h1.example", host.Hostname())

	_, err = config.Host("h2")
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestLoadMissingFile(t *testing.T) {
	config := NewConfig(filepath.Join(t.TempDir(), "no-such-file.cfg"))
	assert.Error(t, config.Load())
}

func TestLoadIncludeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "resources.cfg"), `
[r1]
TYPE=service_dummy

[r2]
TYPE=service_dummy
`)
	config := testConfig(t, dir, fmt.Sprintf(`
[h1]
TYPE=cluster_host
hostname=h1.example

[regular]
TYPE=include
file=%s
`, filepath.Join(dir, "resources.cfg")))

	// Included resources inherit the include section's (unset)
	// BOOTSTRAP flag: they are regular resources, in declaration
	// order.
	assert.Equal(t, []string{"r1", "r2"}, config.ResourcesIDs(false))
	assert.Empty(t, config.ResourcesIDs(true))
}

func TestLoadIncludeDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "conf.d", "10-first.cfg"), "[r1]\nTYPE=service_dummy\n")
	writeFile(t, filepath.Join(dir, "conf.d", "20-second.cfg"), "[r2]\nTYPE=service_dummy\n")
	writeFile(t, filepath.Join(dir, "conf.d", "ignored.conf"), "[r3]\nTYPE=service_dummy\n")

	config := testConfig(t, dir, fmt.Sprintf(`
[h1]
TYPE=cluster_host
hostname=h1.example

[regular]
TYPE=include
directory=%s
`, filepath.Join(dir, "conf.d")))

	// Only the default '*.cfg' glob is picked up.
	assert.Equal(t, []string{"r1", "r2"}, config.ResourcesIDs(false))
}

func TestLoadIncludeBootstrap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bootstrap.cfg"), `
[net1]
TYPE=network_bridge
name=br0
devices=eth0
`)
	config := testConfig(t, dir, fmt.Sprintf(`
[h1]
TYPE=cluster_host
hostname=h1.example

[boot]
TYPE=include
BOOTSTRAP=yes
AUTOSTART=no
file=%s
`, filepath.Join(dir, "bootstrap.cfg")))

	assert.Equal(t, []string{"net1"}, config.ResourcesIDs(true))
	assert.False(t, config.Autostart("net1"))
}

func TestLoadClusterTypeOutsideBootstrap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "resources.cfg"), `
[h2]
TYPE=cluster_host
hostname=h2.example
`)
	path := filepath.Join(dir, "kisc.cfg")
	writeFile(t, path, kiscSection(dir)+fmt.Sprintf(`
[regular]
TYPE=include
file=%s
`, filepath.Join(dir, "resources.cfg")))

	config := NewConfig(path)
	err := config.Load()
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "[h2]")
	assert.Contains(t, err.Error(), "bootstrap")
}

func TestLoadMissingType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kisc.cfg")
	writeFile(t, path, kiscSection(dir)+`
[broken]
hostname=h1.example

[h1]
TYPE=cluster_host
hostname=h1.example
`)

	config := NewConfig(path)
	err := config.Load()
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), fmt.Sprintf("<%s> [broken]", path))

	// The malformed section did not abort the load.
	assert.Equal(t, []string{"h1"}, config.HostsIDs())
}

func TestLoadDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "extra.cfg"), `
[cp1]
TYPE=cluster_copy
source=/a
destination=/b
`)
	path := filepath.Join(dir, "kisc.cfg")
	writeFile(t, path, kiscSection(dir)+fmt.Sprintf(`
[cp1]
TYPE=cluster_copy
source=/a
destination=/b

[more]
TYPE=include
BOOTSTRAP=yes
file=%s
`, filepath.Join(dir, "extra.cfg")))

	config := NewConfig(path)
	err := config.Load()
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoadInvalidResource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kisc.cfg")
	writeFile(t, path, kiscSection(dir)+`
[cp1]
TYPE=cluster_copy
source=/a
`)

	config := NewConfig(path)
	err := config.Load()
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "destination")
}

func TestIsHostAllowed(t *testing.T) {
	dir := t.TempDir()
	config := testConfig(t, dir, `
[h1]
TYPE=cluster_host
hostname=h1.example

[h2]
TYPE=cluster_host
hostname=h2.example

[h3]
TYPE=cluster_host
hostname=h3.example

[web]
TYPE=cluster_hostgroup
hosts=h1,h2
`)

	tests := []struct {
		expression string
		hostID     string
		allowed    bool
	}{
		{"", "h1", true},
		{"h1", "h1", true},
		{"h1", "h2", false},
		{"h1,h2", "h2", true},
		{"!h1", "h1", false},
		{"!h1", "h2", true},
		{"@ALL", "h3", true},
		{"@ALL,!h3", "h1", true},
		{"@ALL,!h3", "h2", true},
		{"@ALL,!h3", "h3", false},
		{"@web", "h1", true},
		{"@web", "h2", true},
		{"@web", "h3", false},
		{"@ALL,!@web", "h1", false},
		{"@ALL,!@web", "h3", true},
		{"@nosuchgroup", "h1", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.allowed, config.IsHostAllowed(test.expression, test.hostID),
			"%s <-> %s", test.hostID, test.expression)
	}
}

func TestIsHostResource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "resources.cfg"), `
[r1]
TYPE=service_dummy
HOSTS=h1

[r2]
TYPE=service_dummy
`)
	config := testConfig(t, dir, fmt.Sprintf(`
[h1]
TYPE=cluster_host
hostname=h1.example

[h2]
TYPE=cluster_host
hostname=h2.example

[regular]
TYPE=include
file=%s
`, filepath.Join(dir, "resources.cfg")))

	scoped, err := config.IsHostResource("h1", "r1", false)
	assert.NoError(t, err)
	assert.True(t, scoped)

	scoped, err = config.IsHostResource("h2", "r1", false)
	assert.NoError(t, err)
	assert.False(t, scoped)

	// A resource without a HOSTS expression runs anywhere.
	scoped, err = config.IsHostResource("h2", "r2", false)
	assert.NoError(t, err)
	assert.True(t, scoped)

	_, err = config.IsHostResource("h1", "no-such-resource", false)
	assert.Error(t, err)
}

func TestHostByHostname(t *testing.T) {
	dir := t.TempDir()
	config := testConfig(t, dir, `
[h1]
TYPE=cluster_host
hostname=h1.example
aliases=node1

[h2]
TYPE=cluster_host
hostname=h2.example
`)

	host, err := config.HostByHostname("h2.example")
	assert.NoError(t, err)
	assert.Equal(t, "h2", host.ID())

	host, err = config.HostByHostname("node1")
	assert.NoError(t, err)
	assert.Equal(t, "h1", host.ID())

	withHostname(t, "h1.example")
	host, err = config.HostByHostname("")
	assert.NoError(t, err)
	assert.Equal(t, "h1", host.ID())

	_, err = config.HostByHostname("unknown.example")
	assert.Error(t, err)
}

func TestConfigString(t *testing.T) {
	dir := t.TempDir()
	config := testConfig(t, dir, `
[h1]
TYPE=cluster_host
hostname=h1.example

[cp1]
TYPE=cluster_copy
source=/a
destination=/b
`)

	dump := config.String(false)
	assert.Contains(t, dump, "[KiSC]")
	assert.Contains(t, dump, "[h1]")
	assert.Contains(t, dump, "hostname=h1.example")
	assert.Contains(t, dump, "[cp1]")
	assert.NotContains(t, dump, "$STATUS")
}
