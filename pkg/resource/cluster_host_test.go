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

package resource

import (
	"errors"
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

func testHost(t *testing.T, config map[string]string) *Host {
	t.Helper()
	r, err := New("cluster_host", "h1", config)
	require.NoError(t, err)
	host, ok := AsHost(r)
	require.True(t, ok)
	return host
}

func TestHostVerify(t *testing.T) {
	host := testHost(t, map[string]string{})
	assert.Error(t, host.Verify())

	host = testHost(t, map[string]string{"hostname": "h1.example"})
	assert.NoError(t, host.Verify())

	host = testHost(t, map[string]string{"hostname": "h1.example", "CONSUMABLES": "gpu:many"})
	assert.Error(t, host.Verify())
}

func TestHostStartLocal(t *testing.T) {
	withHostname(t, "h1.example")

	host := testHost(t, map[string]string{"hostname": "h1.example"})
	assert.NoError(t, host.Start())
	assert.Equal(t, StatusStarted, host.Status(false, StatusUnknown))

	// Idempotent.
	assert.NoError(t, host.Start())
}

func TestHostStartAlias(t *testing.T) {
	withHostname(t, "node1")

	host := testHost(t, map[string]string{"hostname": "h1.example", "aliases": "node1,h1"})
	assert.NoError(t, host.Start())
}

func TestHostStartRemote(t *testing.T) {
	withHostname(t, "elsewhere.example")

	host := testHost(t, map[string]string{"hostname": "h1.example"})
	assert.Error(t, host.Start())
	assert.Equal(t, StatusError, host.Status(false, StatusUnknown))
}

func TestHostStartVirtual(t *testing.T) {
	withHostname(t, "elsewhere.example")

	host := testHost(t, map[string]string{"hostname": "v1.example", "virtual": "yes"})
	assert.NoError(t, host.Start())
}

func TestHostStopWithResources(t *testing.T) {
	withHostname(t, "h1.example")

	host := testHost(t, map[string]string{"hostname": "h1.example", "$STATUS": "Started", "$RESOURCES": "r1"})
	assert.Error(t, host.Stop())
}

func TestHostRegisterResource(t *testing.T) {
	withHostname(t, "h1.example")

	host := testHost(t, map[string]string{"hostname": "h1.example", "CONSUMABLES": "gpu:2"})
	r1, err := New("service_dummy", "r1", map[string]string{"CONSUMES": "gpu:1"})
	require.NoError(t, err)
	r2, err := New("service_dummy", "r2", map[string]string{"CONSUMES": "gpu:1"})
	require.NoError(t, err)
	r3, err := New("service_dummy", "r3", map[string]string{"CONSUMES": "gpu:1"})
	require.NoError(t, err)

	// Dry-run check mutates nothing.
	assert.NoError(t, host.RegisterResource(r1, false, true, false))
	assert.Empty(t, host.ResourcesIDs(false))
	assert.Empty(t, host.ConsumablesUsed())

	assert.NoError(t, host.RegisterResource(r1, false, false, false))
	assert.NoError(t, host.RegisterResource(r2, false, false, false))
	assert.Equal(t, []string{"r1", "r2"}, host.ResourcesIDs(false))
	assert.Equal(t, map[string]int{"gpu": 2}, host.ConsumablesUsed())
	assert.Equal(t, "gpu:2", host.Config()["$CONSUMABLES_USED"])
	assert.Equal(t, "gpu:0", host.Config()["$CONSUMABLES_FREE"])

	// Consumable exhausted.
	err = host.RegisterResource(r3, false, false, false)
	assert.True(t, errors.Is(err, ErrConsumableExhausted))

	// Oversubscription.
	assert.NoError(t, host.RegisterResource(r3, false, false, true))
	assert.Equal(t, "gpu:3", host.Config()["$CONSUMABLES_USED"])
	assert.Equal(t, "gpu:-1", host.Config()["$CONSUMABLES_FREE"])

	// Unregister releases the consumables.
	assert.NoError(t, host.UnregisterResource(r3, false))
	assert.NoError(t, host.UnregisterResource(r2, false))
	assert.NoError(t, host.UnregisterResource(r1, false))
	assert.Empty(t, host.ResourcesIDs(false))
	_, ok := host.Config()["$CONSUMABLES_USED"]
	assert.False(t, ok)
	assert.Equal(t, "gpu:2", host.Config()["$CONSUMABLES_FREE"])

	// Unregistering an absent resource is a no-op.
	assert.NoError(t, host.UnregisterResource(r1, false))
}

func TestHostRegisterResourceUnlimited(t *testing.T) {
	host := testHost(t, map[string]string{"hostname": "h1.example", "CONSUMABLES": "license:-1"})
	r1, err := New("service_dummy", "r1", map[string]string{"CONSUMES": "license:100"})
	require.NoError(t, err)

	// Negative provision means unlimited.
	assert.NoError(t, host.RegisterResource(r1, false, false, false))
	assert.Equal(t, map[string]int{"license": 100}, host.ConsumablesUsed())
}

func TestHostRegisterResourceUnknownConsumable(t *testing.T) {
	host := testHost(t, map[string]string{"hostname": "h1.example"})
	r1, err := New("service_dummy", "r1", map[string]string{"CONSUMES": "gpu:1"})
	require.NoError(t, err)

	// A consumable the host does not provide is skipped (with a
	// warning), not an error.
	assert.NoError(t, host.RegisterResource(r1, false, false, false))
	assert.Empty(t, host.ConsumablesUsed())
}

func TestHostRegisterResourceIdempotent(t *testing.T) {
	host := testHost(t, map[string]string{"hostname": "h1.example", "CONSUMABLES": "gpu:2"})
	r1, err := New("service_dummy", "r1", map[string]string{"CONSUMES": "gpu:1"})
	require.NoError(t, err)

	assert.NoError(t, host.RegisterResource(r1, false, false, false))
	assert.NoError(t, host.RegisterResource(r1, false, false, false))
	assert.Equal(t, []string{"r1"}, host.ResourcesIDs(false))
	assert.Equal(t, map[string]int{"gpu": 1}, host.ConsumablesUsed())
}

func TestHostRegisterBootstrap(t *testing.T) {
	host := testHost(t, map[string]string{"hostname": "h1.example"})
	r1, err := New("cluster_copy", "cp1", map[string]string{"source": "/a", "destination": "/b"})
	require.NoError(t, err)

	assert.NoError(t, host.RegisterResource(r1, true, false, false))
	assert.Equal(t, []string{"cp1"}, host.ResourcesIDs(true))
	assert.Empty(t, host.ResourcesIDs(false))
	assert.Equal(t, "cp1", host.Config()["$BOOTSTRAP"])
}

func TestHostVirtualBootstrapRegistration(t *testing.T) {
	host := testHost(t, map[string]string{"hostname": "v1.example", "virtual": "yes"})
	r1, err := New("cluster_copy", "cp1", map[string]string{"source": "/a", "destination": "/b"})
	require.NoError(t, err)

	assert.Error(t, host.RegisterResource(r1, true, false, false))
	assert.Error(t, host.UnregisterResource(r1, true))
}

func TestHostRegisterTo(t *testing.T) {
	host := testHost(t, map[string]string{"hostname": "h1.example", "register_to": "v1"})
	assert.Equal(t, "v1", host.RegisterTo())
	assert.False(t, host.IsVirtual())
}

func TestHostgroupHostsIDs(t *testing.T) {
	r, err := New("cluster_hostgroup", "web", map[string]string{"hosts": "h1, h2"})
	require.NoError(t, err)
	hostgroup, ok := AsHostgroup(r)
	require.True(t, ok)

	assert.NoError(t, hostgroup.Verify())
	assert.Equal(t, []string{"h1", "h2"}, hostgroup.HostsIDs())
}
