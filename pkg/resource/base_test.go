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
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Unknown", StatusUnknown.String())
	assert.Equal(t, "Started", StatusStarted.String())
	assert.Equal(t, "Suspended", StatusSuspended.String())
	assert.Equal(t, "Stopped", StatusStopped.String())
	assert.Equal(t, "Error", StatusError.String())
}

func TestParseStatus(t *testing.T) {
	for _, status := range []Status{StatusStarted, StatusSuspended, StatusStopped, StatusError} {
		assert.Equal(t, status, ParseStatus(status.String()))
	}
	assert.Equal(t, StatusUnknown, ParseStatus("Unknown"))
	assert.Equal(t, StatusUnknown, ParseStatus("whatever"))
}

func TestBaseConfig(t *testing.T) {
	r, err := New("service_dummy", "dummy1", map[string]string{"HOSTS": "@ALL"})
	require.NoError(t, err)

	config := r.Config()
	assert.Equal(t, "service_dummy", config["TYPE"])
	assert.Equal(t, "dummy1", config["ID"])
	assert.Equal(t, "Unknown", config["$STATUS"])
	assert.Equal(t, "@ALL", config["HOSTS"])
}

func TestBaseStatusFromConfig(t *testing.T) {
	r, err := New("service_dummy", "dummy1", map[string]string{"$STATUS": "Started"})
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, r.Status(false, StatusUnknown))
}

func TestBaseString(t *testing.T) {
	r, err := New("service_dummy", "dummy1", map[string]string{
		"zeta":    "last",
		"alpha":   "first",
		"$STATUS": "Started",
		"$HOSTS":  "h1",
	})
	require.NoError(t, err)

	// Plain keys sorted, TYPE first, no runtime keys.
	assert.Equal(t, "[dummy1]\nTYPE=service_dummy\nalpha=first\nzeta=last\n", r.String(false))

	// Runtime ($-prefixed) keys grouped after the plain keys.
	assert.Equal(t,
		"[dummy1]\nTYPE=service_dummy\nalpha=first\nzeta=last\n$HOSTS=h1\n$STATUS=Started\n",
		r.String(true))
}

func TestBaseHostRegistration(t *testing.T) {
	r, err := New("service_dummy", "dummy1", nil)
	require.NoError(t, err)
	h1 := newHost("h1", map[string]string{"hostname": "h1.example"}).(*Host)
	h2 := newHost("h2", map[string]string{"hostname": "h2.example"}).(*Host)

	assert.Empty(t, r.HostsIDs())

	assert.NoError(t, r.RegisterHost(h1))
	assert.Equal(t, []string{"h1"}, r.HostsIDs())

	// Double registration is an error.
	assert.Error(t, r.RegisterHost(h1))

	assert.NoError(t, r.RegisterHost(h2))
	assert.Equal(t, []string{"h1", "h2"}, r.HostsIDs())

	assert.NoError(t, r.UnregisterHost(h1))
	assert.Equal(t, []string{"h2"}, r.HostsIDs())

	// Unregistering an absent host is a no-op.
	assert.NoError(t, r.UnregisterHost(h1))

	assert.NoError(t, r.UnregisterHost(h2))
	assert.Empty(t, r.HostsIDs())
	_, ok := r.Config()["$HOSTS"]
	assert.False(t, ok)
}

func TestBaseNotImplemented(t *testing.T) {
	r, err := New("cluster_copy", "cp1", map[string]string{"source": "/a", "destination": "/b"})
	require.NoError(t, err)

	assert.True(t, errors.Is(r.Suspend(), ErrNotImplemented))
	assert.True(t, errors.Is(r.Resume(), ErrNotImplemented))
	assert.True(t, errors.Is(r.Migrate(nil), ErrNotImplemented))
}

func TestDummyLifecycle(t *testing.T) {
	r, err := New("service_dummy", "dummy1", nil)
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, r.Status(true, StatusUnknown))
	assert.NoError(t, r.Start())
	assert.Equal(t, StatusStarted, r.Status(true, StatusUnknown))
	assert.NoError(t, r.Suspend())
	assert.Equal(t, StatusSuspended, r.Status(true, StatusUnknown))
	assert.NoError(t, r.Resume())
	assert.Equal(t, StatusStarted, r.Status(true, StatusUnknown))
	assert.NoError(t, r.Stop())
	assert.Equal(t, StatusStopped, r.Status(true, StatusUnknown))
}
