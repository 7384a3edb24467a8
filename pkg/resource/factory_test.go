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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, typ := range Types() {
		r, err := New(typ, "id1", nil)
		require.NoError(t, err, typ)
		assert.Equal(t, typ, r.Type())
		assert.Equal(t, "id1", r.ID())
	}
}

func TestNewInvalidType(t *testing.T) {
	_, err := New("no_such_type", "id1", nil)
	assert.Error(t, err)

	_, err = New("include", "id1", nil)
	assert.Error(t, err)
}

func TestTypes(t *testing.T) {
	types := Types()
	assert.Len(t, types, 15)
	assert.Contains(t, types, "cluster_host")
	assert.Contains(t, types, "service_libvirt")
	assert.Contains(t, types, "health_ping6")

	// Sorted.
	for i := 1; i < len(types); i++ {
		assert.Less(t, types[i-1], types[i])
	}
}

func TestHelp(t *testing.T) {
	for _, typ := range Types() {
		help, err := Help(typ)
		require.NoError(t, err, typ)
		assert.Contains(t, help, typ)
	}

	_, err := Help("no_such_type")
	assert.Error(t, err)
}
