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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"github.com/cedric-dufour/KiSC/pkg/resource"
)

func TestParseSettingFilters(t *testing.T) {
	filters, err := parseSettingFilters([]string{"TYPE", "hostname=h1.example", "name~=^br[0-9]+$"})
	require.NoError(t, err)
	require.Len(t, filters, 3)

	assert.Equal(t, "TYPE", filters[0].key)
	assert.False(t, filters[0].exact)
	assert.Nil(t, filters[0].pattern)

	assert.Equal(t, "hostname", filters[1].key)
	assert.True(t, filters[1].exact)
	assert.Equal(t, "h1.example", filters[1].value)

	assert.Equal(t, "name", filters[2].key)
	assert.NotNil(t, filters[2].pattern)

	_, err = parseSettingFilters([]string{"name~=["})
	assert.Error(t, err)
}

func TestMatchFilters(t *testing.T) {
	config := map[string]string{
		"TYPE":     "cluster_host",
		"hostname": "h1.example",
	}

	include, err := parseSettingFilters([]string{"hostname=h1.example"})
	require.NoError(t, err)
	exclude, err := parseSettingFilters([]string{"virtual"})
	require.NoError(t, err)

	// No filters: everything matches.
	assert.True(t, matchFilters(config, nil, nil))

	// Include filters: at least one must match.
	assert.True(t, matchFilters(config, include, nil))
	other, err := parseSettingFilters([]string{"hostname=h2.example"})
	require.NoError(t, err)
	assert.False(t, matchFilters(config, other, nil))

	// Exclude wins over include.
	assert.True(t, matchFilters(config, include, exclude))
	config["virtual"] = "yes"
	assert.False(t, matchFilters(config, include, exclude))

	// Regexp filters.
	pattern, err := parseSettingFilters([]string{"hostname~=^h[0-9]+\\."})
	require.NoError(t, err)
	assert.True(t, matchFilters(config, pattern, nil))
}

func TestStatusExit(t *testing.T) {
	assert.NoError(t, statusExit(resource.StatusStarted))

	tests := []struct {
		status resource.Status
		code   int
	}{
		{resource.StatusSuspended, 1},
		{resource.StatusStopped, 2},
		{resource.StatusError, 3},
		{resource.StatusUnknown, exitFailure},
	}
	for _, test := range tests {
		err := statusExit(test.status)
		require.Error(t, err)
		exitErr, ok := err.(cli.ExitCoder)
		require.True(t, ok)
		assert.Equal(t, test.code, exitErr.ExitCode())
	}
}
