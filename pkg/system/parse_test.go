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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "t", "yes", "y", "on", "1", "TRUE", "Yes", " on "} {
		assert.True(t, ParseBool(s), s)
	}
	for _, s := range []string{"", "false", "no", "off", "0", "2", "enabled"} {
		assert.False(t, ParseBool(s), s)
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{}, ParseList(""))
	assert.Equal(t, []string{"a"}, ParseList("a"))
	assert.Equal(t, []string{"a", "b", "c"}, ParseList("a, b ,c"))
	assert.Equal(t, []string{"a", "b"}, ParseList("a,,b,"))
}

func TestParseIntDict(t *testing.T) {
	dict, err := ParseIntDict("", 1)
	assert.NoError(t, err)
	assert.Empty(t, dict)

	dict, err = ParseIntDict("gpu:2, ram : 512 ,license", -1)
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{"gpu": 2, "ram": 512, "license": -1}, dict)

	_, err = ParseIntDict("gpu:many", 1)
	assert.Error(t, err)
}

func TestParseStringDict(t *testing.T) {
	dict, err := ParseStringDict("hostname=h1, port=22", "=")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"hostname": "h1", "port": "22"}, dict)

	_, err = ParseStringDict("novalue", "=")
	assert.Error(t, err)
}

func TestFormatIntDict(t *testing.T) {
	assert.Equal(t, "", FormatIntDict(nil))
	assert.Equal(t, "a:1,b:-2,c:0", FormatIntDict(map[string]int{"c": 0, "a": 1, "b": -2}))
}

func TestParseFormatIntDictRoundTrip(t *testing.T) {
	s := "cpu:4,gpu:-1,ram:2048"
	dict, err := ParseIntDict(s, 1)
	assert.NoError(t, err)
	assert.Equal(t, s, FormatIntDict(dict))
}
