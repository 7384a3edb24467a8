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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMountsFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	saved := kernelMountsFile
	kernelMountsFile = path
	t.Cleanup(func() { kernelMountsFile = saved })
}

func TestMountVerify(t *testing.T) {
	r, err := New("storage_mount", "m1", map[string]string{"fstype": "ext4"})
	require.NoError(t, err)
	assert.Error(t, r.Verify())

	r, err = New("storage_mount", "m1", map[string]string{
		"fstype":     "ext4",
		"device":     "/dev/sdb1",
		"mountpoint": "/mnt/data",
	})
	require.NoError(t, err)
	assert.NoError(t, r.Verify())
}

func TestMountStatus(t *testing.T) {
	withMountsFile(t, `sysfs /sys sysfs rw,nosuid,nodev,noexec 0 0
/dev/sdb1 /mnt/data ext4 rw,relatime 0 0
tmpfs /run tmpfs rw,nosuid,nodev 0 0
`)

	r, err := New("storage_mount", "m1", map[string]string{
		"fstype":     "xfs",
		"device":     "/dev/whatever",
		"mountpoint": "/mnt/data",
	})
	require.NoError(t, err)

	// Mountpoint match only: fstype/device mismatches are ignored.
	assert.Equal(t, StatusStarted, r.Status(true, StatusUnknown))

	r, err = New("storage_mount", "m2", map[string]string{
		"fstype":     "ext4",
		"device":     "/dev/sdb1",
		"mountpoint": "/mnt/other",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, r.Status(true, StatusUnknown))
}

func TestMountStatusUnreadableMountsFile(t *testing.T) {
	saved := kernelMountsFile
	kernelMountsFile = filepath.Join(t.TempDir(), "no-such-file")
	t.Cleanup(func() { kernelMountsFile = saved })

	r, err := New("storage_mount", "m1", map[string]string{
		"fstype":     "ext4",
		"device":     "/dev/sdb1",
		"mountpoint": "/mnt/data",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusError, r.Status(true, StatusUnknown))
}
