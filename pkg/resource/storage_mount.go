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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cedric-dufour/KiSC/pkg/system"
)

const storageMountHelp = `storage_mount - mounted storage

Configuration parameters:
 - [REQUIRED] fstype (STRING):
   filesystem type
 - [REQUIRED] device (STRING; path or URI):
   device path or resource URI to mount
 - [REQUIRED] mountpoint (STRING; path):
   mountpoint directory path
 - [OPTIONAL] options (STRING; comma-separated):
   mount options
 - [OPTIONAL] mkdir (*yes|no):
   create the mountpoint directory, if needs be
`

// kernelMountsFile lists the mounted filesystems; a variable so tests
// can substitute a fixture.
var kernelMountsFile = "/proc/mounts"

// Mount is the storage_mount resource, wrapping the mount utility.
type Mount struct {
	base
}

func newMount(id string, config map[string]string) Resource {
	return &Mount{base: newBase("storage_mount", id, config)}
}

func (m *Mount) Verify() error {
	var result *multierror.Error
	for _, setting := range []string{"fstype", "device", "mountpoint"} {
		if m.config[setting] == "" {
			result = multierror.Append(result, fmt.Errorf("invalid resource configuration; missing %q setting", setting))
		}
	}
	return result.ErrorOrNil()
}

func (m *Mount) Start() error {
	m.log().Info("Starting")

	if m.Status(true, StatusStarted) == StatusStarted {
		m.log().Info("Already started")
		return nil
	}

	if mkdir, ok := m.config["mkdir"]; !ok || system.ParseBool(mkdir) {
		if err := os.MkdirAll(m.config["mountpoint"], 0755); err != nil {
			m.log().Error(err)
			m.status = StatusError
			return err
		}
	}

	command := []string{"mount", "-t", m.config["fstype"]}
	if options, ok := m.config["options"]; ok {
		command = append(command, "-o", options)
	}
	command = append(command, m.config["device"], m.config["mountpoint"])

	if _, err := system.Shell(command); err != nil {
		m.log().Error(err)
		m.status = StatusError
		return err
	}

	m.status = StatusStarted
	return nil
}

func (m *Mount) Stop() error {
	m.log().Info("Stopping")

	if m.Status(true, StatusStopped) == StatusStopped {
		m.log().Info("Already stopped")
		return nil
	}

	if _, err := system.Shell([]string{"umount", m.config["mountpoint"]}); err != nil {
		m.log().Error(err)
		m.status = StatusError
		return err
	}

	m.status = StatusStopped
	return nil
}

func (m *Mount) Status(stateful bool, intent Status) Status {
	if !stateful {
		return m.status
	}

	// Match on the mountpoint only, independently from a potentially
	// mismatching fstype, device or options.
	status := StatusStopped
	file, err := os.Open(kernelMountsFile)
	if err != nil {
		m.log().Error(err)
		m.status = StatusError
		return m.status
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == m.config["mountpoint"] {
			status = StatusStarted
			break
		}
	}
	if err := scanner.Err(); err != nil {
		m.log().Error(err)
		status = StatusError
	}

	m.status = status
	return m.status
}
